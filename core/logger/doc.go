// Package logger provides slog attribute helpers shared across the platform.
//
// Helpers follow the empty-Attr pattern: passing a nil error or value yields
// an attribute that slog silently drops, so call sites never need nil checks:
//
//	log.Info("dns check finished",
//		logger.DomainName(domain),
//		logger.Error(err))
package logger
