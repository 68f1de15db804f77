// Package redis provides Redis client initialization with retry logic
// and health checking, plus the SETNX-based attempt guard the pipeline
// uses for best-effort duplicate suppression of redelivered jobs.
//
// Connect validates the URL, dials with retries, and verifies
// connectivity with a ping before returning the client:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//	client, err := redis.Connect(ctx, cfg)
package redis
