// Package dns implements the DNS lookups behind domain-control validation.
//
// Lookups go through a DNS-over-HTTPS JSON endpoint (the application/dns-json
// encoding served by Cloudflare and Google resolvers) rather than the host
// stub resolver, so validation sees the public DNS view and inherits the
// retry behavior of core/httpclient.
//
// The package exposes three layers:
//
//   - Resolver: typed lookups (CNAME, CAA, MX, DNSKEY, DS, RRSIG) returning
//     structured results; NXDOMAIN is a result, not an error.
//   - Resolver.CheckCNAME: the delegation check used for DCV, comparing the
//     _acme-challenge CNAME target against the platform's expected target.
//   - ChainValidator: walks full CNAME chains and classifies loops, dangling
//     names, and excessive depth for diagnostics shown to tenants.
package dns
