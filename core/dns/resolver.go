package dns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/delegatedssl/platform/core/httpclient"
	"github.com/delegatedssl/platform/core/logger"
)

// DefaultEndpoint is the DoH JSON endpoint used when none is configured.
const DefaultEndpoint = "https://cloudflare-dns.com/dns-query"

// Config holds resolver configuration for environment-based loading.
type Config struct {
	Endpoint string `env:"DNS_DOH_ENDPOINT" envDefault:"https://cloudflare-dns.com/dns-query"`
}

// Resolver issues DNS lookups through a DNS-over-HTTPS JSON API.
// All names are normalized to lowercase at lookup construction, so record
// comparisons downstream can be exact.
type Resolver struct {
	client   *httpclient.Client
	endpoint string
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEndpoint overrides the DoH endpoint URL.
func WithEndpoint(endpoint string) ResolverOption {
	return func(r *Resolver) {
		if endpoint != "" {
			r.endpoint = endpoint
		}
	}
}

// WithResolverLogger sets the logger for lookup diagnostics.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewResolver creates a Resolver backed by the given retrying HTTP client.
func NewResolver(client *httpclient.Client, opts ...ResolverOption) *Resolver {
	if client == nil {
		client = httpclient.New()
	}

	r := &Resolver{
		client:   client,
		endpoint: DefaultEndpoint,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// LookupCNAME returns the CNAME target(s) of name.
func (r *Resolver) LookupCNAME(ctx context.Context, name string) (LookupResult, error) {
	return r.lookup(ctx, name, RRTypeCNAME)
}

// LookupCAA returns the CAA records of the domain.
func (r *Resolver) LookupCAA(ctx context.Context, domain string) (LookupResult, error) {
	return r.lookup(ctx, domain, RRTypeCAA)
}

// LookupMX returns the MX records of the domain.
func (r *Resolver) LookupMX(ctx context.Context, domain string) (LookupResult, error) {
	return r.lookup(ctx, domain, RRTypeMX)
}

// LookupDNSKEY returns the DNSKEY records of the domain.
func (r *Resolver) LookupDNSKEY(ctx context.Context, domain string) (LookupResult, error) {
	return r.lookup(ctx, domain, RRTypeDNSKEY)
}

// LookupDS returns the DS records of the domain.
func (r *Resolver) LookupDS(ctx context.Context, domain string) (LookupResult, error) {
	return r.lookup(ctx, domain, RRTypeDS)
}

// LookupRRSIG returns the RRSIG records of the domain.
func (r *Resolver) LookupRRSIG(ctx context.Context, domain string) (LookupResult, error) {
	return r.lookup(ctx, domain, RRTypeRRSIG)
}

func (r *Resolver) lookup(ctx context.Context, name string, rrtype RRType) (LookupResult, error) {
	name = NormalizeName(name)
	if name == "" {
		return LookupResult{}, ErrEmptyName
	}

	query := url.Values{}
	query.Set("name", name)
	query.Set("type", strconv.Itoa(int(rrtype)))

	resp, err := r.client.Get(ctx, r.endpoint+"?"+query.Encode(), http.Header{
		"Accept": {"application/dns-json"},
	})
	if err != nil {
		return LookupResult{}, fmt.Errorf("doh query %s %s: %w", rrtype, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LookupResult{}, fmt.Errorf("%w: %s for %s %s", ErrUnexpectedStatus, resp.Status, rrtype, name)
	}

	var payload dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return LookupResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := LookupResult{NXDomain: payload.Status == rcodeNXDomain}
	for _, answer := range payload.Answer {
		if answer.Type != int(rrtype) {
			continue
		}
		result.Records = append(result.Records, answer.Data)
	}
	result.Found = len(result.Records) > 0

	r.logger.DebugContext(ctx, "doh lookup",
		logger.Component("dns"),
		slog.String("name", name),
		slog.String("type", rrtype.String()),
		slog.Int("rcode", payload.Status),
		slog.Int("records", len(result.Records)))

	return result, nil
}

// NormalizeName lowercases a DNS name and strips the trailing root-zone dot.
func NormalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
