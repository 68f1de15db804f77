package brand

import (
	"fmt"
	"net"
	"strings"
)

// Brand is a static definition of one tenant-facing identity the platform
// serves. White-label partners get their own entry with their own hosts and
// delegation target.
type Brand struct {
	// ID is the stable brand identifier, also accepted as an override value.
	ID string

	// Name is the human-readable product name used in notifications.
	Name string

	// MarketingHost is the canonical marketing site host, without "www.".
	MarketingHost string

	// AppHost is the host the tenant-facing application is served from.
	AppHost string

	// DelegationTarget is the platform-controlled CNAME target tenants of
	// this brand point their _acme-challenge records at.
	DelegationTarget string
}

// Config is the per-request brand resolution outcome. It is derived, never
// persisted, and recomputed for every request.
type Config struct {
	BrandID          string
	BrandName        string
	MarketingHost    string
	AppHost          string
	IsMarketingHost  bool
	IsAppHost        bool
	PreferredHost    string
	DelegationTarget string
}

// Registry holds the immutable brand set. It is constructed once at process
// start and passed by reference; it has no mutating methods.
type Registry struct {
	brands       []Brand
	byID         map[string]int
	defaultBrand int
}

// NewRegistry builds a registry from the given brands. The defaultID names
// the brand returned when nothing matches; it must be present in brands.
func NewRegistry(defaultID string, brands ...Brand) (*Registry, error) {
	if len(brands) == 0 {
		return nil, fmt.Errorf("brand registry requires at least one brand")
	}

	r := &Registry{
		brands:       make([]Brand, len(brands)),
		byID:         make(map[string]int, len(brands)),
		defaultBrand: -1,
	}
	copy(r.brands, brands)

	for i, b := range r.brands {
		if b.ID == "" {
			return nil, fmt.Errorf("brand at index %d has empty ID", i)
		}
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate brand ID %q", b.ID)
		}
		r.byID[b.ID] = i
		if b.ID == defaultID {
			r.defaultBrand = i
		}
	}

	if r.defaultBrand < 0 {
		return nil, fmt.Errorf("default brand %q not found in registry", defaultID)
	}

	return r, nil
}

// Default returns the registry shipped with the product: the first-party
// brand plus the white-label partners currently live.
func Default() *Registry {
	r, err := NewRegistry("delegatedssl.com",
		Brand{
			ID:               "delegatedssl.com",
			Name:             "DelegatedSSL",
			MarketingHost:    "delegatedssl.com",
			AppHost:          "portal.delegatedssl.com",
			DelegationTarget: "dcv.delegatedssl.com",
		},
		Brand{
			ID:               "securecname.io",
			Name:             "SecureCNAME",
			MarketingHost:    "securecname.io",
			AppHost:          "app.securecname.io",
			DelegationTarget: "dcv.securecname.io",
		},
	)
	if err != nil {
		panic(err) // static registry, broken only by a bad edit
	}
	return r
}

// Resolve maps a request hostname to a brand. Resolution order: explicit
// request override, process-level override, marketing host match (with or
// without "www."), app host match, default brand. It never fails; anything
// unrecognized falls back to the default brand with neither host flag set.
func (r *Registry) Resolve(hostname, queryOverride, envOverride string) Config {
	if override, ok := r.lookupOverride(queryOverride); ok {
		return r.configFor(override, false, false)
	}
	if override, ok := r.lookupOverride(envOverride); ok {
		return r.configFor(override, false, false)
	}

	host := NormalizeHost(hostname)

	for i, b := range r.brands {
		if host == b.MarketingHost {
			return r.configFor(i, true, false)
		}
	}
	for i, b := range r.brands {
		if host == NormalizeHost(b.AppHost) {
			return r.configFor(i, false, true)
		}
	}

	return r.configFor(r.defaultBrand, false, false)
}

// ByID returns the brand definition for an identifier.
func (r *Registry) ByID(id string) (Brand, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Brand{}, false
	}
	return r.brands[i], true
}

func (r *Registry) lookupOverride(value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	i, ok := r.byID[strings.ToLower(strings.TrimSpace(value))]
	return i, ok
}

func (r *Registry) configFor(i int, marketing, app bool) Config {
	b := r.brands[i]
	return Config{
		BrandID:          b.ID,
		BrandName:        b.Name,
		MarketingHost:    b.MarketingHost,
		AppHost:          b.AppHost,
		IsMarketingHost:  marketing,
		IsAppHost:        app,
		PreferredHost:    b.MarketingHost,
		DelegationTarget: b.DelegationTarget,
	}
}

// NormalizeHost lowercases a hostname, strips a port if present, and drops a
// leading "www." label.
func NormalizeHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}
