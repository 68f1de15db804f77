package middleware

import (
	"context"
	"net/http"

	"github.com/delegatedssl/platform/core/brand"
)

// brandContextKey is used as a key for storing the resolved brand in
// request context.
type brandContextKey struct{}

// BrandConfig configures the brand resolution middleware.
type BrandConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Registry is the immutable brand registry (default: brand.Default())
	Registry *brand.Registry
	// QueryParam is the request parameter carrying an explicit brand override (default: "brand")
	QueryParam string
	// EnvOverride is the process-level brand override, usually BRAND_ID from the environment
	EnvOverride string
}

// Brand creates a brand resolution middleware with default configuration.
// Every request gets a resolved brand in its context; resolution never
// fails, falling back to the registry default.
func Brand() func(http.Handler) http.Handler {
	return BrandWithConfig(BrandConfig{})
}

// BrandWithConfig creates a brand resolution middleware with custom
// configuration. The resolved brand config is stored in the request
// context for handlers and templates to read.
func BrandWithConfig(cfg BrandConfig) func(http.Handler) http.Handler {
	if cfg.Registry == nil {
		cfg.Registry = brand.Default()
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "brand"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			resolved := cfg.Registry.Resolve(r.Host, r.URL.Query().Get(cfg.QueryParam), cfg.EnvOverride)
			ctx := context.WithValue(r.Context(), brandContextKey{}, resolved)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetBrand retrieves the resolved brand from the request context.
// Returns the brand config and a boolean indicating whether it was found.
func GetBrand(ctx context.Context) (brand.Config, bool) {
	cfg, ok := ctx.Value(brandContextKey{}).(brand.Config)
	return cfg, ok
}
