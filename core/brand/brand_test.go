package brand_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/brand"
)

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	registry := brand.Default()

	t.Run("marketing host with www", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("www.delegatedssl.com", "", "")
		assert.Equal(t, "delegatedssl.com", cfg.BrandID)
		assert.True(t, cfg.IsMarketingHost)
		assert.False(t, cfg.IsAppHost)
		assert.Equal(t, "delegatedssl.com", cfg.PreferredHost)
	})

	t.Run("marketing host without www", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("delegatedssl.com", "", "")
		assert.True(t, cfg.IsMarketingHost)
	})

	t.Run("app host", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("portal.delegatedssl.com", "", "")
		assert.Equal(t, "delegatedssl.com", cfg.BrandID)
		assert.True(t, cfg.IsAppHost)
		assert.False(t, cfg.IsMarketingHost)
	})

	t.Run("white label brand", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("securecname.io", "", "")
		assert.Equal(t, "securecname.io", cfg.BrandID)
		assert.True(t, cfg.IsMarketingHost)
	})

	t.Run("query override wins over hostname", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("delegatedssl.com", "securecname.io", "")
		assert.Equal(t, "securecname.io", cfg.BrandID)
		assert.False(t, cfg.IsMarketingHost)
		assert.False(t, cfg.IsAppHost)
	})

	t.Run("env override applies when query override absent", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("delegatedssl.com", "", "securecname.io")
		assert.Equal(t, "securecname.io", cfg.BrandID)
	})

	t.Run("unknown override falls through to hostname", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("portal.delegatedssl.com", "nope", "")
		assert.Equal(t, "delegatedssl.com", cfg.BrandID)
		assert.True(t, cfg.IsAppHost)
	})

	t.Run("unknown hostname falls back to default brand", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("elsewhere.example.com", "", "")
		assert.Equal(t, "delegatedssl.com", cfg.BrandID)
		assert.False(t, cfg.IsMarketingHost)
		assert.False(t, cfg.IsAppHost)
	})

	t.Run("hostname with port", func(t *testing.T) {
		t.Parallel()

		cfg := registry.Resolve("portal.delegatedssl.com:443", "", "")
		assert.True(t, cfg.IsAppHost)
	})
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("default brand must exist", func(t *testing.T) {
		t.Parallel()

		_, err := brand.NewRegistry("missing", brand.Brand{ID: "a", MarketingHost: "a.test"})
		require.Error(t, err)
	})

	t.Run("duplicate brand ids rejected", func(t *testing.T) {
		t.Parallel()

		_, err := brand.NewRegistry("a",
			brand.Brand{ID: "a", MarketingHost: "a.test"},
			brand.Brand{ID: "a", MarketingHost: "b.test"},
		)
		require.Error(t, err)
	})
}
