package dns_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/dns"
)

// cnameFixtures builds a fixture map where each key name points at its value.
func cnameFixtures(chain map[string]string) map[string]dohAnswer {
	fixtures := make(map[string]dohAnswer, len(chain))
	for name, target := range chain {
		fixtures[name+"/5"] = dohAnswer{records: []dns.AnswerRecord{
			{Name: name, Type: 5, Data: target},
		}}
	}
	return fixtures
}

func TestChainValidator_Validate(t *testing.T) {
	t.Parallel()

	t.Run("no cname at all", func(t *testing.T) {
		t.Parallel()

		srv := newFakeDoH(t, nil)
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusSuccess, result.Status)
		assert.Equal(t, []string{"a.example.com"}, result.Chain)
	})

	t.Run("two hop chain terminating at address record", func(t *testing.T) {
		t.Parallel()

		srv := newFakeDoH(t, cnameFixtures(map[string]string{
			"a.example.com": "b.example.net.",
			"b.example.net": "c.example.org.",
		}))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusSuccess, result.Status)
		assert.Equal(t, []string{"a.example.com", "b.example.net", "c.example.org"}, result.Chain)
	})

	t.Run("loop detected", func(t *testing.T) {
		t.Parallel()

		srv := newFakeDoH(t, cnameFixtures(map[string]string{
			"a.example.com": "b.example.net.",
			"b.example.net": "a.example.com.",
		}))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusError, result.Status)
		assert.Contains(t, result.Message, "loop")
	})

	t.Run("loop detection ignores case", func(t *testing.T) {
		t.Parallel()

		srv := newFakeDoH(t, cnameFixtures(map[string]string{
			"a.example.com": "B.Example.NET.",
			"b.example.net": "A.EXAMPLE.COM.",
		}))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusError, result.Status)
		assert.Contains(t, result.Message, "loop")
	})

	t.Run("nxdomain mid-chain", func(t *testing.T) {
		t.Parallel()

		fixtures := cnameFixtures(map[string]string{
			"a.example.com": "gone.example.net.",
		})
		fixtures["gone.example.net/5"] = dohAnswer{status: 3}
		srv := newFakeDoH(t, fixtures)
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusError, result.Status)
		assert.Contains(t, result.Message, "non-existent domain")
	})

	t.Run("long but valid chain warns", func(t *testing.T) {
		t.Parallel()

		// 5 hops: hop0 -> ... -> hop5, hop5 has no CNAME.
		chain := make(map[string]string)
		for i := 0; i < 5; i++ {
			chain[fmt.Sprintf("hop%d.example.com", i)] = fmt.Sprintf("hop%d.example.com.", i+1)
		}
		srv := newFakeDoH(t, cnameFixtures(chain))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "hop0.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusWarning, result.Status)
		assert.Len(t, result.Chain, 6)
	})

	t.Run("chain too deep", func(t *testing.T) {
		t.Parallel()

		chain := make(map[string]string)
		for i := 0; i < 12; i++ {
			chain[fmt.Sprintf("hop%d.example.com", i)] = fmt.Sprintf("hop%d.example.com.", i+1)
		}
		srv := newFakeDoH(t, cnameFixtures(chain))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "hop0.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusError, result.Status)
		assert.Contains(t, result.Message, "too deep")
	})

	t.Run("cdn hop adds advisory detail only", func(t *testing.T) {
		t.Parallel()

		srv := newFakeDoH(t, cnameFixtures(map[string]string{
			"a.example.com": "d111111abcdef8.cloudfront.net.",
		}))
		defer srv.Close()

		result, err := dns.NewChainValidator(newResolver(t, srv)).Validate(context.Background(), "a.example.com")
		require.NoError(t, err)
		assert.Equal(t, dns.ChainStatusSuccess, result.Status)
		require.Len(t, result.Details, 1)
		assert.Contains(t, result.Details[0], "may flatten or rewrite CNAME records")
	})
}
