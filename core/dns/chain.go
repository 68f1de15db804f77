package dns

import (
	"context"
	"fmt"
	"strings"
)

// maxChainDepth bounds CNAME chain traversal. Resolvers in the wild give up
// well before this, so anything deeper is misconfigured.
const maxChainDepth = 10

// ChainStatus classifies the outcome of a chain validation.
type ChainStatus string

const (
	ChainStatusSuccess ChainStatus = "success"
	ChainStatusWarning ChainStatus = "warning"
	ChainStatusError   ChainStatus = "error"
)

// ChainResult describes a walked CNAME chain.
type ChainResult struct {
	Status  ChainStatus
	Message string

	// Details carries advisory notes, e.g. hops that resolve into CDN
	// infrastructure known to flatten CNAME records.
	Details []string

	// Chain lists the names visited, starting with the queried domain.
	Chain []string
}

// cdnHints maps hostname substrings to providers that commonly flatten or
// rewrite CNAME records at the edge. Matching is advisory only.
var cdnHints = []struct{ substring, provider string }{
	{"cloudflare", "Cloudflare"},
	{"cloudfront.net", "Amazon CloudFront"},
	{"akamai", "Akamai"},
	{"fastly", "Fastly"},
	{"edgekey.net", "Akamai"},
	{"azureedge.net", "Azure CDN"},
	{"netlify", "Netlify"},
	{"vercel", "Vercel"},
	{"github.io", "GitHub Pages"},
}

// ChainValidator walks CNAME chains hop by hop and classifies how they
// terminate.
type ChainValidator struct {
	resolver *Resolver
}

// NewChainValidator creates a validator over the given resolver.
func NewChainValidator(resolver *Resolver) *ChainValidator {
	return &ChainValidator{resolver: resolver}
}

// Validate resolves the CNAME chain starting at domain.
//
// Termination at an address record (or no record at all) is normal; the
// status then depends on chain length: up to 3 hops is success, 4-9 hops is
// a warning. Loops, non-existent names, and chains of 10 or more hops are
// errors. Only transport-level failures surface through the error return.
func (v *ChainValidator) Validate(ctx context.Context, domain string) (ChainResult, error) {
	current := NormalizeName(domain)
	result := ChainResult{Chain: []string{current}}

	// Visited comparison is case-insensitive by construction: every name is
	// normalized before insertion.
	visited := map[string]struct{}{current: {}}

	for depth := 0; ; depth++ {
		if depth >= maxChainDepth {
			result.Status = ChainStatusError
			result.Message = fmt.Sprintf("CNAME chain too deep: more than %d hops from %s", maxChainDepth, NormalizeName(domain))
			return result, nil
		}

		lookup, err := v.resolver.LookupCNAME(ctx, current)
		if err != nil {
			return ChainResult{}, err
		}

		if lookup.NXDomain {
			result.Status = ChainStatusError
			result.Message = fmt.Sprintf("chain contains a non-existent domain: %s", current)
			return result, nil
		}

		if !lookup.Found {
			// Chain terminated at an address record or an empty name.
			return v.classifyTermination(result, depth), nil
		}

		target := NormalizeName(lookup.First())
		result.Chain = append(result.Chain, target)
		v.noteCDN(&result, target)

		if _, seen := visited[target]; seen {
			result.Status = ChainStatusError
			result.Message = fmt.Sprintf("CNAME loop detected: %s appears twice in the chain", target)
			return result, nil
		}
		visited[target] = struct{}{}

		current = target
	}
}

// classifyTermination applies the post-hoc depth classification for chains
// that ended normally.
func (v *ChainValidator) classifyTermination(result ChainResult, depth int) ChainResult {
	switch {
	case depth <= 3:
		result.Status = ChainStatusSuccess
		if depth == 0 {
			result.Message = "no CNAME record; name resolves directly"
		} else {
			result.Message = fmt.Sprintf("CNAME chain resolves in %d hop(s)", depth)
		}
	default:
		result.Status = ChainStatusWarning
		result.Message = fmt.Sprintf("CNAME chain is unusually long (%d hops) but resolves", depth)
	}
	return result
}

// noteCDN appends an advisory detail when a hop lands on known CDN or
// hosting infrastructure. Never affects the status classification.
func (v *ChainValidator) noteCDN(result *ChainResult, target string) {
	for _, hint := range cdnHints {
		if strings.Contains(target, hint.substring) {
			result.Details = append(result.Details,
				fmt.Sprintf("%s resolves into %s infrastructure, which may flatten or rewrite CNAME records", target, hint.provider))
			return
		}
	}
}
