// Package catalog implements DomainSearch (spec §4.4) and OwnerSearch
// (spec §4.5): pure, deterministic scoring over a Catalog snapshot.
// Neither function performs I/O; both are safe to call concurrently
// against a shared immutable snapshot.
package catalog

import (
	"sort"
	"strings"

	"github.com/steveyegge/catalogmatch/internal/types"
)

const domainFallbackScore = 0.3
const maxDomainResults = 5

// SearchDomains scores every domain in the catalog against the intent's
// keyword bag and returns the top 5, per spec §4.4.
func SearchDomains(intent types.Intent, domains map[string]*types.DomainInfo) []types.DomainMatch {
	bag := keywordBag(intent)

	matches := make([]types.DomainMatch, 0, len(domains))
	anyHit := false
	for _, d := range domains {
		overlap := intersectionSize(bag, d.Keywords)
		if overlap > 0 {
			anyHit = true
		}
		denom := len(bag)
		if denom == 0 {
			denom = 1
		}
		score := min1(float64(overlap)/float64(denom) + 0.3)
		matches = append(matches, types.DomainMatch{
			Domain:    d,
			Score:     score,
			Reasoning: "keyword overlap with domain glossary",
		})
	}

	if !anyHit {
		return fallbackDomains(domains)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Domain.ID < matches[j].Domain.ID
	})
	return truncate(matches, maxDomainResults)
}

// fallbackDomains returns up to 5 arbitrary-but-stable domains with
// score 0.3 when no domain's keywords intersect the intent's bag.
func fallbackDomains(domains map[string]*types.DomainInfo) []types.DomainMatch {
	ids := make([]string, 0, len(domains))
	for id := range domains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]types.DomainMatch, 0, maxDomainResults)
	for _, id := range ids {
		if len(out) == maxDomainResults {
			break
		}
		out = append(out, types.DomainMatch{
			Domain:    domains[id],
			Score:     domainFallbackScore,
			Reasoning: "fallback: no direct match",
		})
	}
	return out
}

func keywordBag(intent types.Intent) map[string]struct{} {
	bag := make(map[string]struct{})
	for _, field := range []string{intent.DataNeed, intent.TargetEntity, intent.TargetProduct, intent.TargetSegment} {
		for _, tok := range strings.Fields(strings.ToLower(field)) {
			bag[tok] = struct{}{}
		}
	}
	for _, d := range intent.InferredDomains {
		bag[strings.ToLower(d)] = struct{}{}
	}
	return bag
}

func intersectionSize(bag map[string]struct{}, keywords map[string]struct{}) int {
	n := 0
	for k := range bag {
		if _, ok := keywords[k]; ok {
			n++
		}
	}
	return n
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func truncate(matches []types.DomainMatch, n int) []types.DomainMatch {
	if len(matches) > n {
		return matches[:n]
	}
	return matches
}
