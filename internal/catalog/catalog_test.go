package catalog

import (
	"testing"

	"github.com/steveyegge/catalogmatch/internal/types"
)

func TestSearchDomainsKeywordOverlap(t *testing.T) {
	domains := map[string]*types.DomainInfo{
		"vendas":   {ID: "vendas", Keywords: map[string]struct{}{"vendas": {}, "receita": {}}},
		"clientes": {ID: "clientes", Keywords: map[string]struct{}{"cliente": {}}},
	}
	intent := types.Intent{DataNeed: "vendas mensais", InferredDomains: []string{}}

	matches := SearchDomains(intent, domains)
	if len(matches) == 0 || matches[0].Domain.ID != "vendas" {
		t.Fatalf("expected vendas to rank first, got %+v", matches)
	}
}

func TestSearchDomainsFallback(t *testing.T) {
	domains := map[string]*types.DomainInfo{
		"a": {ID: "a", Keywords: map[string]struct{}{"xyz": {}}},
		"b": {ID: "b", Keywords: map[string]struct{}{"abc": {}}},
	}
	intent := types.Intent{DataNeed: "qqqqq"}
	matches := SearchDomains(intent, domains)
	if len(matches) != 2 {
		t.Fatalf("expected fallback to return all domains, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Score != domainFallbackScore {
			t.Fatalf("expected fallback score %v, got %v", domainFallbackScore, m.Score)
		}
	}
}

func TestSearchOwnersDedupesAndScores(t *testing.T) {
	owners := map[string]*types.OwnerInfo{
		"o1": {ID: "o1", DomainID: "vendas", ApprovalRate: 0.8},
		"o2": {ID: "o2", DomainID: "vendas", ApprovalRate: 0.2},
	}
	domainMatches := []types.DomainMatch{{Domain: &types.DomainInfo{ID: "vendas"}, Score: 1.0}}

	matches := SearchOwners(domainMatches, owners)
	if len(matches) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(matches))
	}
	if matches[0].Owner.ID != "o1" {
		t.Fatalf("expected o1 (higher approval rate) to rank first, got %s", matches[0].Owner.ID)
	}
}
