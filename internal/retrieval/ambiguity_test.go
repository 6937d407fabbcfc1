package retrieval

import (
	"testing"

	"github.com/steveyegge/catalogmatch/internal/types"
)

func TestCheckAmbiguityDomainConflict(t *testing.T) {
	matches := []types.TableMatch{
		{Table: &types.TableInfo{ID: "a", DomainID: "vendas"}, Score: 0.82},
		{Table: &types.TableInfo{ID: "b", DomainID: "clientes"}, Score: 0.80},
	}
	amb := CheckAmbiguity(matches)
	if amb.Type != types.AmbiguityDomainConflict {
		t.Fatalf("Type = %v, want DOMAIN_CONFLICT", amb.Type)
	}
	if len(amb.Options) != 2 {
		t.Fatalf("Options len = %d, want 2", len(amb.Options))
	}
	if amb.ProvisionalTableID != "a" {
		t.Fatalf("ProvisionalTableID = %q, want a", amb.ProvisionalTableID)
	}
}

func TestCheckAmbiguityMultipleProducts(t *testing.T) {
	matches := []types.TableMatch{
		{Table: &types.TableInfo{ID: "a", DomainID: "vendas", InferredProduct: "consig"}, Score: 0.60},
		{Table: &types.TableInfo{ID: "b", DomainID: "vendas", InferredProduct: "imob"}, Score: 0.55},
	}
	amb := CheckAmbiguity(matches)
	if amb.Type != types.AmbiguityMultipleProducts {
		t.Fatalf("Type = %v, want MULTIPLE_PRODUCTS", amb.Type)
	}
}

func TestCheckAmbiguityLowConfidence(t *testing.T) {
	matches := []types.TableMatch{
		{Table: &types.TableInfo{ID: "a"}, Score: 0.20},
		{Table: &types.TableInfo{ID: "b"}, Score: 0.15},
	}
	amb := CheckAmbiguity(matches)
	if amb.Type != types.AmbiguityLowConfidence {
		t.Fatalf("Type = %v, want LOW_CONFIDENCE", amb.Type)
	}
}

func TestCheckAmbiguityNone(t *testing.T) {
	matches := []types.TableMatch{
		{Table: &types.TableInfo{ID: "a", DomainID: "vendas"}, Score: 0.90},
		{Table: &types.TableInfo{ID: "b", DomainID: "vendas"}, Score: 0.40},
	}
	amb := CheckAmbiguity(matches)
	if amb.Type != types.AmbiguityNone {
		t.Fatalf("Type = %v, want NONE", amb.Type)
	}
}

func TestBuildAction(t *testing.T) {
	if got := BuildAction(types.DataExistsYes, 0.75, 0.70); got != types.ActionUseTable {
		t.Fatalf("got %v, want USE_TABLE", got)
	}
	if got := BuildAction(types.DataNeedsCreation, 0.1, 0.70); got != types.ActionCreateInvolvement {
		t.Fatalf("got %v, want CREATE_INVOLVEMENT", got)
	}
	if got := BuildAction(types.DataUncertain, 0.5, 0.70); got != types.ActionConfirmWithOwner {
		t.Fatalf("got %v, want CONFIRM_WITH_OWNER", got)
	}
}
