package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/intent"
	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/quality"
	"github.com/steveyegge/catalogmatch/internal/synonym"
	"github.com/steveyegge/catalogmatch/internal/types"
)

func TestPipelineRunSimpleHit(t *testing.T) {
	syns, _ := synonym.New("")
	model := &llm.FakeModel{Reply: `{"data_need":"vendas mensais consignado varejo","inferred_domains":["vendas"]}`}
	normalizer := intent.New(model, syns, 100, time.Hour)

	qc := quality.New()
	qc.Set("tb_vendas_consig_spec", 91, time.Now(), time.Now())

	tableRetriever := &FakeRetriever{Records: []RetrievedRecord{
		{
			ID: "tb_vendas_consig_spec", Name: "tb_vendas_consig_spec", DisplayName: "Vendas Consignado",
			Domain: "vendas", OwnerID: "o1", DataLayer: types.DataLayerSpec,
			InferredProduct: "consig", UpdateFrequency: types.FrequencyMonthly,
			LastUpdated: ptrUnix(12 * time.Hour), Distance: 0.1,
		},
	}}

	domains := map[string]*types.DomainInfo{
		"vendas": {ID: "vendas", Keywords: map[string]struct{}{"vendas": {}, "consignado": {}}},
	}
	owners := map[string]*types.OwnerInfo{
		"o1": {ID: "o1", DomainID: "vendas", ApprovalRate: 0.7},
	}

	p := &Pipeline{
		Normalizer:      normalizer,
		TableRetriever:  tableRetriever,
		ColumnRetriever: &FakeRetriever{},
		Quality:         qc,
		Feedback:        feedback.NewInMemoryStore(time.Minute),
		Model:           model,
		Domains:         domains,
		Owners:          owners,
		ActionThreshold: 0.70,
	}

	result := p.Run(context.Background(), Request{
		RawQuery: "vendas mensais consignado varejo",
		Context:  types.RequestContext{UseCase: "analytical"},
		Deadline: time.Now().Add(time.Second),
	})

	if result.DataExistence != types.DataExistsYes {
		t.Fatalf("DataExistence = %v, want EXISTS", result.DataExistence)
	}
	if result.Action != types.ActionUseTable {
		t.Fatalf("Action = %v, want USE_TABLE", result.Action)
	}
	if result.Ambiguity.Type != types.AmbiguityNone {
		t.Fatalf("Ambiguity.Type = %v, want NONE", result.Ambiguity.Type)
	}
	if len(result.Tables) != 1 || result.Tables[0].Score < 0.70 {
		t.Fatalf("Tables = %+v", result.Tables)
	}
}
