package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/quality"
	"github.com/steveyegge/catalogmatch/internal/types"
)

func ptrUnix(d time.Duration) *int64 {
	v := time.Now().Add(-d).Unix()
	return &v
}

func TestSearchTablesSimpleHit(t *testing.T) {
	qc := quality.New()
	qc.Set("tb_vendas_consig_spec", 91, time.Now(), time.Now())

	retriever := &FakeRetriever{Records: []RetrievedRecord{
		{
			ID: "tb_vendas_consig_spec", Name: "tb_vendas_consig_spec", DisplayName: "Vendas Consignado",
			Domain: "vendas", OwnerID: "o1", DataLayer: types.DataLayerSpec,
			InferredProduct: "consig", UpdateFrequency: types.FrequencyMonthly,
			LastUpdated: ptrUnix(12 * time.Hour), Distance: 0.1,
		},
	}}

	in := types.Intent{DataNeed: "vendas mensais consignado varejo", TargetProduct: "consig", TargetSegment: "vendas"}
	owners := []types.OwnerMatch{{Owner: &types.OwnerInfo{ID: "o1", DomainID: "vendas"}, Score: 0.9}}

	matches, existence, err := SearchTables(context.Background(), TableSearchInput{
		Intent: in, MatchedOwners: owners, UseCase: types.UseCaseAnalytical,
		Retriever: retriever, Quality: qc, Feedback: feedback.NewInMemoryStore(time.Minute), Now: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if existence != types.DataExistsYes {
		t.Fatalf("existence = %v, want EXISTS", existence)
	}
	if len(matches) != 1 || matches[0].Score < 0.70 {
		t.Fatalf("matches = %+v, want score >= 0.70", matches)
	}
	if matches[0].IsDoubleCertified {
		t.Fatal("expected not double-certified")
	}
	if !matches[0].HasProductMatch {
		t.Fatal("expected product match")
	}
}

func TestSearchTablesRetrieverFailureDegradesToUncertain(t *testing.T) {
	retriever := &FakeRetriever{Err: context.DeadlineExceeded}
	matches, existence, err := SearchTables(context.Background(), TableSearchInput{
		Intent: types.Intent{DataNeed: "x"}, Retriever: retriever, Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected no surfaced error, got %v", err)
	}
	if existence != types.DataUncertain || len(matches) != 0 {
		t.Fatalf("existence=%v matches=%v, want UNCERTAIN/empty", existence, matches)
	}
}

func TestCertificationMonotonic(t *testing.T) {
	golden := RetrievedRecord{IsGoldenSource: true}
	notGolden := RetrievedRecord{IsGoldenSource: false, DataLayer: types.DataLayerSoR}
	if certificationScore(golden) < certificationScore(notGolden) {
		t.Fatal("golden source must score at least as high as a non-certified table")
	}
}

func TestDisambiguationScoreStable(t *testing.T) {
	rec := RetrievedRecord{DataLayer: types.DataLayerSoT, LastUpdated: ptrUnix(time.Hour), UpdateFrequency: types.FrequencyDaily}
	w := useCaseWeights[types.UseCaseDefault]
	now := time.Now()
	a := disambiguationComponents(rec, types.Intent{}, nil, w, now)
	b := disambiguationComponents(rec, types.Intent{}, nil, w, now)
	if a.Disambiguation != b.Disambiguation {
		t.Fatalf("expected stable scoring, got %v vs %v", a.Disambiguation, b.Disambiguation)
	}
}

func TestShouldSearchColumns(t *testing.T) {
	if !ShouldSearchColumns("onde tem o campo CPF?", types.Intent{}) {
		t.Fatal("expected field keyword to trigger column search")
	}
	if !ShouldSearchColumns("algo qualquer", types.Intent{TargetEntity: "cpf"}) {
		t.Fatal("expected cpf target entity to trigger column search")
	}
	if ShouldSearchColumns("vendas mensais", types.Intent{}) {
		t.Fatal("expected plain query not to trigger column search")
	}
}
