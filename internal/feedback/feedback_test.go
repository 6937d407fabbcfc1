package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/catalogmatch/internal/types"
)

func TestConceptHashOrderIndependent(t *testing.T) {
	a := types.ConceptHashFields{DataNeed: "vendas", TargetProduct: "consig", TargetEntity: "cliente"}
	b := types.ConceptHashFields{TargetEntity: "cliente", DataNeed: "vendas", TargetProduct: "consig"}
	if ConceptHash(a) != ConceptHash(b) {
		t.Fatal("expected identical hash regardless of field order")
	}
}

func TestConceptHashLength(t *testing.T) {
	h := ConceptHash(types.ConceptHashFields{DataNeed: "x"})
	if len(h) != 16 {
		t.Fatalf("ConceptHash length = %d, want 16", len(h))
	}
}

func TestRecordDecisionIdempotent(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()
	rec := types.DecisionRecord{RequestID: "r1", TableID: "t1", ConceptHash: "h1", Outcome: types.OutcomeApproved}

	id1, err := s.RecordDecision(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.RecordDecision(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected idempotent recording to return the same id, got %q vs %q", id1, id2)
	}
	if len(s.records) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(s.records))
	}
}

func TestGetHistoricalScoreBelowMinSamples(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()
	s.RecordDecision(ctx, types.DecisionRecord{RequestID: "r1", TableID: "t1", ConceptHash: "h1", Outcome: types.OutcomeApproved})

	score, count, err := s.GetHistoricalScore(ctx, "h1", "t1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if score != neutralScore || count != 1 {
		t.Fatalf("score=%v count=%v, want neutral 0.5/1", score, count)
	}
}

func TestGetHistoricalScoreCacheSentinel(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := types.DecisionRecord{RequestID: string(rune('a' + i)), TableID: "t1", ConceptHash: "h1", Outcome: types.OutcomeApproved}
		s.RecordDecision(ctx, rec)
	}

	score1, count1, _ := s.GetHistoricalScore(ctx, "h1", "t1", 3)
	if count1 != 3 || score1 != 1.0 {
		t.Fatalf("first call score=%v count=%v", score1, count1)
	}

	score2, count2, _ := s.GetHistoricalScore(ctx, "h1", "t1", 3)
	if count2 != cachedSentinel {
		t.Fatalf("expected cached sentinel -1, got %d", count2)
	}
	if score2 != score1 {
		t.Fatalf("cached score %v differs from computed score %v", score2, score1)
	}
}

func TestGetTopTablesForConceptOrdering(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordDecision(ctx, types.DecisionRecord{RequestID: "a" + string(rune('0'+i)), TableID: "tb_low", ConceptHash: "h1", Outcome: types.OutcomeRejected})
	}
	for i := 0; i < 3; i++ {
		s.RecordDecision(ctx, types.DecisionRecord{RequestID: "b" + string(rune('0'+i)), TableID: "tb_high", ConceptHash: "h1", Outcome: types.OutcomeApproved})
	}

	top, err := s.GetTopTablesForConcept(ctx, "h1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].TableID != "tb_high" {
		t.Fatalf("expected tb_high to rank first, got %+v", top)
	}
}
