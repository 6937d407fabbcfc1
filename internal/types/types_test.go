package types

import (
	"testing"
	"time"
)

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{
			name:   "valid intent",
			intent: Intent{DataNeed: "monthly revenue", ExtractionConfidence: 0.85},
		},
		{
			name:    "missing data_need",
			intent:  Intent{ExtractionConfidence: 0.5},
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			intent:  Intent{DataNeed: "x", ExtractionConfidence: 1.2},
			wantErr: true,
		},
		{
			name:    "fallback with high confidence",
			intent:  Intent{DataNeed: "x", ExtractionConfidence: 0.6, Fallback: true},
			wantErr: true,
		},
		{
			name:   "fallback with low confidence",
			intent: Intent{DataNeed: "x", ExtractionConfidence: 0.3, Fallback: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecisionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     DecisionRecord
		wantErr bool
	}{
		{
			name: "approved ok",
			rec:  DecisionRecord{RequestID: "r1", TableID: "t1", Outcome: OutcomeApproved},
		},
		{
			name:    "modified missing actual table",
			rec:     DecisionRecord{RequestID: "r1", TableID: "t1", Outcome: OutcomeModified},
			wantErr: true,
		},
		{
			name:    "modified same table",
			rec:     DecisionRecord{RequestID: "r1", TableID: "t1", Outcome: OutcomeModified, ActualTableID: "t1"},
			wantErr: true,
		},
		{
			name: "modified ok",
			rec:  DecisionRecord{RequestID: "r1", TableID: "t1", Outcome: OutcomeModified, ActualTableID: "t2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCatalogResolvesReferences(t *testing.T) {
	domains := []*DomainInfo{{ID: "vendas", Name: "Vendas", Keywords: map[string]struct{}{}}}
	owners := []*OwnerInfo{{ID: "o1", DomainID: "vendas", ApprovalRate: 0.5}}
	tables := []*TableInfo{{ID: "t1", DomainID: "vendas", OwnerID: "o1"}}

	if _, err := NewCatalog(1, domains, owners, tables); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	badTables := []*TableInfo{{ID: "t1", DomainID: "nope", OwnerID: "o1"}}
	if _, err := NewCatalog(1, domains, owners, badTables); err == nil {
		t.Fatal("expected error for unresolved domain_id")
	}
}

func TestInvolvementValidate(t *testing.T) {
	inv := Involvement{Status: InvolvementCompleted}
	if err := inv.Validate(); err == nil {
		t.Fatal("expected error for completed involvement without table name")
	}
	inv.CreatedTableName = "tb_new"
	if err := inv.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequesterResponseTypeIsReject(t *testing.T) {
	if !RequesterRejectIrrelevant.IsReject() {
		t.Fatal("expected REJECT_IRRELEVANT to be a reject type")
	}
	if RequesterApprove.IsReject() {
		t.Fatal("expected APPROVE not to be a reject type")
	}
}

func TestUseCaseNormalize(t *testing.T) {
	if UseCase("bogus").Normalize() != UseCaseDefault {
		t.Fatal("expected unknown use case to normalize to default")
	}
	if UseCaseRegulatory.Normalize() != UseCaseRegulatory {
		t.Fatal("expected known use case to pass through")
	}
}

func TestDecisionHistoryCreatedAtMonotonic(t *testing.T) {
	before := time.Now()
	dh := DecisionHistory{CreatedAt: time.Now()}
	if dh.CreatedAt.Before(before) {
		t.Fatal("decision history timestamp should not precede the pre-call clock")
	}
}
