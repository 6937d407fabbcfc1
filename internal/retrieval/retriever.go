// Package retrieval implements the table/column search stages of the
// retrieval DAG (spec §4.6–§4.8): disambiguation scoring, the
// column-search merge rule, and LLM reranking.
package retrieval

import (
	"context"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// RetrievedRecord is one hit returned by a Retriever.Search call (spec
// §6.2). Distance is in [0,1]; semantic_score = 1 - Distance.
type RetrievedRecord struct {
	ID              string
	Name            string
	DisplayName     string
	Description     string
	Domain          string
	Keywords        map[string]struct{}
	OwnerID         string
	OwnerName       string
	DataLayer       types.DataLayer
	IsGoldenSource  bool
	IsVisaoCliente  bool
	UpdateFrequency types.UpdateFrequency
	InferredProduct string
	LastUpdated     *int64
	Distance        float64

	// ParentTableID is set for column-index hits: the table the column
	// belongs to (spec §4.7 "results are grouped by parent table").
	ParentTableID string
	ColumnName    string
}

// Retriever is the vector-search capability interface (spec §6.2). The
// core depends only on this narrow contract; Embedder/vector-DB choice
// is an external collaborator's concern.
type Retriever interface {
	Search(ctx context.Context, query string, domainFilter string, k int) ([]RetrievedRecord, error)
	IndexTable(ctx context.Context, record RetrievedRecord) error
	IndexColumn(ctx context.Context, record RetrievedRecord) error
}
