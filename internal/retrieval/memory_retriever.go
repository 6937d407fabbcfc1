package retrieval

import (
	"context"
	"strings"
)

// MemoryRetriever is a local, dependency-free Retriever: keyword-overlap
// scoring over an in-memory slice of records. Retriever.Search's doc
// comment calls the embedder/vector-DB choice "an external
// collaborator's concern" (spec §6.2); MemoryRetriever is the default
// collaborator for local runs and the integration test harness, where
// no pgvector/OpenSearch endpoint is configured.
type MemoryRetriever struct {
	records []RetrievedRecord
}

var _ Retriever = (*MemoryRetriever)(nil)

// NewMemoryRetriever seeds a MemoryRetriever from an initial record set,
// typically the table/column rows of a loaded catalog snapshot.
func NewMemoryRetriever(seed []RetrievedRecord) *MemoryRetriever {
	return &MemoryRetriever{records: append([]RetrievedRecord(nil), seed...)}
}

func (m *MemoryRetriever) Search(ctx context.Context, query, domainFilter string, k int) ([]RetrievedRecord, error) {
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		record RetrievedRecord
		score  float64
	}
	var candidates []scored
	for _, r := range m.records {
		if domainFilter != "" && r.Domain != domainFilter {
			continue
		}
		score := overlapScore(terms, r)
		if score > 0 || domainFilter != "" {
			candidates = append(candidates, scored{r, score})
		}
	}

	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].score < candidates[j].score {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}

	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}
	out := make([]RetrievedRecord, 0, k)
	for _, c := range candidates[:k] {
		rec := c.record
		rec.Distance = 1.0 - c.score
		out = append(out, rec)
	}
	return out, nil
}

func overlapScore(terms []string, r RetrievedRecord) float64 {
	haystack := strings.ToLower(r.Name + " " + r.DisplayName + " " + r.Description)
	hits := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			hits++
		}
		if _, ok := r.Keywords[t]; ok {
			hits++
		}
	}
	if len(terms) == 0 {
		return 0
	}
	score := float64(hits) / float64(len(terms))
	if score > 1 {
		score = 1
	}
	return score
}

func (m *MemoryRetriever) IndexTable(ctx context.Context, record RetrievedRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *MemoryRetriever) IndexColumn(ctx context.Context, record RetrievedRecord) error {
	m.records = append(m.records, record)
	return nil
}
