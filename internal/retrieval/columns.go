package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// fieldKeywords trigger the column-search branch when present anywhere
// in the raw query (spec §4.7).
var fieldKeywords = []string{"campo", "coluna", "atributo", "variável", "variavel", "field"}

var fieldEntityTypes = map[string]struct{}{
	"cpf": {}, "cnpj": {}, "campo": {}, "coluna": {},
}

// ShouldSearchColumns reports whether the column-search branch should
// activate for rawQuery/intent (spec §4.7).
func ShouldSearchColumns(rawQuery string, intent types.Intent) bool {
	lower := strings.ToLower(rawQuery)
	for _, kw := range fieldKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	_, ok := fieldEntityTypes[strings.ToLower(intent.TargetEntity)]
	return ok
}

const columnMergeBoost = 0.15

// columnGroup is one parent table's aggregated column-search hits.
type columnGroup struct {
	tableID         string
	bestSimilarity  float64
	matchedColumns  []string
	representative  RetrievedRecord
}

// SearchColumns queries the column-vector index and returns the raw
// column hits; MergeColumnResults groups them by parent table (spec §4.7).
func SearchColumns(ctx context.Context, retriever Retriever, query string, domainFilter string) ([]RetrievedRecord, error) {
	return retriever.Search(ctx, query, domainFilter, maxRetrieverResults)
}

func groupColumnsByTable(records []RetrievedRecord) map[string]*columnGroup {
	groups := make(map[string]*columnGroup)
	for _, rec := range records {
		similarity := 1.0 - rec.Distance
		g, ok := groups[rec.ParentTableID]
		if !ok {
			g = &columnGroup{tableID: rec.ParentTableID, representative: rec}
			groups[rec.ParentTableID] = g
		}
		if similarity > g.bestSimilarity {
			g.bestSimilarity = similarity
			g.representative = rec
		}
		g.matchedColumns = append(g.matchedColumns, rec.ColumnName)
	}
	return groups
}

// MergeColumnResults applies spec §4.7's merge rule: existing table
// matches are boosted by 0.15 (capped at 1.0) and annotated with the
// column-match reasoning; new tables are inserted with neutral
// disambiguation components.
func MergeColumnResults(tableMatches []types.TableMatch, columnRecords []RetrievedRecord) []types.TableMatch {
	byID := make(map[string]int, len(tableMatches))
	for i, m := range tableMatches {
		byID[m.Table.ID] = i
	}

	groups := groupColumnsByTable(columnRecords)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	merged := append([]types.TableMatch(nil), tableMatches...)
	for _, id := range ids {
		g := groups[id]
		reasoning := fmt.Sprintf("column match: %s", strings.Join(g.matchedColumns, ", "))

		if idx, ok := byID[id]; ok {
			m := merged[idx]
			m.Score = min1(m.Score + columnMergeBoost)
			m.MatchedEntities = append(m.MatchedEntities, g.matchedColumns...)
			m.Reasoning = m.Reasoning + "; " + reasoning
			merged[idx] = m
			continue
		}

		table := recordToTableInfo(g.representative)
		table.ID = g.tableID
		merged = append(merged, types.TableMatch{
			Table: table,
			Score: g.bestSimilarity,
			Components: types.ComponentScores{
				Semantic:       g.bestSimilarity,
				Historical:     0.5,
				Certification:  0.3,
				Freshness:      0.5,
				Quality:        0.5,
				Context:        0.3,
				Disambiguation: 0.3,
			},
			Reasoning:       reasoning,
			MatchedEntities: g.matchedColumns,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > maxTableResults {
		merged = merged[:maxTableResults]
	}
	return merged
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
