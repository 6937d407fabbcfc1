package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/types"
)

const rerankSpreadThreshold = 0.15
const maxRerankCandidates = 10
const maxRerankReasonLen = 100

// ShouldRerank implements spec §4.8's activation predicate.
func ShouldRerank(matches []types.TableMatch, skipRerank bool) bool {
	if skipRerank || len(matches) < 2 {
		return false
	}
	last := matches[len(matches)-1]
	if len(matches) > 5 {
		last = matches[4]
	}
	return matches[0].Score-last.Score < rerankSpreadThreshold
}

type rerankResponse struct {
	Ranking    []string `json:"ranking"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// Rerank reorders matches using the language model per spec §4.8. On
// any parse or network failure it returns the input unchanged.
func Rerank(ctx context.Context, model llm.LanguageModel, matches []types.TableMatch, deadline time.Time) []types.TableMatch {
	candidates := matches
	if len(candidates) > maxRerankCandidates {
		candidates = candidates[:maxRerankCandidates]
	}

	prompt := buildRerankPrompt(candidates)
	reply, err := model.Complete(ctx, prompt, deadline)
	if err != nil {
		return matches
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return matches
	}

	reasoning := parsed.Reasoning
	if len(reasoning) > maxRerankReasonLen {
		reasoning = reasoning[:maxRerankReasonLen]
	}

	return applyRanking(matches, parsed.Ranking, reasoning)
}

func applyRanking(matches []types.TableMatch, ranking []string, reasoning string) []types.TableMatch {
	byID := make(map[string]types.TableMatch, len(matches))
	for _, m := range matches {
		byID[m.Table.ID] = m
	}

	out := make([]types.TableMatch, 0, len(matches))
	used := make(map[string]struct{}, len(ranking))
	for _, id := range ranking {
		m, ok := byID[id]
		if !ok {
			continue
		}
		if reasoning != "" {
			m.Reasoning += " " + reasoning
		}
		out = append(out, m)
		used[id] = struct{}{}
	}
	for _, m := range matches {
		if _, ok := used[m.Table.ID]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func buildRerankPrompt(candidates []types.TableMatch) string {
	var b strings.Builder
	b.WriteString("Rank these candidate tables best-first for the user's request. Respond with a single JSON object {\"ranking\": [id,...], \"reasoning\": \"...\", \"confidence\": 0-1}.\n\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "id=%s score=%.2f golden_source=%v visao_cliente=%v reasoning=%q\n",
			c.Table.ID, c.Score, c.Table.IsGoldenSource, c.Table.IsVisaoCliente, c.Reasoning)
	}
	return b.String()
}

func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
