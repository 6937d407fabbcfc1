package retrieval

import (
	"fmt"

	"github.com/steveyegge/catalogmatch/internal/types"
)

const scoreTieThreshold = 0.05
const lowConfidenceThreshold = 0.40

// CheckAmbiguity inspects the ranked table matches and produces the
// Ambiguity verdict consumed by the HTTP surface (spec §6.1, scenarios
// in §8).
func CheckAmbiguity(matches []types.TableMatch) types.Ambiguity {
	if len(matches) == 0 {
		return types.Ambiguity{Type: types.AmbiguityNone}
	}

	top := matches[0]

	if allBelow(matches, lowConfidenceThreshold) {
		return types.Ambiguity{
			Type:               types.AmbiguityLowConfidence,
			ProvisionalTableID:  top.Table.ID,
			ClarifyingQuestion: "Could you provide more detail about the specific data you need?",
		}
	}

	if len(matches) >= 2 {
		second := matches[1]
		if top.Score-second.Score < scoreTieThreshold && top.Table.DomainID != second.Table.DomainID {
			return types.Ambiguity{
				Type: types.AmbiguityDomainConflict,
				Options: []types.AmbiguityOption{
					optionFor(top), optionFor(second),
				},
				ProvisionalTableID: top.Table.ID,
				ClarifyingQuestion: fmt.Sprintf("Did you mean data from %s or %s?", top.Table.DomainID, second.Table.DomainID),
			}
		}
	}

	if products := distinctProducts(top5(matches)); len(products) > 1 {
		opts := make([]types.AmbiguityOption, 0, len(products))
		seen := make(map[string]struct{}, len(products))
		for _, m := range top5(matches) {
			if m.Table.InferredProduct == "" {
				continue
			}
			if _, ok := seen[m.Table.InferredProduct]; ok {
				continue
			}
			seen[m.Table.InferredProduct] = struct{}{}
			opts = append(opts, optionFor(m))
		}
		return types.Ambiguity{
			Type:               types.AmbiguityMultipleProducts,
			Options:            opts,
			ProvisionalTableID: top.Table.ID,
			ClarifyingQuestion: "Which product line are you interested in?",
		}
	}

	return types.Ambiguity{Type: types.AmbiguityNone, ProvisionalTableID: top.Table.ID}
}

func allBelow(matches []types.TableMatch, threshold float64) bool {
	for _, m := range matches {
		if m.Score >= threshold {
			return false
		}
	}
	return true
}

func top5(matches []types.TableMatch) []types.TableMatch {
	if len(matches) > 5 {
		return matches[:5]
	}
	return matches
}

func distinctProducts(matches []types.TableMatch) map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range matches {
		if m.Table.InferredProduct != "" {
			set[m.Table.InferredProduct] = struct{}{}
		}
	}
	return set
}

func optionFor(m types.TableMatch) types.AmbiguityOption {
	return types.AmbiguityOption{
		TableID: m.Table.ID,
		Domain:  m.Table.DomainID,
		Product: m.Table.InferredProduct,
		Score:   m.Score,
		Label:   fmt.Sprintf("%s (%s)", m.Table.DisplayName, m.Table.DomainID),
	}
}
