package catalog

import (
	"fmt"
	"sort"

	"github.com/steveyegge/catalogmatch/internal/types"
)

const maxOwnerResults = 10

// SearchOwners scores every distinct owner across the matched domains
// per spec §4.5 and returns the top 10.
func SearchOwners(domainMatches []types.DomainMatch, owners map[string]*types.OwnerInfo) []types.OwnerMatch {
	seen := make(map[string]struct{})
	var matches []types.OwnerMatch

	for _, dm := range domainMatches {
		for _, o := range owners {
			if o.DomainID != dm.Domain.ID {
				continue
			}
			if _, ok := seen[o.ID]; ok {
				continue
			}
			seen[o.ID] = struct{}{}

			score := 0.6*dm.Score + 0.4*o.ApprovalRate
			matches = append(matches, types.OwnerMatch{
				Owner: o,
				Score: score,
				Reasoning: fmt.Sprintf("owner of domain %s (approval rate %.2f)", dm.Domain.ID, o.ApprovalRate),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Owner.ID < matches[j].Owner.ID
	})
	if len(matches) > maxOwnerResults {
		matches = matches[:maxOwnerResults]
	}
	return matches
}
