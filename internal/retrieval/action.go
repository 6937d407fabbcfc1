package retrieval

import "github.com/steveyegge/catalogmatch/internal/types"

// BuildAction derives the /search/single recommendation (spec §6.1):
// USE_TABLE iff data exists and the top table clears actionThreshold
// (default 0.70); CREATE_INVOLVEMENT iff data needs creation; otherwise
// CONFIRM_WITH_OWNER.
func BuildAction(existence types.DataExistence, topScore float64, actionThreshold float64) types.Action {
	switch {
	case existence == types.DataExistsYes && topScore >= actionThreshold:
		return types.ActionUseTable
	case existence == types.DataNeedsCreation:
		return types.ActionCreateInvolvement
	default:
		return types.ActionConfirmWithOwner
	}
}
