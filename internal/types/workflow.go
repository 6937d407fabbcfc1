package types

import "time"

// MatchStatus is the finite state set a WorkflowMatch moves through
// (spec §4.9).
type MatchStatus string

const (
	MatchSuggested           MatchStatus = "SUGGESTED"
	MatchSelected            MatchStatus = "SELECTED"
	MatchPendingOwner        MatchStatus = "PENDING_OWNER"
	MatchPendingRequester    MatchStatus = "PENDING_REQUESTER"
	MatchPendingValidation   MatchStatus = "PENDING_VALIDATION"
	MatchApproved            MatchStatus = "APPROVED"
	MatchRejected            MatchStatus = "REJECTED"
	MatchRejectedByRequester MatchStatus = "REJECTED_BY_REQUESTER"
	MatchRedirected          MatchStatus = "REDIRECTED"
)

// VariableState is the status of the requester's variable being resolved
// by the workflow (spec §4.9).
type VariableState string

const (
	VariablePending             VariableState = "PENDING"
	VariableAISearching         VariableState = "AI_SEARCHING"
	VariableSearching           VariableState = "SEARCHING"
	VariableMatched             VariableState = "MATCHED"
	VariableNoMatch             VariableState = "NO_MATCH"
	VariableOwnerReview         VariableState = "OWNER_REVIEW"
	VariableRequesterReview     VariableState = "REQUESTER_REVIEW"
	VariableApproved            VariableState = "APPROVED"
	VariableInUse               VariableState = "IN_USE"
	VariableCancelled           VariableState = "CANCELLED"
	VariablePendingInvolvement  VariableState = "PENDING_INVOLVEMENT"
)

// OwnerResponseType enumerates the commands an owner may issue against a
// PENDING_OWNER match (spec §4.9).
type OwnerResponseType string

const (
	OwnerConfirmMatch   OwnerResponseType = "CONFIRM_MATCH"
	OwnerCorrectTable   OwnerResponseType = "CORRECT_TABLE"
	OwnerDataNotExist   OwnerResponseType = "DATA_NOT_EXIST"
	OwnerDelegatePerson OwnerResponseType = "DELEGATE_PERSON"
	OwnerDelegateArea   OwnerResponseType = "DELEGATE_AREA"
)

// OwnerResponse is one authoritative owner action on a WorkflowMatch.
type OwnerResponse struct {
	ID              string
	MatchID         string
	Type            OwnerResponseType
	Actor           string
	UsageCriteria   string
	CorrectedTableID string
	DelegateCollaborator string
	DelegateArea    string
	CreatedAt       time.Time
}

// RequesterResponseType enumerates the commands a requester may issue.
type RequesterResponseType string

const (
	RequesterApprove            RequesterResponseType = "APPROVE"
	RequesterRejectIrrelevant   RequesterResponseType = "REJECT_IRRELEVANT"
	RequesterRejectIncomplete   RequesterResponseType = "REJECT_INCOMPLETE"
	RequesterRejectOther        RequesterResponseType = "REJECT_OTHER"
	RequesterConfirmInUse       RequesterResponseType = "CONFIRM_IN_USE"
)

// IsReject reports whether rt is any REJECT_* variant (spec §4.9).
func (rt RequesterResponseType) IsReject() bool {
	switch rt {
	case RequesterRejectIrrelevant, RequesterRejectIncomplete, RequesterRejectOther:
		return true
	default:
		return false
	}
}

// RequesterResponse is one authoritative requester action.
type RequesterResponse struct {
	ID                     string
	MatchID                string
	Type                   RequesterResponseType
	Actor                  string
	RejectionReason        string
	ExpectedDataDescription string
	ImprovementSuggestions string
	LoopCount              int
	CreatedAt              time.Time
}

// WorkflowMatch is the runtime coupling between a requester's variable and
// a candidate table (spec §3).
type WorkflowMatch struct {
	ID             string
	VariableID     string
	TableID        string
	ConceptHash    string // 16-hex, carried from the search that produced this match (spec §4.12)
	Status         MatchStatus
	IsSelected     bool
	OwnerID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	OwnerResponses []OwnerResponse
	RequesterResponses []RequesterResponse
}

// DecisionHistory is one append-only row recording a workflow transition
// (spec §4.9); the decision log is the training corpus for future
// learners and must be write-only from the core.
type DecisionHistory struct {
	ID               string
	VariableID       string
	MatchID          string
	Actor            string
	PreviousStatus   MatchStatus
	NextStatus       MatchStatus
	VariableContext  map[string]string
	TableContext     map[string]string
	MatchContext     map[string]string
	DecisionReason   string
	DecisionDetails  string
	// Outcome classifies the transition for aggregate reporting
	// (e.g. spec scenario 6 expects outcome=NEGATIVE on DATA_NOT_EXIST).
	Outcome   string
	CreatedAt time.Time
}

// InvolvementStatus is the state of a data-creation request.
type InvolvementStatus string

const (
	InvolvementPending    InvolvementStatus = "PENDING"
	InvolvementInProgress InvolvementStatus = "IN_PROGRESS"
	InvolvementCompleted  InvolvementStatus = "COMPLETED"
	InvolvementOverdue    InvolvementStatus = "OVERDUE"
)

// Involvement is a data-creation request raised when an owner confirms
// ownership but the data does not yet exist (spec §3).
type Involvement struct {
	ID                     string
	VariableID             string
	ExternalRequestNumber  string
	ExternalSystem         string
	RequesterID            string
	OwnerID                string
	ExpectedCompletionDate *time.Time
	ActualCompletionDate   *time.Time
	CreatedTableName       string
	CreatedConcept         string
	Status                 InvolvementStatus
	ReminderCount          int
	LastReminderAt         *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate checks the invariant from spec §3 (Involvement).
func (inv Involvement) Validate() error {
	if inv.Status == InvolvementCompleted && inv.CreatedTableName == "" {
		return errInvolvementCompletedNeedsTable
	}
	return nil
}

var errInvolvementCompletedNeedsTable = &validationError{"involvement: completed status requires created_table_name"}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
