package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/catalogmatch/internal/apierrors"
	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/types"
)

const minRejectionReasonLen = 10

// Validator resolves the identifiers an owner supplies when redirecting a
// match (corrected table, delegate collaborator, delegate area) against
// the live catalog snapshot.
type Validator interface {
	TableIsActive(tableID string) bool
	CollaboratorExists(userID string) bool
	AreaExists(area string) bool
}

// Engine drives WorkflowMatch transitions per spec §4.9. SelectMatch,
// OwnerRespond and RequesterRespond serialize on the match's per-id lock
// (Store.lockFor) so that two concurrent transitions on the same match
// are ordered; the involvement methods and SweepOverdue take no lock.
type Engine struct {
	Store     *Store
	Notifier  Notifier
	Feedback  feedback.Store
	Validator Validator
}

func NewEngine(store *Store, notifier Notifier, fb feedback.Store, validator Validator) *Engine {
	return &Engine{Store: store, Notifier: notifier, Feedback: fb, Validator: validator}
}

func (e *Engine) notify(ctx context.Context, userID, notifyType string, priority Priority, title, message, variableID string) {
	if e.Notifier == nil {
		return
	}
	_ = e.Notifier.Send(ctx, userID, notifyType, priority, title, message, "", variableID)
}

func (e *Engine) recordTransition(m *types.WorkflowMatch, actor string, prev, next types.MatchStatus, reason, details, outcome string) {
	e.Store.recordHistory(types.DecisionHistory{
		VariableID:      m.VariableID,
		MatchID:         m.ID,
		Actor:           actor,
		PreviousStatus:  prev,
		NextStatus:      next,
		MatchContext:    map[string]string{"table_id": m.TableID, "owner_id": m.OwnerID},
		DecisionReason:  reason,
		DecisionDetails: details,
		Outcome:         outcome,
		CreatedAt:       time.Now(),
	})
}

// SelectMatch implements SUGGESTED → SELECTED → PENDING_OWNER: the
// requester picks a recommendation, every sibling match for the same
// variable is deselected, and a notification is queued for the table
// owner (spec §4.9).
func (e *Engine) SelectMatch(ctx context.Context, matchID, actor string) error {
	lock := e.Store.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	m, ok := e.Store.GetMatch(matchID)
	if !ok {
		return apierrors.NotFoundf("match %s not found", matchID)
	}
	if m.Status != types.MatchSuggested {
		return apierrors.Conflictf("match %s is %s, not SUGGESTED", matchID, m.Status)
	}

	e.Store.clearSiblingSelection(m.VariableID, m.ID)
	e.Store.setCreator(m.ID, actor)

	prev := m.Status
	m.Status = types.MatchSelected
	m.IsSelected = true
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableOwnerReview)
	e.recordTransition(m, actor, prev, types.MatchSelected, "requester_selected", "", "")

	prev = m.Status
	m.Status = types.MatchPendingOwner
	m.UpdatedAt = time.Now()
	e.recordTransition(m, actor, prev, types.MatchPendingOwner, "owner_notification_dispatched", "", "")

	e.notify(ctx, m.OwnerID, "match_pending_review", PriorityNormal,
		"A variable was matched to your table", "Please confirm or correct this match.", m.VariableID)
	return nil
}

// OwnerRespond dispatches one of the five owner response types against a
// PENDING_OWNER match (spec §4.9). Validation failures never mutate state.
func (e *Engine) OwnerRespond(ctx context.Context, matchID string, resp types.OwnerResponse) error {
	lock := e.Store.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	m, ok := e.Store.GetMatch(matchID)
	if !ok {
		return apierrors.NotFoundf("match %s not found", matchID)
	}
	if m.Status != types.MatchPendingOwner {
		return apierrors.Conflictf("match %s is %s, not PENDING_OWNER", matchID, m.Status)
	}

	switch resp.Type {
	case types.OwnerConfirmMatch:
		return e.ownerConfirmMatch(ctx, m, resp)
	case types.OwnerCorrectTable:
		return e.ownerCorrectTable(ctx, m, resp)
	case types.OwnerDataNotExist:
		return e.ownerDataNotExist(ctx, m, resp)
	case types.OwnerDelegatePerson:
		return e.ownerDelegatePerson(ctx, m, resp)
	case types.OwnerDelegateArea:
		return e.ownerDelegateArea(ctx, m, resp)
	default:
		return apierrors.Validationf("unknown owner response type %q", resp.Type)
	}
}

func (e *Engine) ownerConfirmMatch(ctx context.Context, m *types.WorkflowMatch, resp types.OwnerResponse) error {
	if resp.UsageCriteria == "" {
		return apierrors.Validationf("usage_criteria is required for CONFIRM_MATCH")
	}
	resp.CreatedAt = time.Now()
	m.OwnerResponses = append(m.OwnerResponses, resp)

	prev := m.Status
	m.Status = types.MatchPendingRequester
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableRequesterReview)
	e.recordTransition(m, resp.Actor, prev, m.Status, "owner_confirmed", resp.UsageCriteria, "")

	e.notify(ctx, e.Store.creatorOf(m.ID), "match_pending_approval", PriorityNormal,
		"Owner confirmed your match", "Please review and approve.", m.VariableID)
	return nil
}

func (e *Engine) ownerCorrectTable(ctx context.Context, m *types.WorkflowMatch, resp types.OwnerResponse) error {
	if resp.CorrectedTableID == "" {
		return apierrors.Validationf("corrected_table_id is required for CORRECT_TABLE")
	}
	if e.Validator != nil && !e.Validator.TableIsActive(resp.CorrectedTableID) {
		return apierrors.Validationf("corrected_table_id %q is not an active table", resp.CorrectedTableID)
	}
	resp.CreatedAt = time.Now()
	m.OwnerResponses = append(m.OwnerResponses, resp)

	prev := m.Status
	m.Status = types.MatchRedirected
	m.UpdatedAt = time.Now()
	e.recordTransition(m, resp.Actor, prev, m.Status, "owner_corrected_table", resp.CorrectedTableID, "")

	next := e.Store.CreateMatch(m.VariableID, resp.CorrectedTableID, m.OwnerID, m.ConceptHash)
	return e.SelectMatch(ctx, next.ID, resp.Actor)
}

func (e *Engine) ownerDataNotExist(ctx context.Context, m *types.WorkflowMatch, resp types.OwnerResponse) error {
	resp.CreatedAt = time.Now()
	m.OwnerResponses = append(m.OwnerResponses, resp)

	prev := m.Status
	m.Status = types.MatchRejected
	m.IsSelected = false
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariablePendingInvolvement)
	e.recordTransition(m, resp.Actor, prev, m.Status, "owner_reports_data_not_exist", "", "NEGATIVE")

	inv := &types.Involvement{
		ID:         uuid.NewString(),
		VariableID: m.VariableID,
		OwnerID:    m.OwnerID,
		Status:     types.InvolvementPending,
		CreatedAt:  time.Now(),
	}
	e.Store.setInvolvement(m.VariableID, inv)

	e.notify(ctx, e.Store.creatorOf(m.ID), "involvement_created", PriorityHigh,
		"Data creation requested", "The requested data does not yet exist; please provide an expected completion date.", m.VariableID)
	return nil
}

func (e *Engine) ownerDelegatePerson(ctx context.Context, m *types.WorkflowMatch, resp types.OwnerResponse) error {
	if resp.DelegateCollaborator == "" {
		return apierrors.Validationf("delegate_collaborator is required for DELEGATE_PERSON")
	}
	if e.Validator != nil && !e.Validator.CollaboratorExists(resp.DelegateCollaborator) {
		return apierrors.Validationf("delegate_collaborator %q does not exist", resp.DelegateCollaborator)
	}
	resp.CreatedAt = time.Now()
	m.OwnerResponses = append(m.OwnerResponses, resp)

	prev := m.Status
	m.OwnerID = resp.DelegateCollaborator
	m.UpdatedAt = time.Now()
	e.recordTransition(m, resp.Actor, prev, types.MatchPendingOwner, "owner_delegated_person", resp.DelegateCollaborator, "")

	e.notify(ctx, m.OwnerID, "match_pending_review", PriorityNormal,
		"A match was delegated to you", "Please confirm or correct this match.", m.VariableID)
	return nil
}

func (e *Engine) ownerDelegateArea(ctx context.Context, m *types.WorkflowMatch, resp types.OwnerResponse) error {
	if resp.DelegateArea == "" {
		return apierrors.Validationf("delegate_area is required for DELEGATE_AREA")
	}
	if e.Validator != nil && !e.Validator.AreaExists(resp.DelegateArea) {
		return apierrors.Validationf("delegate_area %q does not exist", resp.DelegateArea)
	}
	resp.CreatedAt = time.Now()
	m.OwnerResponses = append(m.OwnerResponses, resp)

	prev := m.Status
	m.Status = types.MatchRedirected
	m.IsSelected = false
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableMatched)
	e.recordTransition(m, resp.Actor, prev, m.Status, "owner_delegated_area", resp.DelegateArea, "")
	return nil
}

// RequesterRespond dispatches APPROVE, REJECT_*, or CONFIRM_IN_USE
// against the owning match (spec §4.9).
func (e *Engine) RequesterRespond(ctx context.Context, matchID string, resp types.RequesterResponse) error {
	lock := e.Store.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	m, ok := e.Store.GetMatch(matchID)
	if !ok {
		return apierrors.NotFoundf("match %s not found", matchID)
	}

	switch {
	case resp.Type == types.RequesterApprove:
		return e.requesterApprove(ctx, m, resp)
	case resp.Type.IsReject():
		return e.requesterReject(ctx, m, resp)
	case resp.Type == types.RequesterConfirmInUse:
		return e.requesterConfirmInUse(ctx, m, resp)
	default:
		return apierrors.Validationf("unknown requester response type %q", resp.Type)
	}
}

func (e *Engine) requesterApprove(ctx context.Context, m *types.WorkflowMatch, resp types.RequesterResponse) error {
	if m.Status != types.MatchPendingRequester {
		return apierrors.Conflictf("match %s is %s, not PENDING_REQUESTER", m.ID, m.Status)
	}
	resp.CreatedAt = time.Now()
	m.RequesterResponses = append(m.RequesterResponses, resp)

	prev := m.Status
	m.Status = types.MatchApproved
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableApproved)
	e.recordTransition(m, resp.Actor, prev, m.Status, "requester_approved", "", "POSITIVE")

	if e.Feedback != nil {
		_, _ = e.Feedback.RecordDecision(ctx, types.DecisionRecord{
			RequestID:   m.ID,
			ConceptHash: m.ConceptHash,
			TableID:     m.TableID,
			OwnerID:     m.OwnerID,
			Outcome:     types.OutcomeApproved,
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

func (e *Engine) requesterReject(ctx context.Context, m *types.WorkflowMatch, resp types.RequesterResponse) error {
	if m.Status != types.MatchPendingRequester {
		return apierrors.Conflictf("match %s is %s, not PENDING_REQUESTER", m.ID, m.Status)
	}
	if len(resp.RejectionReason) < minRejectionReasonLen {
		return apierrors.Validationf("rejection_reason must be at least %d characters", minRejectionReasonLen)
	}

	loopCount := 1
	for _, prior := range m.RequesterResponses {
		if prior.Type.IsReject() {
			loopCount++
		}
	}
	resp.LoopCount = loopCount
	resp.CreatedAt = time.Now()
	m.RequesterResponses = append(m.RequesterResponses, resp)

	prev := m.Status
	m.Status = types.MatchPendingOwner
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableOwnerReview)
	e.recordTransition(m, resp.Actor, prev, m.Status, "requester_rejected", resp.RejectionReason, "NEGATIVE")

	if e.Feedback != nil {
		_, _ = e.Feedback.RecordDecision(ctx, types.DecisionRecord{
			RequestID:   m.ID,
			ConceptHash: m.ConceptHash,
			TableID:     m.TableID,
			OwnerID:     m.OwnerID,
			Outcome:     types.OutcomeRejected,
			CreatedAt:   time.Now(),
		})
	}

	e.notify(ctx, m.OwnerID, "match_rejected", PriorityNormal,
		"Requester rejected the match", resp.RejectionReason, m.VariableID)
	return nil
}

func (e *Engine) requesterConfirmInUse(ctx context.Context, m *types.WorkflowMatch, resp types.RequesterResponse) error {
	if m.Status != types.MatchApproved {
		return apierrors.Conflictf("match %s is %s, not APPROVED", m.ID, m.Status)
	}
	if creator := e.Store.creatorOf(m.ID); creator != "" && creator != resp.Actor {
		return apierrors.Validationf("confirm_in_use actor must be the case creator")
	}
	resp.CreatedAt = time.Now()
	m.RequesterResponses = append(m.RequesterResponses, resp)

	prev := m.Status
	m.UpdatedAt = time.Now()
	e.Store.setVariableState(m.VariableID, types.VariableInUse)
	e.recordTransition(m, resp.Actor, prev, m.Status, "requester_confirmed_in_use", "", "")
	return nil
}

// CreateInvolvement starts the data-creation subflow directly (used by
// callers outside the owner DATA_NOT_EXIST path, e.g. manual creation).
func (e *Engine) CreateInvolvement(variableID, requesterID, ownerID string) *types.Involvement {
	inv := &types.Involvement{
		ID:          uuid.NewString(),
		VariableID:  variableID,
		RequesterID: requesterID,
		OwnerID:     ownerID,
		Status:      types.InvolvementPending,
		CreatedAt:   time.Now(),
	}
	e.Store.setInvolvement(variableID, inv)
	e.Store.setVariableState(variableID, types.VariablePendingInvolvement)
	return inv
}

// SetInvolvementDate implements PENDING → IN_PROGRESS: the owner commits
// to an expected completion date (spec §4.9 involvement subflow).
func (e *Engine) SetInvolvementDate(ctx context.Context, variableID string, expected time.Time, actor string) error {
	inv, ok := e.Store.GetInvolvement(variableID)
	if !ok {
		return apierrors.NotFoundf("involvement for variable %s not found", variableID)
	}
	if inv.Status != types.InvolvementPending {
		return apierrors.Conflictf("involvement for variable %s is %s, not PENDING", variableID, inv.Status)
	}
	inv.ExpectedCompletionDate = &expected
	inv.Status = types.InvolvementInProgress
	inv.UpdatedAt = time.Now()
	return nil
}

// CompleteInvolvement implements IN_PROGRESS|OVERDUE → COMPLETED: the
// owner reports the newly created table and concept, and the variable
// returns to MATCHED (spec §4.9 involvement subflow).
func (e *Engine) CompleteInvolvement(ctx context.Context, variableID, tableName, concept, actor string) error {
	inv, ok := e.Store.GetInvolvement(variableID)
	if !ok {
		return apierrors.NotFoundf("involvement for variable %s not found", variableID)
	}
	if inv.Status != types.InvolvementInProgress && inv.Status != types.InvolvementOverdue {
		return apierrors.Conflictf("involvement for variable %s is %s, not IN_PROGRESS/OVERDUE", variableID, inv.Status)
	}
	if tableName == "" {
		return apierrors.Validationf("created_table_name is required to complete an involvement")
	}
	now := time.Now()
	inv.CreatedTableName = tableName
	inv.CreatedConcept = concept
	inv.Status = types.InvolvementCompleted
	inv.ActualCompletionDate = &now
	inv.UpdatedAt = now
	e.Store.setVariableState(variableID, types.VariableMatched)
	return nil
}

// SweepOverdue marks every IN_PROGRESS involvement whose expected
// completion date has passed as OVERDUE, then sends at most one
// reminder per overdue involvement per calendar day (spec §4.9).
func (e *Engine) SweepOverdue(ctx context.Context, now time.Time) {
	for _, inv := range e.Store.AllInvolvements() {
		if inv.Status == types.InvolvementInProgress && inv.ExpectedCompletionDate != nil && now.After(*inv.ExpectedCompletionDate) {
			inv.Status = types.InvolvementOverdue
			inv.UpdatedAt = now
		}
		if inv.Status != types.InvolvementOverdue {
			continue
		}
		if inv.LastReminderAt != nil && sameDay(*inv.LastReminderAt, now) {
			continue
		}
		inv.ReminderCount++
		inv.LastReminderAt = &now
		e.notify(ctx, inv.OwnerID, "involvement_overdue", PriorityHigh,
			"Data creation is overdue", "The expected completion date has passed.", inv.VariableID)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
