package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/catalogmatch/internal/apierrors"
	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/types"
)

type fakeValidator struct {
	activeTables  map[string]bool
	collaborators map[string]bool
	areas         map[string]bool
}

func (v fakeValidator) TableIsActive(id string) bool     { return v.activeTables[id] }
func (v fakeValidator) CollaboratorExists(id string) bool { return v.collaborators[id] }
func (v fakeValidator) AreaExists(area string) bool       { return v.areas[area] }

func newTestEngine() (*Engine, *Store) {
	store := NewStore()
	eng := NewEngine(store, NopNotifier{}, feedback.NewInMemoryStore(time.Minute), fakeValidator{
		activeTables:  map[string]bool{"tb_other": true},
		collaborators: map[string]bool{"u2": true},
		areas:         map[string]bool{"vendas": true},
	})
	return eng, store
}

func kindOf(t *testing.T, err error) apierrors.Kind {
	t.Helper()
	ae, ok := err.(*apierrors.Error)
	if !ok {
		t.Fatalf("error %v is not *apierrors.Error", err)
	}
	return ae.Kind
}

func TestSelectMatchTransitionsAndClearsSiblings(t *testing.T) {
	eng, store := newTestEngine()
	m1 := store.CreateMatch("var1", "tb1", "o1", "h1")
	m2 := store.CreateMatch("var1", "tb2", "o1", "h1")

	if err := eng.SelectMatch(context.Background(), m1.ID, "requester1"); err != nil {
		t.Fatalf("SelectMatch: %v", err)
	}

	got, _ := store.GetMatch(m1.ID)
	if got.Status != types.MatchPendingOwner || !got.IsSelected {
		t.Fatalf("m1 = %+v", got)
	}
	if store.VariableState("var1") != types.VariableOwnerReview {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
	sibling, _ := store.GetMatch(m2.ID)
	if sibling.IsSelected {
		t.Fatal("sibling should not be selected")
	}
	if len(store.History()) != 2 {
		t.Fatalf("history len = %d, want 2 (SUGGESTED->SELECTED, SELECTED->PENDING_OWNER)", len(store.History()))
	}
}

func TestSelectMatchRejectsNonSuggested(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	if err := eng.SelectMatch(context.Background(), m.ID, "r1"); err != nil {
		t.Fatal(err)
	}
	before := len(store.History())
	err := eng.SelectMatch(context.Background(), m.ID, "r1")
	if kindOf(t, err) != apierrors.Conflict {
		t.Fatalf("want Conflict, got %v", err)
	}
	if len(store.History()) != before {
		t.Fatal("conflict must not mutate history")
	}
}

func TestOwnerConfirmMatchRequiresUsageCriteria(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{Type: types.OwnerConfirmMatch})
	if kindOf(t, err) != apierrors.Validation {
		t.Fatalf("want Validation, got %v", err)
	}

	err = eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerConfirmMatch, UsageCriteria: "monthly sales reporting", Actor: "o1",
	})
	if err != nil {
		t.Fatalf("OwnerRespond: %v", err)
	}
	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchPendingRequester {
		t.Fatalf("status = %v", got.Status)
	}
	if store.VariableState("var1") != types.VariableRequesterReview {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
}

func TestOwnerCorrectTableCreatesRedirectedMatch(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerCorrectTable, CorrectedTableID: "tb_other", Actor: "o1",
	})
	if err != nil {
		t.Fatalf("OwnerRespond: %v", err)
	}
	original, _ := store.GetMatch(m.ID)
	if original.Status != types.MatchRedirected {
		t.Fatalf("original status = %v", original.Status)
	}

	matches := store.MatchesForVariable("var1")
	if len(matches) != 2 {
		t.Fatalf("expected a new match to be created, got %d matches", len(matches))
	}
}

func TestOwnerCorrectTableValidatesTable(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerCorrectTable, CorrectedTableID: "tb_unknown", Actor: "o1",
	})
	if kindOf(t, err) != apierrors.Validation {
		t.Fatalf("want Validation, got %v", err)
	}
}

func TestOwnerDataNotExistCreatesInvolvement(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{Type: types.OwnerDataNotExist, Actor: "o1"})
	if err != nil {
		t.Fatalf("OwnerRespond: %v", err)
	}

	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchRejected {
		t.Fatalf("status = %v", got.Status)
	}
	if store.VariableState("var1") != types.VariablePendingInvolvement {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
	inv, ok := store.GetInvolvement("var1")
	if !ok || inv.Status != types.InvolvementPending {
		t.Fatalf("involvement = %+v, ok=%v", inv, ok)
	}

	hist := store.History()
	last := hist[len(hist)-1]
	if last.Outcome != "NEGATIVE" {
		t.Fatalf("outcome = %q, want NEGATIVE", last.Outcome)
	}
}

func TestOwnerDelegatePersonReassignsOwnerAndStaysPendingOwner(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerDelegatePerson, DelegateCollaborator: "u2", Actor: "o1",
	})
	if err != nil {
		t.Fatalf("OwnerRespond: %v", err)
	}
	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchPendingOwner || got.OwnerID != "u2" {
		t.Fatalf("got = %+v", got)
	}
}

func TestOwnerDelegateAreaResetsVariableToMatched(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")

	err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerDelegateArea, DelegateArea: "vendas", Actor: "o1",
	})
	if err != nil {
		t.Fatalf("OwnerRespond: %v", err)
	}
	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchRedirected || got.IsSelected {
		t.Fatalf("got = %+v", got)
	}
	if store.VariableState("var1") != types.VariableMatched {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
}

func confirmedMatch(t *testing.T, eng *Engine, store *Store, variableID, tableID, ownerID, requester string) *types.WorkflowMatch {
	t.Helper()
	m := store.CreateMatch(variableID, tableID, ownerID, "h1")
	if err := eng.SelectMatch(context.Background(), m.ID, requester); err != nil {
		t.Fatal(err)
	}
	if err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{
		Type: types.OwnerConfirmMatch, UsageCriteria: "reporting", Actor: ownerID,
	}); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRequesterApprove(t *testing.T) {
	eng, store := newTestEngine()
	m := confirmedMatch(t, eng, store, "var1", "tb1", "o1", "r1")

	err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{Type: types.RequesterApprove, Actor: "r1"})
	if err != nil {
		t.Fatalf("RequesterRespond: %v", err)
	}
	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchApproved {
		t.Fatalf("status = %v", got.Status)
	}
	if store.VariableState("var1") != types.VariableApproved {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
}

func TestRequesterRejectRequiresReasonLength(t *testing.T) {
	eng, store := newTestEngine()
	m := confirmedMatch(t, eng, store, "var1", "tb1", "o1", "r1")

	err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{
		Type: types.RequesterRejectIrrelevant, Actor: "r1", RejectionReason: "too short",
	})
	if kindOf(t, err) != apierrors.Validation {
		t.Fatalf("want Validation, got %v", err)
	}
}

func TestRequesterRejectLoopCountIncrementsAndReturnsToOwner(t *testing.T) {
	eng, store := newTestEngine()
	m := confirmedMatch(t, eng, store, "var1", "tb1", "o1", "r1")

	err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{
		Type: types.RequesterRejectIncomplete, Actor: "r1", RejectionReason: "missing the monthly breakdown",
	})
	if err != nil {
		t.Fatalf("RequesterRespond: %v", err)
	}
	got, _ := store.GetMatch(m.ID)
	if got.Status != types.MatchPendingOwner {
		t.Fatalf("status = %v", got.Status)
	}
	if store.VariableState("var1") != types.VariableOwnerReview {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
	if len(got.RequesterResponses) != 1 || got.RequesterResponses[0].LoopCount != 1 {
		t.Fatalf("requester responses = %+v", got.RequesterResponses)
	}
}

func TestRequesterConfirmInUseRequiresCaseCreator(t *testing.T) {
	eng, store := newTestEngine()
	m := confirmedMatch(t, eng, store, "var1", "tb1", "o1", "r1")
	if err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{Type: types.RequesterApprove, Actor: "r1"}); err != nil {
		t.Fatal(err)
	}

	err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{Type: types.RequesterConfirmInUse, Actor: "someone-else"})
	if kindOf(t, err) != apierrors.Validation {
		t.Fatalf("want Validation, got %v", err)
	}

	if err := eng.RequesterRespond(context.Background(), m.ID, types.RequesterResponse{Type: types.RequesterConfirmInUse, Actor: "r1"}); err != nil {
		t.Fatalf("RequesterRespond: %v", err)
	}
	if store.VariableState("var1") != types.VariableInUse {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
}

func TestInvolvementLifecycle(t *testing.T) {
	eng, store := newTestEngine()
	m := store.CreateMatch("var1", "tb1", "o1", "h1")
	eng.SelectMatch(context.Background(), m.ID, "r1")
	if err := eng.OwnerRespond(context.Background(), m.ID, types.OwnerResponse{Type: types.OwnerDataNotExist, Actor: "o1"}); err != nil {
		t.Fatal(err)
	}

	expected := time.Now().Add(14 * 24 * time.Hour)
	if err := eng.SetInvolvementDate(context.Background(), "var1", expected, "o1"); err != nil {
		t.Fatalf("SetInvolvementDate: %v", err)
	}
	inv, _ := store.GetInvolvement("var1")
	if inv.Status != types.InvolvementInProgress {
		t.Fatalf("status = %v", inv.Status)
	}

	err := eng.CompleteInvolvement(context.Background(), "var1", "", "consignado", "o1")
	if kindOf(t, err) != apierrors.Validation {
		t.Fatalf("want Validation for empty table name, got %v", err)
	}

	if err := eng.CompleteInvolvement(context.Background(), "var1", "tb_new", "consignado", "o1"); err != nil {
		t.Fatalf("CompleteInvolvement: %v", err)
	}
	inv, _ = store.GetInvolvement("var1")
	if inv.Status != types.InvolvementCompleted || inv.CreatedTableName != "tb_new" {
		t.Fatalf("inv = %+v", inv)
	}
	if store.VariableState("var1") != types.VariableMatched {
		t.Fatalf("variable state = %v", store.VariableState("var1"))
	}
}

func TestSweepOverdueSendsOneReminderPerDay(t *testing.T) {
	eng, store := newTestEngine()
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	store.setInvolvement("var1", &types.Involvement{
		ID: "inv1", VariableID: "var1", OwnerID: "o1",
		Status: types.InvolvementInProgress, ExpectedCompletionDate: &past,
	})

	eng.SweepOverdue(context.Background(), now)
	inv, _ := store.GetInvolvement("var1")
	if inv.Status != types.InvolvementOverdue || inv.ReminderCount != 1 {
		t.Fatalf("inv = %+v", inv)
	}

	eng.SweepOverdue(context.Background(), now.Add(time.Hour))
	inv, _ = store.GetInvolvement("var1")
	if inv.ReminderCount != 1 {
		t.Fatalf("reminder count = %d, want still 1 within the same day", inv.ReminderCount)
	}

	eng.SweepOverdue(context.Background(), now.Add(25*time.Hour))
	inv, _ = store.GetInvolvement("var1")
	if inv.ReminderCount != 2 {
		t.Fatalf("reminder count = %d, want 2 after a new day", inv.ReminderCount)
	}
}

func TestAtMostOneSelectedPerVariableAfterRedirect(t *testing.T) {
	eng, store := newTestEngine()
	m1 := store.CreateMatch("var1", "tb1", "o1", "h1")
	store.CreateMatch("var1", "tb2", "o1", "h1")

	eng.SelectMatch(context.Background(), m1.ID, "r1")
	if err := eng.OwnerRespond(context.Background(), m1.ID, types.OwnerResponse{
		Type: types.OwnerCorrectTable, CorrectedTableID: "tb_other", Actor: "o1",
	}); err != nil {
		t.Fatal(err)
	}

	selected := 0
	for _, match := range store.MatchesForVariable("var1") {
		if match.IsSelected {
			selected++
		}
	}
	if selected != 1 {
		t.Fatalf("selected count = %d, want exactly 1", selected)
	}
}
