package workflow

import (
	"sync"

	"github.com/google/uuid"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// Store holds every WorkflowMatch, its DecisionHistory trail, and
// Involvements, serializing transitions per WorkflowMatch.id (spec §5:
// "two concurrent transitions on the same match must be ordered").
// One mutex per match id (created on first use) avoids serializing
// unrelated matches behind a single global lock.
type Store struct {
	mu sync.RWMutex

	matches        map[string]*types.WorkflowMatch
	byVariable     map[string][]string // variable_id -> match ids
	involvements   map[string]*types.Involvement // keyed by variable_id
	history        []types.DecisionHistory
	variableStates map[string]types.VariableState
	creators       map[string]string // match id -> actor who selected it

	matchLocks sync.Map // match id -> *sync.Mutex
}

// NewStore builds an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		matches:        make(map[string]*types.WorkflowMatch),
		byVariable:     make(map[string][]string),
		involvements:   make(map[string]*types.Involvement),
		variableStates: make(map[string]types.VariableState),
		creators:       make(map[string]string),
	}
}

func (s *Store) setCreator(matchID, actor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators[matchID] = actor
}

func (s *Store) creatorOf(matchID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creators[matchID]
}

// VariableState returns the current state of variableID, defaulting to
// PENDING if untracked.
func (s *Store) VariableState(variableID string) types.VariableState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.variableStates[variableID]; ok {
		return st
	}
	return types.VariablePending
}

func (s *Store) setVariableState(variableID string, state types.VariableState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variableStates[variableID] = state
}

// lockFor returns the per-match mutex for id, creating it on first use.
func (s *Store) lockFor(id string) *sync.Mutex {
	v, _ := s.matchLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// CreateMatch inserts a new SUGGESTED match for variableID/tableID,
// carrying conceptHash forward so feedback recorded against this match
// aggregates under the same concept as the search that produced it.
func (s *Store) CreateMatch(variableID, tableID, ownerID, conceptHash string) *types.WorkflowMatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &types.WorkflowMatch{
		ID:          uuid.NewString(),
		VariableID:  variableID,
		TableID:     tableID,
		OwnerID:     ownerID,
		ConceptHash: conceptHash,
		Status:      types.MatchSuggested,
	}
	s.matches[m.ID] = m
	s.byVariable[variableID] = append(s.byVariable[variableID], m.ID)
	return m
}

func (s *Store) GetMatch(id string) (*types.WorkflowMatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	return m, ok
}

func (s *Store) MatchesForVariable(variableID string) []*types.WorkflowMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byVariable[variableID]
	out := make([]*types.WorkflowMatch, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.matches[id])
	}
	return out
}

// clearSiblingSelection marks every match for variableID other than
// keepID as not selected (spec §4.9 invariant: at most one is_selected
// per variable). Caller must hold the per-match lock for keepID; this
// only mutates siblings, never keepID itself.
func (s *Store) clearSiblingSelection(variableID, keepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byVariable[variableID] {
		if id == keepID {
			continue
		}
		if m := s.matches[id]; m != nil {
			m.IsSelected = false
		}
	}
}

func (s *Store) recordHistory(h types.DecisionHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = uuid.NewString()
	s.history = append(s.history, h)
}

// History returns every DecisionHistory row recorded so far (write-only
// from the engine's perspective; read access is for reporting/tests).
func (s *Store) History() []types.DecisionHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DecisionHistory, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) setInvolvement(variableID string, inv *types.Involvement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.involvements[variableID] = inv
}

func (s *Store) GetInvolvement(variableID string) (*types.Involvement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.involvements[variableID]
	return inv, ok
}

// AllInvolvements returns every tracked involvement, used by the
// overdue-sweep scheduler.
func (s *Store) AllInvolvements() []*types.Involvement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Involvement, 0, len(s.involvements))
	for _, inv := range s.involvements {
		out = append(out, inv)
	}
	return out
}
