// Package workflow implements the decision-and-feedback state machine
// (spec §4.9): WorkflowMatch transitions, the involvement subflow, and
// the append-only DecisionHistory log, generalizing the teacher's
// iteration/loop-count bookkeeping (internal/decision/iterate.go) and
// ticker-driven sweep (internal/rpc/server_decision_sweeper.go).
package workflow

import "context"

// Priority mirrors the teacher's notification priority levels.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notifier is the outbound notification capability interface (spec
// §6.2). Send is best-effort: the engine ignores its error, so a failure
// never aborts a state transition (spec §4.9); notify.Dispatcher logs
// its own channel failures.
type Notifier interface {
	Send(ctx context.Context, userID, notifyType string, priority Priority, title, message string, actionURL, variableID string) error
}

// NopNotifier discards every notification; useful for tests.
type NopNotifier struct{}

func (NopNotifier) Send(ctx context.Context, userID, notifyType string, priority Priority, title, message, actionURL, variableID string) error {
	return nil
}
