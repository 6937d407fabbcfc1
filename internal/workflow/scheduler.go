package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueSweeper runs the involvement-overdue sweep from spec §4.9 on a
// fixed tick, mirroring the same ticker-plus-shutdown-channel pattern as
// internal/quality.Scheduler (itself generalized from the teacher's
// internal/rpc/server_decision_sweeper.go).
type OverdueSweeper struct {
	engine   *Engine
	log      *zap.Logger
	interval time.Duration

	shutdown chan struct{}
	done     chan struct{}
}

// NewOverdueSweeper builds a sweeper; interval comes from config
// (involvement_sweep_interval_minutes).
func NewOverdueSweeper(engine *Engine, log *zap.Logger, interval time.Duration) *OverdueSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverdueSweeper{
		engine:   engine,
		log:      log,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sweep as a background goroutine.
func (s *OverdueSweeper) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop signals the loop to exit and blocks until the current tick
// drains (spec §5: background schedulers must drain in-flight work).
func (s *OverdueSweeper) Stop() {
	close(s.shutdown)
	<-s.done
}

func (s *OverdueSweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.engine.SweepOverdue(ctx, now)
			s.log.Info("workflow: involvement sweep complete")
		}
	}
}
