package quality

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Source is the external quality-metric provider (spec §6.2
// QualitySource). GetAll/GetUpdatedSince return table_name, score, and
// the source's own last-updated timestamp.
type Source interface {
	GetAll(ctx context.Context) ([]Metric, error)
	GetUpdatedSince(ctx context.Context, since time.Time) ([]Metric, error)
}

// Metric is one row reported by a Source.
type Metric struct {
	TableName    string
	QualityScore float64
	LastUpdated  time.Time
}

// NopSource is a Source that reports no metrics; it lets the daemon run
// with a warm-but-empty QualityCache when no external quality service is
// configured, falling back to the catalog's default_score (spec §4.10).
type NopSource struct{}

func (NopSource) GetAll(ctx context.Context) ([]Metric, error)                     { return nil, nil }
func (NopSource) GetUpdatedSince(ctx context.Context, since time.Time) ([]Metric, error) {
	return nil, nil
}

// Scheduler runs the sync jobs described in spec §4.10: a full sync at
// startup, then an incremental sync at most once per calendar day at
// syncHour, checked every checkInterval. It mirrors the teacher's
// ticker-plus-shutdown-channel sweeper (internal/rpc/server_decision_sweeper.go
// in the teacher repo), generalized from a decision-expiry sweep to a
// quality-metric sync.
type Scheduler struct {
	cache         *Cache
	source        Source
	log           *zap.Logger
	checkInterval time.Duration
	syncHour      int

	shutdown chan struct{}
	done     chan struct{}
}

// NewScheduler builds a Scheduler. checkInterval and syncHour come from
// config (quality_sync_check_interval_hours, quality_sync_hour).
func NewScheduler(cache *Cache, source Source, log *zap.Logger, checkInterval time.Duration, syncHour int) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cache:         cache,
		source:        source,
		log:           log,
		checkInterval: checkInterval,
		syncHour:      syncHour,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start performs the initial full sync, then launches the periodic
// incremental-sync loop as a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.fullSync(ctx)
	go s.loop()
}

// Stop signals the background loop to exit and blocks until it drains
// its current tick (spec §5: "background schedulers... must drain
// in-flight batches").
func (s *Scheduler) Stop() {
	close(s.shutdown)
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	var lastSyncDay int
	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			if now.Hour() < s.syncHour || now.YearDay() == lastSyncDay {
				continue
			}
			s.incrementalSync(context.Background())
			lastSyncDay = now.YearDay()
		}
	}
}

func (s *Scheduler) fullSync(ctx context.Context) {
	metrics, err := s.source.GetAll(ctx)
	if err != nil {
		s.log.Warn("quality: full sync failed, keeping stale cache", zap.Error(err))
		return
	}
	now := time.Now()
	for _, m := range metrics {
		s.cache.Set(m.TableName, m.QualityScore, m.LastUpdated, now)
	}
	s.cache.markFullSync(now)
	s.log.Info("quality: full sync complete", zap.Int("tables", len(metrics)))
}

func (s *Scheduler) incrementalSync(ctx context.Context) {
	since, ok := s.cache.LastSyncAge(time.Now())
	_ = ok
	lastSync := time.Now().Add(-since)

	updated, err := s.source.GetUpdatedSince(ctx, lastSync)
	if err != nil {
		s.log.Warn("quality: incremental sync failed, retrying next tick", zap.Error(err))
		return
	}
	if len(updated) == 0 {
		s.log.Info("quality: sync skipped: no_updates")
		return
	}

	now := time.Now()
	for _, m := range updated {
		s.cache.Set(m.TableName, m.QualityScore, m.LastUpdated, now)
	}
	s.cache.markIncrementalSync(now)
	s.log.Info("quality: incremental sync complete", zap.Int("tables", len(updated)))
}

// ForceSync bypasses the daily-guard and check-interval gating to
// perform an incremental sync immediately.
func (s *Scheduler) ForceSync(ctx context.Context) {
	s.incrementalSync(ctx)
}
