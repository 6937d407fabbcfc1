package feedback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/catalogmatch/internal/cache"
	"github.com/steveyegge/catalogmatch/internal/types"
)

// TopTable is one row of GetTopTablesForConcept's result.
type TopTable struct {
	TableID      string
	ApprovalRate float64
	SampleCount  int
}

// Store is the FeedbackStore capability interface (spec §4.12).
// Implementations must be safe for concurrent use by multiple requests.
type Store interface {
	RecordDecision(ctx context.Context, rec types.DecisionRecord) (string, error)
	GetHistoricalScore(ctx context.Context, conceptHash, tableID string, minSamples int) (score float64, sampleCount int, err error)
	GetTopTablesForConcept(ctx context.Context, conceptHash string, limit int) ([]TopTable, error)
}

const neutralScore = 0.5
const cachedSentinel = -1

func aggregateKey(conceptHash, tableID string) string {
	return conceptHash + "|" + tableID
}

// InMemoryStore is the default Store implementation: an append-only
// slice of records guarded by a mutex, with a TTL-cached aggregate
// layer (spec §4.12 "caches for cache_ttl_minutes"). Production
// deployments back the same interface with an RDBMS (see SQLStore).
type InMemoryStore struct {
	mu      sync.Mutex
	records []types.DecisionRecord
	seen    map[string]struct{} // dedupe key: request_id|table_id|outcome

	aggregates *cache.TTLCache[string, float64]
}

// NewInMemoryStore builds an InMemoryStore whose aggregate cache entries
// expire after ttl (spec default: 5 minutes).
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		seen:       make(map[string]struct{}),
		aggregates: cache.New[string, float64](4096, ttl),
	}
}

func dedupeKey(rec types.DecisionRecord) string {
	return rec.RequestID + "|" + rec.TableID + "|" + string(rec.Outcome)
}

// RecordDecision appends rec (idempotently: re-recording an identical
// request_id/table_id/outcome triple has no additional aggregate
// effect), invalidating the cached aggregate for (concept_hash, table_id).
func (s *InMemoryStore) RecordDecision(ctx context.Context, rec types.DecisionRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupeKey(rec)
	if _, dup := s.seen[key]; dup {
		for _, existing := range s.records {
			if dedupeKey(existing) == key {
				return existing.ID, nil
			}
		}
	}
	s.seen[key] = struct{}{}

	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()
	s.records = append(s.records, rec)

	s.aggregates.Invalidate(aggregateKey(rec.ConceptHash, rec.TableID))
	return rec.ID, nil
}

// GetHistoricalScore returns the empirical approval rate for
// (conceptHash, tableID), or (0.5, count) if fewer than minSamples
// records exist. A cache hit returns sampleCount = -1 as a sentinel
// (spec §4.12).
func (s *InMemoryStore) GetHistoricalScore(ctx context.Context, conceptHash, tableID string, minSamples int) (float64, int, error) {
	key := aggregateKey(conceptHash, tableID)
	if cached, ok := s.aggregates.Get(key); ok {
		return cached, cachedSentinel, nil
	}

	s.mu.Lock()
	approved, total := 0, 0
	for _, r := range s.records {
		if r.ConceptHash != conceptHash || r.TableID != tableID {
			continue
		}
		total++
		if r.Outcome == types.OutcomeApproved {
			approved++
		}
	}
	s.mu.Unlock()

	if total < minSamples {
		return neutralScore, total, nil
	}
	score := float64(approved) / float64(total)
	s.aggregates.Set(key, score)
	return score, total, nil
}

// GetTopTablesForConcept returns up to limit tables with at least 3
// historical samples for conceptHash, ordered by approval rate then
// sample count.
func (s *InMemoryStore) GetTopTablesForConcept(ctx context.Context, conceptHash string, limit int) ([]TopTable, error) {
	s.mu.Lock()
	counts := make(map[string]struct{ approved, total int })
	for _, r := range s.records {
		if r.ConceptHash != conceptHash {
			continue
		}
		c := counts[r.TableID]
		c.total++
		if r.Outcome == types.OutcomeApproved {
			c.approved++
		}
		counts[r.TableID] = c
	}
	s.mu.Unlock()

	var out []TopTable
	for tableID, c := range counts {
		if c.total < 3 {
			continue
		}
		out = append(out, TopTable{
			TableID:      tableID,
			ApprovalRate: float64(c.approved) / float64(c.total),
			SampleCount:  c.total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ApprovalRate != out[j].ApprovalRate {
			return out[i].ApprovalRate > out[j].ApprovalRate
		}
		return out[i].SampleCount > out[j].SampleCount
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
