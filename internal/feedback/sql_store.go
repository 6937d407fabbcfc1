package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/steveyegge/catalogmatch/internal/cache"
	"github.com/steveyegge/catalogmatch/internal/types"
)

// SQLStore is an RDBMS-backed Store (spec §6.4 "append-only, indexed by
// (concept_hash, table_id) and (request_id)"), generalizing the
// teacher's dolt-backed withRetry pattern (internal/storage/dolt/store.go
// in the teacher repo) from issue persistence to decision records. It
// accepts any database/sql driver registered under driverName; this
// package imports github.com/go-sql-driver/mysql (which registers
// "mysql" and supplies the error codes used by isRetryable), and a Dolt
// server is reached through that same driver.
type SQLStore struct {
	db         *sql.DB
	maxRetries uint64
	aggregates *cache.TTLCache[string, float64]
}

// NewSQLStore opens driverName/dsn and verifies the schema exists.
// Callers are expected to have already run the accompanying migration
// (feedback_decisions table keyed by id, with secondary indexes on
// (concept_hash, table_id) and (request_id)).
func NewSQLStore(ctx context.Context, driverName, dsn string, aggregateTTL time.Duration) (*SQLStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("feedback: opening %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("feedback: pinging %s: %w", driverName, err)
	}
	return &SQLStore{
		db:         db,
		maxRetries: 3,
		aggregates: cache.New[string, float64](4096, aggregateTTL),
	}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// withRetry runs op with exponential backoff, retrying only on
// transient/lock errors (isRetryable), mirroring the teacher's
// withRetry/isRetryableError/isLockError trio.
func (s *SQLStore) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(100*time.Millisecond)), s.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isLockError(err) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		}
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded)
}

func isLockError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "lock")
}

func (s *SQLStore) RecordDecision(ctx context.Context, rec types.DecisionRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()

	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO feedback_decisions
				(id, request_id, concept_hash, domain_id, owner_id, table_id, outcome, actual_table_id, confidence_at_decision, use_case, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE id = id`,
			rec.ID, rec.RequestID, rec.ConceptHash, rec.DomainID, rec.OwnerID, rec.TableID,
			string(rec.Outcome), rec.ActualTableID, rec.ConfidenceAtDecision, rec.UseCase, rec.CreatedAt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("feedback: recording decision: %w", err)
	}

	s.aggregates.Invalidate(aggregateKey(rec.ConceptHash, rec.TableID))
	return rec.ID, nil
}

func (s *SQLStore) GetHistoricalScore(ctx context.Context, conceptHash, tableID string, minSamples int) (float64, int, error) {
	key := aggregateKey(conceptHash, tableID)
	if cached, ok := s.aggregates.Get(key); ok {
		return cached, cachedSentinel, nil
	}

	var approved, total int
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(outcome = 'APPROVED'), 0)
			FROM feedback_decisions WHERE concept_hash = ? AND table_id = ?`,
			conceptHash, tableID)
		return row.Scan(&total, &approved)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("feedback: querying historical score: %w", err)
	}

	if total < minSamples {
		return neutralScore, total, nil
	}
	score := float64(approved) / float64(total)
	s.aggregates.Set(key, score)
	return score, total, nil
}

func (s *SQLStore) GetTopTablesForConcept(ctx context.Context, conceptHash string, limit int) ([]TopTable, error) {
	var rows *sql.Rows
	err := s.withRetry(ctx, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, `
			SELECT table_id,
			       SUM(outcome = 'APPROVED') / COUNT(*) AS approval_rate,
			       COUNT(*) AS sample_count
			FROM feedback_decisions
			WHERE concept_hash = ?
			GROUP BY table_id
			HAVING sample_count >= 3
			ORDER BY approval_rate DESC, sample_count DESC
			LIMIT ?`, conceptHash, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("feedback: querying top tables: %w", err)
	}
	defer rows.Close()

	var out []TopTable
	for rows.Next() {
		var t TopTable
		if err := rows.Scan(&t.TableID, &t.ApprovalRate, &t.SampleCount); err != nil {
			return nil, fmt.Errorf("feedback: scanning top table row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
