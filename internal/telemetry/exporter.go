package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExportRecord is one batch element written by the Exporter.
type ExportRecord struct {
	Snapshot  Snapshot  `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend is one of the three flush targets from spec §4.11: object-store
// append, streaming-service write, or HTTP POST.
type Backend interface {
	Flush(ctx context.Context, batch []ExportRecord) error
}

// ObjectStoreBackend appends newline-delimited JSON under a
// year/month/day/HHMMSS key, matching the spec's object-store layout.
type ObjectStoreBackend struct {
	Put func(ctx context.Context, key string, data []byte) error
}

func (b *ObjectStoreBackend) Flush(ctx context.Context, batch []ExportRecord) error {
	if b.Put == nil || len(batch) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("telemetry: marshal export record: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	key := batch[len(batch)-1].Timestamp.Format("2006/01/02/150405")
	return b.Put(ctx, key, buf.Bytes())
}

// StreamBackend writes each record to a streaming sink (e.g. Kinesis,
// Kafka) one at a time via Write.
type StreamBackend struct {
	Write func(ctx context.Context, record []byte) error
}

func (b *StreamBackend) Flush(ctx context.Context, batch []ExportRecord) error {
	if b.Write == nil {
		return nil
	}
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("telemetry: marshal export record: %w", err)
		}
		if err := b.Write(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// HTTPBackend POSTs the whole batch with a bearer header.
type HTTPBackend struct {
	URL         string
	BearerToken string
	Client      *http.Client
}

func (b *HTTPBackend) Flush(ctx context.Context, batch []ExportRecord) error {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("telemetry: marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("telemetry: build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.BearerToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: export request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: export endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Exporter periodically asks the Collector for a snapshot, buffers it,
// and flushes to Backend once the buffer reaches batchSize (spec §4.11).
// A flush failure never drops the buffer: it is retried on the next tick.
type Exporter struct {
	collector *Collector
	backend   Backend
	log       *zap.Logger
	interval  time.Duration
	batchSize int

	mu          sync.Mutex
	buffer      []ExportRecord
	startedAt   time.Time
	lastFlushAt time.Time
	lastFlushErr error

	shutdown chan struct{}
	done     chan struct{}
}

// NewExporter builds an Exporter. interval and batchSize come from
// config (metrics_export_interval_minutes, metrics_batch_size).
func NewExporter(collector *Collector, backend Backend, log *zap.Logger, interval time.Duration, batchSize int) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		collector: collector,
		backend:   backend,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic export loop as a background goroutine.
func (e *Exporter) Start(ctx context.Context) {
	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()
	go e.loop(ctx)
}

// LastFlush reports when the backend last accepted a batch and the
// error from the most recent attempt, if any, for the §7 "exporter
// idle" health check.
func (e *Exporter) LastFlush() (startedAt, lastFlushAt time.Time, lastErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startedAt, e.lastFlushAt, e.lastFlushErr
}

// Stop signals the loop to exit and blocks until the in-flight buffer is
// flushed (spec §5: "metrics exporter flushes remaining buffer").
func (e *Exporter) Stop(ctx context.Context) {
	close(e.shutdown)
	<-e.done
	e.flush(ctx)
}

func (e *Exporter) loop(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.shutdown:
			return
		case now := <-ticker.C:
			e.tick(ctx, now)
		}
	}
}

func (e *Exporter) tick(ctx context.Context, now time.Time) {
	e.mu.Lock()
	e.buffer = append(e.buffer, ExportRecord{Snapshot: e.collector.Snapshot(), Timestamp: now})
	shouldFlush := len(e.buffer) >= e.batchSize
	e.mu.Unlock()

	if shouldFlush {
		e.flush(ctx)
	}
}

func (e *Exporter) flush(ctx context.Context) {
	e.mu.Lock()
	batch := e.buffer
	e.mu.Unlock()

	if len(batch) == 0 || e.backend == nil {
		return
	}
	if err := e.backend.Flush(ctx, batch); err != nil {
		e.log.Warn("telemetry: export flush failed, retrying next tick", zap.Error(err))
		e.mu.Lock()
		e.lastFlushErr = err
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.buffer = e.buffer[len(batch):]
	e.lastFlushAt = time.Now()
	e.lastFlushErr = nil
	e.mu.Unlock()
}

// ExportNow forces an immediate flush, used by the
// POST /monitoring/export/now endpoint.
func (e *Exporter) ExportNow(ctx context.Context) {
	e.tick(ctx, time.Now())
	e.flush(ctx)
}
