package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestRecordRequestUpdatesCounters(t *testing.T) {
	c := NewCollector(100, nil)
	c.RecordRequest(RequestMetrics{Operation: "search", Latency: 10 * time.Millisecond, CacheHit: true})
	c.RecordRequest(RequestMetrics{Operation: "search", Latency: 20 * time.Millisecond, Ambiguous: true})
	c.RecordRequest(RequestMetrics{Operation: "search", Latency: 30 * time.Millisecond, Reranked: true})

	snap := c.Snapshot()
	if snap.TotalRequests != 3 {
		t.Fatalf("TotalRequests = %d", snap.TotalRequests)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 2 {
		t.Fatalf("hits=%d misses=%d", snap.CacheHits, snap.CacheMisses)
	}
	if snap.Ambiguities != 1 || snap.RerankCount != 1 {
		t.Fatalf("ambiguities=%d rerank=%d", snap.Ambiguities, snap.RerankCount)
	}
	if snap.Latency.P50MS <= 0 {
		t.Fatalf("expected nonzero p50, got %+v", snap.Latency)
	}
}

func TestRecordFeedbackFalsePositive(t *testing.T) {
	c := NewCollector(100, nil)
	c.RecordFeedback(true, 0.9)
	c.RecordFeedback(false, 0.85)
	c.RecordFeedback(false, 0.2)

	snap := c.Snapshot()
	if snap.Approvals != 1 || snap.Rejections != 2 {
		t.Fatalf("approvals=%d rejections=%d", snap.Approvals, snap.Rejections)
	}
	if snap.FalsePositives != 1 {
		t.Fatalf("false positives = %d, want 1", snap.FalsePositives)
	}
}

func TestCircularBufferWrapsWithoutGrowing(t *testing.T) {
	c := NewCollector(3, nil)
	for i := 0; i < 5; i++ {
		c.RecordRequest(RequestMetrics{Latency: time.Duration(i+1) * time.Millisecond})
	}
	samples := c.samplesLocked(time.Time{}, time.Time{})
	if len(samples) != 3 {
		t.Fatalf("samples = %d, want bounded to 3", len(samples))
	}
}

type fakeBackend struct {
	batches [][]ExportRecord
	err     error
}

func (f *fakeBackend) Flush(ctx context.Context, batch []ExportRecord) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

func TestExporterFlushesAtBatchSize(t *testing.T) {
	c := NewCollector(10, nil)
	backend := &fakeBackend{}
	exp := NewExporter(c, backend, nil, time.Hour, 2)

	exp.tick(context.Background(), time.Now())
	if len(backend.batches) != 0 {
		t.Fatal("should not flush before batch size reached")
	}
	exp.tick(context.Background(), time.Now())
	if len(backend.batches) != 1 || len(backend.batches[0]) != 2 {
		t.Fatalf("batches = %+v", backend.batches)
	}
}

func TestExporterRetainsBufferOnFlushFailure(t *testing.T) {
	c := NewCollector(10, nil)
	backend := &fakeBackend{err: context.DeadlineExceeded}
	exp := NewExporter(c, backend, nil, time.Hour, 1)

	exp.tick(context.Background(), time.Now())
	exp.mu.Lock()
	bufLen := len(exp.buffer)
	exp.mu.Unlock()
	if bufLen != 1 {
		t.Fatalf("buffer len = %d, want 1 retained after failed flush", bufLen)
	}
}
