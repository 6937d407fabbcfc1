// Package telemetry implements the MetricsCollector and DataMeshExporter
// from spec §4.11, generalizing the teacher's circular-buffer-plus-percentile
// metrics collector (internal/rpc/metrics.go in the teacher repo) from
// per-RPC-operation counters to per-search-request counters, and bridging
// the same counters to OTel instruments the way internal/compact/haiku.go's
// aiMetrics does for LLM calls.
package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics is one recorded search request (spec §4.11).
type RequestMetrics struct {
	RequestID   string
	Operation   string
	Latency     time.Duration
	CacheHit    bool
	Ambiguous   bool
	Reranked    bool
	Error       bool
	Timestamp   time.Time
}

// Collector keeps a bounded circular buffer of RequestMetrics plus
// running counters, mirroring the teacher's Metrics struct generalized
// from RPC operations to retrieval requests.
type Collector struct {
	mu sync.RWMutex

	maxRequests int
	requests    []RequestMetrics
	next        int
	filled      bool

	totalRequests   int64
	errorCount      int64
	cacheHits       int64
	cacheMisses     int64
	ambiguities     int64
	rerankCount     int64
	approvals       int64
	rejections      int64
	falsePositives  int64

	instruments instruments
}

type instruments struct {
	requestCounter   metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	ambiguityCounter metric.Int64Counter
	rerankCounter    metric.Int64Counter
}

// NewCollector builds a Collector holding up to maxRequests samples
// (spec default: 10000). meter may be nil to skip OTel instrumentation.
func NewCollector(maxRequests int, meter metric.Meter) *Collector {
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	c := &Collector{maxRequests: maxRequests, requests: make([]RequestMetrics, maxRequests)}
	if meter != nil {
		c.instruments.requestCounter, _ = meter.Int64Counter("catalogmatch_requests_total")
		c.instruments.latencyHistogram, _ = meter.Float64Histogram("catalogmatch_request_latency_ms")
		c.instruments.ambiguityCounter, _ = meter.Int64Counter("catalogmatch_ambiguity_total")
		c.instruments.rerankCounter, _ = meter.Int64Counter("catalogmatch_rerank_activations_total")
	}
	return c
}

// RecordRequest appends one request sample and updates the running
// counters (spec §4.11: "requests, hits/misses, cache hits/misses,
// ambiguity detections, rerank activations").
func (c *Collector) RecordRequest(rm RequestMetrics) {
	if rm.Timestamp.IsZero() {
		rm.Timestamp = time.Now()
	}

	c.mu.Lock()
	c.requests[c.next] = rm
	c.next = (c.next + 1) % c.maxRequests
	if c.next == 0 {
		c.filled = true
	}

	c.totalRequests++
	if rm.Error {
		c.errorCount++
	}
	if rm.CacheHit {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
	if rm.Ambiguous {
		c.ambiguities++
	}
	if rm.Reranked {
		c.rerankCount++
	}
	c.mu.Unlock()

	ctx := context.Background()
	if c.instruments.requestCounter != nil {
		c.instruments.requestCounter.Add(ctx, 1)
	}
	if c.instruments.latencyHistogram != nil {
		c.instruments.latencyHistogram.Record(ctx, float64(rm.Latency)/float64(time.Millisecond))
	}
	if rm.Ambiguous && c.instruments.ambiguityCounter != nil {
		c.instruments.ambiguityCounter.Add(ctx, 1)
	}
	if rm.Reranked && c.instruments.rerankCounter != nil {
		c.instruments.rerankCounter.Add(ctx, 1)
	}
}

// RecordFeedback updates approval/rejection counters; a rejection whose
// scoreAtDecision exceeds 0.7 additionally increments the false-positive
// counter (spec §4.11).
func (c *Collector) RecordFeedback(approved bool, scoreAtDecision float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if approved {
		c.approvals++
		return
	}
	c.rejections++
	if scoreAtDecision > 0.7 {
		c.falsePositives++
	}
}

// Snapshot is a point-in-time export of the counters and computed
// latency percentiles (spec §4.11).
type Snapshot struct {
	TotalRequests  int64
	Errors         int64
	CacheHits      int64
	CacheMisses    int64
	Ambiguities    int64
	RerankCount    int64
	Approvals      int64
	Rejections     int64
	FalsePositives int64
	Latency        LatencyPercentiles
}

// LatencyPercentiles holds p50/p95/p99 in milliseconds.
type LatencyPercentiles struct {
	P50MS float64
	P95MS float64
	P99MS float64
}

// Snapshot computes percentiles from the current buffer on demand.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples := c.samplesLocked(time.Time{}, time.Time{})
	return Snapshot{
		TotalRequests:  c.totalRequests,
		Errors:         c.errorCount,
		CacheHits:      c.cacheHits,
		CacheMisses:    c.cacheMisses,
		Ambiguities:    c.ambiguities,
		RerankCount:    c.rerankCount,
		Approvals:      c.approvals,
		Rejections:     c.rejections,
		FalsePositives: c.falsePositives,
		Latency:        percentilesOf(samples),
	}
}

// AggregateHourly recomputes percentiles from requests within the hour
// ending at now (spec §4.11 aggregate_hourly).
func (c *Collector) AggregateHourly(now time.Time) LatencyPercentiles {
	return c.aggregateSince(now.Add(-time.Hour), now)
}

// AggregateDaily recomputes percentiles from requests within the day
// ending at now (spec §4.11 aggregate_daily).
func (c *Collector) AggregateDaily(now time.Time) LatencyPercentiles {
	return c.aggregateSince(now.Add(-24*time.Hour), now)
}

func (c *Collector) aggregateSince(since, until time.Time) LatencyPercentiles {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return percentilesOf(c.samplesLocked(since, until))
}

// samplesLocked returns latencies for requests in [since, until]; a zero
// since/until disables that bound. Caller must hold c.mu.
func (c *Collector) samplesLocked(since, until time.Time) []time.Duration {
	n := c.maxRequests
	if !c.filled {
		n = c.next
	}
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		rm := c.requests[i]
		if !since.IsZero() && rm.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && rm.Timestamp.After(until) {
			continue
		}
		out = append(out, rm.Latency)
	}
	return out
}

func percentilesOf(samples []time.Duration) LatencyPercentiles {
	if len(samples) == 0 {
		return LatencyPercentiles{}
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	toMS := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	idx := func(p int) int {
		i := len(sorted) * p / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return LatencyPercentiles{
		P50MS: toMS(sorted[idx(50)]),
		P95MS: toMS(sorted[idx(95)]),
		P99MS: toMS(sorted[idx(99)]),
	}
}
