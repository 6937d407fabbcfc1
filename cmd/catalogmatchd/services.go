package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/catalogmatch/internal/catalog"
	"github.com/steveyegge/catalogmatch/internal/config"
	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/httpapi"
	"github.com/steveyegge/catalogmatch/internal/intent"
	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/notify"
	"github.com/steveyegge/catalogmatch/internal/quality"
	"github.com/steveyegge/catalogmatch/internal/retrieval"
	"github.com/steveyegge/catalogmatch/internal/synonym"
	"github.com/steveyegge/catalogmatch/internal/telemetry"
	"github.com/steveyegge/catalogmatch/internal/types"
	"github.com/steveyegge/catalogmatch/internal/workflow"
)

// services bundles every long-lived object catalogmatchd wires up, so
// each subcommand can start only the pieces it needs (spec §9: "wire
// every service object together explicitly, no singletons").
type services struct {
	cfg       *config.Config
	log       *zap.Logger
	cat       *types.Catalog
	synonyms  *synonym.Dictionary
	qualityC  *quality.Cache
	qualitySc *quality.Scheduler
	feedback  feedback.Store
	pipeline  *retrieval.Pipeline
	store     *workflow.Store
	engine    *workflow.Engine
	sweeper   *workflow.OverdueSweeper
	collector *telemetry.Collector
	exporter  *telemetry.Exporter
}

// ownerContacts adapts the loaded catalog's owner directory to
// notify.Contacts, so owner/requester emails resolve without a separate
// directory service.
type ownerContacts struct {
	cat *types.Catalog
}

func (o ownerContacts) EmailFor(userID string) (string, bool) {
	owner, ok := o.cat.Owners[userID]
	if !ok || owner.Email == "" {
		return "", false
	}
	return owner.Email, true
}

type catalogValidator struct{ cat *types.Catalog }

func (v catalogValidator) TableIsActive(tableID string) bool {
	_, ok := v.cat.Tables[tableID]
	return ok
}

func (v catalogValidator) CollaboratorExists(userID string) bool {
	_, ok := v.cat.Owners[userID]
	return ok
}

func (v catalogValidator) AreaExists(area string) bool {
	_, ok := v.cat.Domains[area]
	return ok
}

// buildServices loads config/catalog/synonyms from the flags set on the
// root command and constructs every service object, wiring notify and
// telemetry through the engine/pipeline the way spec §9 describes.
func buildServices() (*services, error) {
	cfg, err := config.New(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cat, err := catalog.LoadSnapshot(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	syns, err := synonym.New(synonymsPath)
	if err != nil {
		return nil, fmt.Errorf("loading synonyms: %w", err)
	}

	model, err := languageModel()
	if err != nil {
		return nil, fmt.Errorf("building language model: %w", err)
	}

	norm := intent.New(model, syns, cfg.IntentCacheSize(), cfg.IntentCacheTTL())

	tableSeed, columnSeed := seedRecords(cat)
	tableRetriever := retrieval.NewMemoryRetriever(tableSeed)
	columnRetriever := retrieval.NewMemoryRetriever(columnSeed)

	qc := quality.New()
	qualitySc := quality.NewScheduler(qc, quality.NopSource{}, logger, cfg.QualitySyncCheckInterval(), cfg.QualitySyncHour())

	fb := feedback.NewInMemoryStore(cfg.FeedbackCacheTTL())

	pipeline := &retrieval.Pipeline{
		Normalizer:      norm,
		TableRetriever:  tableRetriever,
		ColumnRetriever: columnRetriever,
		Quality:         qc,
		Feedback:        fb,
		Model:           model,
		Domains:         cat.Domains,
		Owners:          cat.Owners,
		ActionThreshold: cfg.ActionUseTableThreshold(),
	}

	store := workflow.NewStore()
	dispatcher := notify.NewDispatcher(logger, ownerContacts{cat: cat}, os.Getenv("CATALOGMATCH_NOTIFY_WEBHOOK_URL"))
	engine := workflow.NewEngine(store, dispatcher, fb, catalogValidator{cat: cat})
	sweeper := workflow.NewOverdueSweeper(engine, logger, cfg.InvolvementSweepInterval())

	collector := telemetry.NewCollector(cfg.MetricsMaxEvents(), nil)
	exporter := telemetry.NewExporter(collector, defaultExportBackend(), logger, cfg.MetricsExportInterval(), cfg.MetricsBatchSize())

	return &services{
		cfg:       cfg,
		log:       logger,
		cat:       cat,
		synonyms:  syns,
		qualityC:  qc,
		qualitySc: qualitySc,
		feedback:  fb,
		pipeline:  pipeline,
		store:     store,
		engine:    engine,
		sweeper:   sweeper,
		collector: collector,
		exporter:  exporter,
	}, nil
}

// languageModel builds the Anthropic-backed LanguageModel when
// ANTHROPIC_API_KEY is set, falling back to a deterministic fake so the
// daemon still runs end to end in a local/dev environment.
func languageModel() (llm.LanguageModel, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return &llm.FakeModel{Reply: `{}`}, nil
	}
	return llm.NewAnthropicModel(os.Getenv("ANTHROPIC_API_KEY"), nil, nil)
}

// seedRecords flattens the loaded catalog's tables into RetrievedRecord
// rows for the in-memory table and column retrievers.
func seedRecords(cat *types.Catalog) (tables, columns []retrieval.RetrievedRecord) {
	for _, t := range cat.Tables {
		owner := cat.Owners[t.OwnerID]
		var ownerName string
		if owner != nil {
			ownerName = owner.Name
		}
		tables = append(tables, retrieval.RetrievedRecord{
			ID:              t.ID,
			Name:            t.Name,
			DisplayName:     t.DisplayName,
			Description:     t.Summary,
			Domain:          t.DomainID,
			Keywords:        t.Keywords,
			OwnerID:         t.OwnerID,
			OwnerName:       ownerName,
			DataLayer:       t.DataLayer,
			IsGoldenSource:  t.IsGoldenSource,
			IsVisaoCliente:  t.IsVisaoCliente,
			UpdateFrequency: t.UpdateFrequency,
			InferredProduct: t.InferredProduct,
			LastUpdated:     t.LastUpdated,
		})
	}
	return tables, nil
}

// newHTTPServer assembles an httpapi.Server from a built services bundle.
func newHTTPServer(svc *services) *httpapi.Server {
	s := httpapi.NewServer()
	s.Pipeline = svc.pipeline
	s.Engine = svc.engine
	s.Store = svc.store
	s.Feedback = svc.feedback
	s.Collector = svc.collector
	s.Exporter = svc.exporter
	s.Log = svc.log
	s.HealthChecks = []httpapi.HealthChecker{
		qualityHealthCheck{cache: svc.qualityC},
		llmHealthCheck{},
		vectorDBHealthCheck{retriever: svc.pipeline.TableRetriever},
		errorRateHealthCheck{collector: svc.collector},
		latencyHealthCheck{collector: svc.collector},
		exporterHealthCheck{exporter: svc.exporter, interval: svc.cfg.MetricsExportInterval()},
	}
	return s
}

// qualityHealthCheck degrades once the quality cache hasn't synced in
// over 48h, mirroring the original agent's health_checker.py
// _check_quality_cache (never-synced and stale both report DEGRADED,
// never UNHEALTHY — staleness alone shouldn't fail the whole service).
type qualityHealthCheck struct {
	cache *quality.Cache
}

func (qualityHealthCheck) Name() string { return "quality_cache" }

func (q qualityHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	age, ok := q.cache.LastSyncAge(time.Now())
	if !ok {
		return httpapi.HealthDegraded, "never synced"
	}
	if age > 48*time.Hour {
		return httpapi.HealthDegraded, fmt.Sprintf("last sync %s ago", age.Round(time.Minute))
	}
	return httpapi.HealthHealthy, fmt.Sprintf("last sync %s ago", age.Round(time.Minute))
}

// llmHealthCheck reports unhealthy when no Anthropic API key is
// configured, per §7's "LLM key missing" rule (health_checker.py
// _check_llm checks the same way, against OPENAI_API_KEY there).
type llmHealthCheck struct{}

func (llmHealthCheck) Name() string { return "llm" }

func (llmHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return httpapi.HealthUnhealthy, "ANTHROPIC_API_KEY not configured"
	}
	return httpapi.HealthHealthy, "api key configured"
}

// vectorDBHealthCheck probes the table retriever with a throwaway query,
// per §7's "vector DB unreachable" rule (health_checker.py
// _check_vector_db). Works against any Retriever implementation,
// in-memory or a future real vector store.
type vectorDBHealthCheck struct {
	retriever retrieval.Retriever
}

func (vectorDBHealthCheck) Name() string { return "vector_db" }

func (v vectorDBHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	if v.retriever == nil {
		return httpapi.HealthUnhealthy, "no retriever configured"
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := v.retriever.Search(probeCtx, "health check probe", "", 1); err != nil {
		return httpapi.HealthUnhealthy, fmt.Sprintf("retriever unreachable: %v", err)
	}
	return httpapi.HealthHealthy, "retriever reachable"
}

// errorRateHealthCheck applies the §7 thresholds (>10% unhealthy,
// 5-10% degraded) to the collector's running request/error counters,
// per health_checker.py _check_error_rate.
type errorRateHealthCheck struct {
	collector *telemetry.Collector
}

func (errorRateHealthCheck) Name() string { return "error_rate" }

func (e errorRateHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	snap := e.collector.Snapshot()
	if snap.TotalRequests == 0 {
		return httpapi.HealthHealthy, "no requests yet"
	}
	rate := float64(snap.Errors) / float64(snap.TotalRequests)
	detail := fmt.Sprintf("error rate %.1f%%", rate*100)
	switch {
	case rate > 0.10:
		return httpapi.HealthUnhealthy, detail
	case rate > 0.05:
		return httpapi.HealthDegraded, detail
	default:
		return httpapi.HealthHealthy, detail
	}
}

// latencyHealthCheck applies the §7 p95 thresholds (>5000ms unhealthy,
// 2000-5000ms degraded), per health_checker.py _check_latency.
type latencyHealthCheck struct {
	collector *telemetry.Collector
}

func (latencyHealthCheck) Name() string { return "latency" }

func (l latencyHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	p95 := l.collector.Snapshot().Latency.P95MS
	if p95 == 0 {
		return httpapi.HealthHealthy, "no requests yet"
	}
	detail := fmt.Sprintf("p95 %.0fms", p95)
	switch {
	case p95 > 5000:
		return httpapi.HealthUnhealthy, detail
	case p95 > 2000:
		return httpapi.HealthDegraded, detail
	default:
		return httpapi.HealthHealthy, detail
	}
}

// exporterHealthCheck degrades when the metrics exporter's most recent
// flush failed, or it hasn't completed one since starting up within
// twice its interval, per §7's "exporter idle" rule
// (health_checker.py _check_exporter).
type exporterHealthCheck struct {
	exporter *telemetry.Exporter
	interval time.Duration
}

func (exporterHealthCheck) Name() string { return "metrics_exporter" }

func (e exporterHealthCheck) Check(ctx context.Context) (httpapi.HealthStatus, string) {
	startedAt, lastFlushAt, lastErr := e.exporter.LastFlush()
	if lastErr != nil {
		return httpapi.HealthDegraded, fmt.Sprintf("last flush failed: %v", lastErr)
	}
	if !lastFlushAt.IsZero() {
		return httpapi.HealthHealthy, fmt.Sprintf("last flush %s ago", time.Since(lastFlushAt).Round(time.Second))
	}
	if !startedAt.IsZero() && time.Since(startedAt) > 2*e.interval {
		return httpapi.HealthDegraded, "no successful flush since start"
	}
	return httpapi.HealthHealthy, "starting up"
}
