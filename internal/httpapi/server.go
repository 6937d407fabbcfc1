// Package httpapi implements the HTTP surface from spec §6.1 using the
// standard library's net/http.ServeMux with Go 1.22+ method+pattern
// routing, following the teacher's mux-based wrapper style
// (internal/rpc/http_server.go in the teacher repo) rather than a
// third-party router.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/catalogmatch/internal/apierrors"
	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/retrieval"
	"github.com/steveyegge/catalogmatch/internal/telemetry"
	"github.com/steveyegge/catalogmatch/internal/types"
	"github.com/steveyegge/catalogmatch/internal/workflow"
)

// HealthStatus is the three-state health model from spec §6.1/§7,
// grounded on the original agent's health_checker.py HealthStatus enum
// (healthy/degraded/unhealthy).
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// worse returns the more severe of two HealthStatus values.
func (h HealthStatus) worse(other HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthHealthy: 0, HealthDegraded: 1, HealthUnhealthy: 2}
	if rank[other] > rank[h] {
		return other
	}
	return h
}

// HealthChecker reports the status of a single component for
// GET /monitoring/health (spec §6.1).
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (status HealthStatus, detail string)
}

// Server wires the retrieval pipeline, workflow engine, feedback store,
// and telemetry collector/exporter to the HTTP surface.
type Server struct {
	Pipeline    *retrieval.Pipeline
	Engine      *workflow.Engine
	Store       *workflow.Store
	Feedback    feedback.Store
	Collector   *telemetry.Collector
	Exporter    *telemetry.Exporter
	Log         *zap.Logger
	HealthChecks []HealthChecker

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds a Server; the caller is responsible for populating
// every field before calling Start.
func NewServer() *Server {
	return &Server{Log: zap.NewNop()}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /search/single", s.handleSearchSingle)
	mux.HandleFunc("POST /search/ranking", s.handleSearchRanking)

	mux.HandleFunc("POST /feedback", s.handleFeedback)
	mux.HandleFunc("POST /feedback/check", s.handleFeedbackCheck)

	mux.HandleFunc("POST /variables/{id}/select", s.handleSelectMatch)
	mux.HandleFunc("POST /matches/{id}/owner-respond", s.handleOwnerRespond)
	mux.HandleFunc("POST /matches/{id}/requester-respond", s.handleRequesterRespond)

	mux.HandleFunc("POST /involvements", s.handleCreateInvolvement)
	mux.HandleFunc("PUT /involvements/{id}/date", s.handleInvolvementDate)
	mux.HandleFunc("PUT /involvements/{id}/complete", s.handleInvolvementComplete)

	mux.HandleFunc("GET /monitoring/metrics", s.handleMetrics)
	mux.HandleFunc("GET /monitoring/metrics/hourly", s.handleMetricsHourly)
	mux.HandleFunc("GET /monitoring/health", s.handleHealth)
	mux.HandleFunc("GET /monitoring/dashboard", s.handleMetrics)
	mux.HandleFunc("POST /monitoring/export/now", s.handleExportNow)

	return mux
}

// Start listens on addr and serves until ctx is canceled, draining
// in-flight requests on shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Handler:      s.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	return s.httpServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError implements the error envelope from spec §6.1/§7.
func writeError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apierrors.Error); ok {
		writeJSON(w, ae.Kind.HTTPStatus(), errorEnvelope{Error: errorBody{
			Code: ae.Kind.String(), Message: ae.Message, Details: ae.Details,
		}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
		Code: "integrity", Message: err.Error(),
	}})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierrors.Validationf("invalid request body: %v", err)
	}
	return nil
}

type searchRequest struct {
	RawQuery     string               `json:"raw_query"`
	VariableName string               `json:"variable_name"`
	VariableType string               `json:"variable_type"`
	Context      types.RequestContext `json:"context"`
}

func (s *Server) handleSearchSingle(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RawQuery == "" {
		writeError(w, apierrors.Validationf("raw_query is required"))
		return
	}

	skipRerank := req.Context.EnableRerank != nil && !*req.Context.EnableRerank
	result := s.Pipeline.Run(r.Context(), retrieval.Request{
		RawQuery: req.RawQuery, VariableName: req.VariableName, VariableType: req.VariableType,
		Context: req.Context, SkipRerank: skipRerank, Deadline: time.Now().Add(30 * time.Second),
	})

	if s.Collector != nil {
		s.Collector.RecordRequest(telemetry.RequestMetrics{
			Operation: "search_single", Latency: result.ProcessingTime,
			Ambiguous: result.Ambiguity.Type != types.AmbiguityNone, Reranked: result.LLMReranked,
		})
	}

	var table *types.TableMatch
	if len(result.Tables) > 0 {
		table = &result.Tables[0]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":               firstDomain(result.Domains),
		"owner":                firstOwner(result.Owners),
		"table":                table,
		"scores":               result.Tables,
		"ambiguity":            result.Ambiguity,
		"data_exists":          result.DataExistence,
		"action":               result.Action,
		"reasoning":            reasoningOf(table),
		"llm_reranked":         result.LLMReranked,
		"processing_time_ms":   result.ProcessingTime.Milliseconds(),
	})
}

func firstDomain(matches []types.DomainMatch) *types.DomainMatch {
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func firstOwner(matches []types.OwnerMatch) *types.OwnerMatch {
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func reasoningOf(t *types.TableMatch) string {
	if t == nil {
		return ""
	}
	return t.Reasoning
}

const rankingLimit = 5

func (s *Server) handleSearchRanking(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result := s.Pipeline.Run(r.Context(), retrieval.Request{
		RawQuery: req.RawQuery, VariableName: req.VariableName, VariableType: req.VariableType,
		Context: req.Context, Deadline: time.Now().Add(30 * time.Second),
	})

	domains := result.Domains
	if len(domains) > rankingLimit {
		domains = domains[:rankingLimit]
	}
	owners := result.Owners
	if len(owners) > rankingLimit {
		owners = owners[:rankingLimit]
	}
	tables := result.Tables
	if len(tables) > rankingLimit {
		tables = tables[:rankingLimit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domains":              domains,
		"owners":               owners,
		"tables":               tables,
		"summary":              summaryOf(result),
		"clarifying_question":  result.Ambiguity.ClarifyingQuestion,
	})
}

func summaryOf(result retrieval.Result) string {
	if len(result.Tables) == 0 {
		return "no candidate tables found"
	}
	return result.Tables[0].Reasoning
}

// intentFields is the §6.1 "intent fields" payload shared by /feedback
// and /feedback/check, from which the concept hash is derived server-side
// (spec §4.12) rather than trusted from the client.
type intentFields struct {
	DataNeed      string `json:"data_need"`
	TargetEntity  string `json:"target_entity"`
	TargetProduct string `json:"target_product"`
	TargetSegment string `json:"target_segment"`
	Granularity   string `json:"granularity"`
}

func (f intentFields) conceptHash() string {
	return feedback.ConceptHash(types.ConceptHashFields{
		DataNeed:      f.DataNeed,
		TargetEntity:  f.TargetEntity,
		TargetProduct: f.TargetProduct,
		TargetSegment: f.TargetSegment,
		Granularity:   f.Granularity,
	})
}

type feedbackRequest struct {
	intentFields
	RequestID            string  `json:"request_id"`
	TableID              string  `json:"table_id"`
	Outcome              string  `json:"outcome"`
	ActualTableID        string  `json:"actual_table_id"`
	ConfidenceAtDecision float64 `json:"confidence_at_decision"`
	UseCase              string  `json:"use_case"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conceptHash := req.conceptHash()
	rec := types.DecisionRecord{
		RequestID: req.RequestID, ConceptHash: conceptHash, TableID: req.TableID, Outcome: types.Outcome(req.Outcome),
		ActualTableID: req.ActualTableID, ConfidenceAtDecision: req.ConfidenceAtDecision, UseCase: req.UseCase,
	}
	id, err := s.Feedback.RecordDecision(r.Context(), rec)
	if err != nil {
		writeError(w, apierrors.Validationf("%v", err))
		return
	}

	if rec.Outcome == types.OutcomeModified && req.ActualTableID != "" {
		_, _ = s.Feedback.RecordDecision(r.Context(), types.DecisionRecord{
			RequestID: req.RequestID, ConceptHash: conceptHash, TableID: req.ActualTableID, Outcome: types.OutcomeApproved,
		})
	}

	if s.Collector != nil {
		s.Collector.RecordFeedback(rec.Outcome == types.OutcomeApproved, req.ConfidenceAtDecision)
	}

	writeJSON(w, http.StatusOK, map[string]any{"record_id": id, "success": true, "message": "recorded"})
}

type feedbackCheckRequest struct {
	intentFields
	TableID string `json:"table_id"`
}

const feedbackCheckMinSamples = 3

func (s *Server) handleFeedbackCheck(w http.ResponseWriter, r *http.Request) {
	var req feedbackCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	score, count, err := s.Feedback.GetHistoricalScore(r.Context(), req.conceptHash(), req.TableID, feedbackCheckMinSamples)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approval_rate": score, "sample_count": count, "is_reliable": count >= feedbackCheckMinSamples,
	})
}

type selectRequest struct {
	MatchID string `json:"match_id"`
	Actor   string `json:"actor"`
}

func (s *Server) handleSelectMatch(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Engine.SelectMatch(r.Context(), req.MatchID, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleOwnerRespond(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	var resp types.OwnerResponse
	if err := decodeJSON(r, &resp); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Engine.OwnerRespond(r.Context(), matchID, resp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRequesterRespond(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	var resp types.RequesterResponse
	if err := decodeJSON(r, &resp); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Engine.RequesterRespond(r.Context(), matchID, resp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type createInvolvementRequest struct {
	VariableID  string `json:"variable_id"`
	RequesterID string `json:"requester_id"`
	OwnerID     string `json:"owner_id"`
}

func (s *Server) handleCreateInvolvement(w http.ResponseWriter, r *http.Request) {
	var req createInvolvementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inv := s.Engine.CreateInvolvement(req.VariableID, req.RequesterID, req.OwnerID)
	writeJSON(w, http.StatusOK, inv)
}

type involvementDateRequest struct {
	ExpectedCompletionDate string `json:"expected_completion_date"`
	Actor                  string `json:"actor"`
}

func (s *Server) handleInvolvementDate(w http.ResponseWriter, r *http.Request) {
	variableID := r.PathValue("id")
	var req involvementDateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	expected, err := parseDeadline(req.ExpectedCompletionDate, time.Now())
	if err != nil {
		writeError(w, apierrors.Validationf("%s", err.Error()))
		return
	}
	if err := s.Engine.SetInvolvementDate(r.Context(), variableID, expected, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type involvementCompleteRequest struct {
	CreatedTableName string `json:"created_table_name"`
	CreatedConcept   string `json:"created_concept"`
	Actor            string `json:"actor"`
}

func (s *Server) handleInvolvementComplete(w http.ResponseWriter, r *http.Request) {
	variableID := r.PathValue("id")
	var req involvementCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Engine.CompleteInvolvement(r.Context(), variableID, req.CreatedTableName, req.CreatedConcept, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Collector == nil {
		writeJSON(w, http.StatusOK, telemetry.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.Collector.Snapshot())
}

func (s *Server) handleMetricsHourly(w http.ResponseWriter, r *http.Request) {
	if s.Collector == nil {
		writeJSON(w, http.StatusOK, telemetry.LatencyPercentiles{})
		return
	}
	writeJSON(w, http.StatusOK, s.Collector.AggregateHourly(time.Now()))
}

func (s *Server) handleExportNow(w http.ResponseWriter, r *http.Request) {
	if s.Exporter != nil {
		s.Exporter.ExportNow(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type healthComponent struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

type healthResponse struct {
	Status     HealthStatus      `json:"status"`
	Components []healthComponent `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make([]healthComponent, 0, len(s.HealthChecks))
	overall := HealthHealthy
	for _, hc := range s.HealthChecks {
		status, detail := hc.Check(r.Context())
		components = append(components, healthComponent{Name: hc.Name(), Status: status, Detail: detail})
		overall = overall.worse(status)
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: overall, Components: components})
}
