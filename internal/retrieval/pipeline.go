// pipeline.go wires the retrieval DAG described in spec §2:
//
//	request -> normalize_intent -> search_domains -> search_owners
//	        -> (search_tables || search_columns) -> merge_results
//	        -> llm_rerank? -> check_ambiguity -> build_decision -> record_feedback
//
// search_tables and search_columns run concurrently via errgroup and
// join at merge_results; every other node runs sequentially within a
// single request (spec §5). Run stops after build_decision and records
// no feedback; decisions reach the feedback store through POST /feedback
// and the workflow engine.
package retrieval

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/catalogmatch/internal/catalog"
	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/intent"
	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/quality"
	"github.com/steveyegge/catalogmatch/internal/types"
)

// Request is a single /search call (spec §6.1).
type Request struct {
	RawQuery     string
	VariableName string
	VariableType string
	Context      types.RequestContext
	SkipRerank   bool
	Deadline     time.Time
}

// Result is the unified SearchState output after the DAG completes.
type Result struct {
	Intent         types.Intent
	Domains        []types.DomainMatch
	Owners         []types.OwnerMatch
	Tables         []types.TableMatch
	DataExistence  types.DataExistence
	Ambiguity      types.Ambiguity
	Action         types.Action
	LLMReranked    bool
	ProcessingTime time.Duration
}

// Pipeline holds the process-wide service objects the DAG reads from;
// it replaces the teacher's module-level singletons with an explicit
// carrier threaded through every request (spec §9).
type Pipeline struct {
	Normalizer        *intent.Normalizer
	TableRetriever    Retriever
	ColumnRetriever   Retriever
	Quality           *quality.Cache
	Feedback          feedback.Store
	Model             llm.LanguageModel
	Domains           map[string]*types.DomainInfo
	Owners            map[string]*types.OwnerInfo
	ActionThreshold   float64
	RerankFlight      singleflight.Group
}

// Run executes the full DAG for one request.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := time.Now()

	in := p.Normalizer.Normalize(ctx, req.RawQuery, req.VariableName, req.VariableType, req.Context, req.Deadline)

	domains := catalog.SearchDomains(in, p.Domains)
	owners := catalog.SearchOwners(domains, p.Owners)

	var domainFilter string
	if len(domains) > 0 {
		domainFilter = domains[0].Domain.ID
	}

	useCase := types.UseCase(req.Context.UseCase).Normalize()

	var tableMatches []types.TableMatch
	var existence types.DataExistence
	var columnRecords []RetrievedRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches, ex, err := SearchTables(gctx, TableSearchInput{
			Intent:        in,
			MatchedOwners: owners,
			DomainFilter:  domainFilter,
			UseCase:       useCase,
			Retriever:     p.TableRetriever,
			Quality:       p.Quality,
			Feedback:      p.Feedback,
			Now:           time.Now(),
		})
		tableMatches, existence = matches, ex
		return err
	})
	if ShouldSearchColumns(req.RawQuery, in) {
		g.Go(func() error {
			recs, err := SearchColumns(gctx, p.ColumnRetriever, composeQuery(in), domainFilter)
			if err != nil {
				return nil // dependency-unavailable: column branch degrades silently
			}
			columnRecords = recs
			return nil
		})
	}
	_ = g.Wait() // node-local errors already substituted with neutral values

	merged := tableMatches
	if len(columnRecords) > 0 {
		merged = MergeColumnResults(tableMatches, columnRecords)
		existence = dataExistence(merged)
	}

	reranked := false
	if ShouldRerank(merged, req.SkipRerank) && p.Model != nil {
		key := req.RawQuery + "|" + string(useCase)
		out, _, _ := p.RerankFlight.Do(key, func() (any, error) {
			return Rerank(ctx, p.Model, merged, req.Deadline), nil
		})
		if ranked, ok := out.([]types.TableMatch); ok {
			merged = ranked
			reranked = true
		}
	}

	ambiguity := CheckAmbiguity(merged)

	topScore := 0.0
	if len(merged) > 0 {
		topScore = merged[0].Score
	}
	action := BuildAction(existence, topScore, p.ActionThreshold)

	return Result{
		Intent:         in,
		Domains:        domains,
		Owners:         owners,
		Tables:         merged,
		DataExistence:  existence,
		Ambiguity:      ambiguity,
		Action:         action,
		LLMReranked:    reranked,
		ProcessingTime: time.Since(start),
	}
}
