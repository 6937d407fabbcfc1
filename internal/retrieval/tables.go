package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/catalogmatch/internal/feedback"
	"github.com/steveyegge/catalogmatch/internal/quality"
	"github.com/steveyegge/catalogmatch/internal/types"
)

const maxTableResults = 10
const maxRetrieverResults = 20
const minHistoricalSamples = 3

const existsThreshold = 0.60
const needsCreationThreshold = 0.30

type weights struct{ cert, fresh, quality float64 }

var useCaseWeights = map[types.UseCase]weights{
	types.UseCaseOperational: {0.25, 0.40, 0.35},
	types.UseCaseAnalytical:  {0.30, 0.15, 0.55},
	types.UseCaseRegulatory:  {0.40, 0.10, 0.50},
	types.UseCaseDefault:     {0.30, 0.30, 0.40},
}

type freshnessBand struct{ fresh, stale time.Duration }

var freshnessBands = map[types.UpdateFrequency]freshnessBand{
	types.FrequencyRealtime: {time.Hour, 4 * time.Hour},
	types.FrequencyDaily:    {26 * time.Hour, 50 * time.Hour},
	types.FrequencyWeekly:   {170 * time.Hour, 200 * time.Hour},
	types.FrequencyMonthly:  {750 * time.Hour, 800 * time.Hour},
}

var unknownFreshnessBand = freshnessBand{72 * time.Hour, 168 * time.Hour}

// TableSearchInput bundles the dependencies TableSearch needs beyond the
// pure scoring inputs, so the function stays testable without a running
// service.
type TableSearchInput struct {
	Intent        types.Intent
	MatchedOwners []types.OwnerMatch
	DomainFilter  string
	UseCase       types.UseCase
	Retriever     Retriever
	Quality       *quality.Cache
	Feedback      feedback.Store
	Now           time.Time
}

// SearchTables runs spec §4.6's disambiguation pipeline and returns up
// to 10 ranked TableMatch values plus the overall data_existence verdict.
func SearchTables(ctx context.Context, in TableSearchInput) ([]types.TableMatch, types.DataExistence, error) {
	query := composeQuery(in.Intent)

	records, err := in.Retriever.Search(ctx, query, in.DomainFilter, maxRetrieverResults)
	if err != nil {
		return nil, types.DataUncertain, nil // dependency-unavailable: empty, not surfaced (spec §7)
	}

	conceptHash := feedback.ConceptHash(types.ConceptHashFields{
		DataNeed:      in.Intent.DataNeed,
		TargetEntity:  in.Intent.TargetEntity,
		TargetProduct: in.Intent.TargetProduct,
		TargetSegment: in.Intent.TargetSegment,
		Granularity:   in.Intent.Granularity,
	})

	topHistorical := make(map[string]float64)
	if in.Feedback != nil {
		if top, err := in.Feedback.GetTopTablesForConcept(ctx, conceptHash, maxRetrieverResults); err == nil {
			for _, t := range top {
				topHistorical[t.TableID] = t.ApprovalRate
			}
		}
	}

	ownerMatched := make(map[string]struct{}, len(in.MatchedOwners))
	for _, om := range in.MatchedOwners {
		ownerMatched[om.Owner.ID] = struct{}{}
	}

	useCase := in.UseCase.Normalize()
	w := useCaseWeights[useCase]

	matches := make([]types.TableMatch, 0, len(records))
	for _, rec := range records {
		historical, ok := topHistorical[rec.ID]
		if !ok {
			historical = historicalScore(ctx, in.Feedback, conceptHash, rec.ID)
		}

		comp := disambiguationComponents(rec, in.Intent, in.Quality, w, in.Now)
		semantic := 1.0 - rec.Distance
		ownerBoost := 0.0
		if _, ok := ownerMatched[rec.OwnerID]; ok {
			ownerBoost = 0.1
		}

		total := 0.25*semantic + 0.50*comp.Disambiguation + 0.15*historical + 0.10*ownerBoost
		comp.Semantic = semantic
		comp.Historical = historical
		comp.OwnerBoost = ownerBoost

		table := recordToTableInfo(rec)
		matches = append(matches, types.TableMatch{
			Table:             table,
			Score:             total,
			Components:        comp,
			Reasoning:         reasoningFor(rec, comp, total),
			IsDoubleCertified: rec.IsGoldenSource && rec.IsVisaoCliente,
			HasProductMatch:   comp.Context >= 0.5,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > maxTableResults {
		matches = matches[:maxTableResults]
	}

	return matches, dataExistence(matches), nil
}

func historicalScore(ctx context.Context, store feedback.Store, conceptHash, tableID string) float64 {
	if store == nil {
		return 0.5
	}
	score, count, err := store.GetHistoricalScore(ctx, conceptHash, tableID, minHistoricalSamples)
	if err != nil || (count >= 0 && count < minHistoricalSamples) {
		return 0.5
	}
	return score
}

func composeQuery(intent types.Intent) string {
	var parts []string
	parts = append(parts, intent.DataNeed)
	if intent.TargetEntity != "" {
		parts = append(parts, "entidade:"+intent.TargetEntity)
	}
	if intent.TargetProduct != "" {
		parts = append(parts, "produto:"+intent.TargetProduct)
	}
	if intent.TargetSegment != "" {
		parts = append(parts, "segmento:"+intent.TargetSegment)
	}
	if intent.Granularity != "" {
		parts = append(parts, "granularidade:"+intent.Granularity)
	}
	if len(parts) == 1 {
		return intent.OriginalQuery
	}
	return strings.Join(parts, " ")
}

func certificationScore(rec RetrievedRecord) float64 {
	if rec.IsGoldenSource || rec.IsVisaoCliente {
		return 1.0
	}
	switch rec.DataLayer {
	case types.DataLayerSoT:
		return 0.75
	case types.DataLayerSpec:
		return 0.50
	case types.DataLayerSoR:
		return 0.30
	default:
		return 0.3
	}
}

func freshnessScore(rec RetrievedRecord, now time.Time) float64 {
	if rec.LastUpdated == nil {
		return 0.5
	}
	band, ok := freshnessBands[rec.UpdateFrequency]
	if !ok {
		band = unknownFreshnessBand
	}
	updated := time.Unix(*rec.LastUpdated, 0)
	hoursSince := now.Sub(updated)
	switch {
	case hoursSince <= band.fresh:
		return 1.0
	case hoursSince <= band.stale:
		return 0.7
	default:
		return 0.4
	}
}

func contextScore(rec RetrievedRecord, intent types.Intent) float64 {
	score := 0.0
	matched := false
	if intent.TargetSegment != "" && strings.EqualFold(intent.TargetSegment, rec.Domain) {
		score += 0.5
		matched = true
	}
	if intent.TargetProduct != "" {
		product := strings.ToLower(intent.TargetProduct)
		if strings.Contains(strings.ToLower(rec.InferredProduct), product) {
			score += 0.5
			matched = true
		} else if rec.DataLayer == types.DataLayerSpec && strings.Contains(strings.ToLower(rec.Name), product) {
			score += 0.5
			matched = true
		}
	}
	if !matched {
		return 0.3
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

func disambiguationComponents(rec RetrievedRecord, intent types.Intent, qc *quality.Cache, w weights, now time.Time) types.ComponentScores {
	cert := certificationScore(rec)
	fresh := freshnessScore(rec, now)
	qual := 0.5
	if qc != nil {
		qual = qc.GetScore(rec.Name, 0.5)
	}
	ctxScore := contextScore(rec, intent)

	total := w.cert*cert + w.fresh*fresh + w.quality*qual
	if ctxScore >= 0.5 {
		total += 0.10
	}
	if total > 1.0 {
		total = 1.0
	}

	return types.ComponentScores{
		Certification:  cert,
		Freshness:      fresh,
		Quality:        qual,
		Context:        ctxScore,
		Disambiguation: total,
	}
}

func recordToTableInfo(rec RetrievedRecord) *types.TableInfo {
	return &types.TableInfo{
		ID:              rec.ID,
		Name:            rec.Name,
		DisplayName:     rec.DisplayName,
		Summary:         rec.Description,
		DomainID:        rec.Domain,
		OwnerID:         rec.OwnerID,
		Keywords:        rec.Keywords,
		DataLayer:       rec.DataLayer,
		IsGoldenSource:  rec.IsGoldenSource,
		IsVisaoCliente:  rec.IsVisaoCliente,
		UpdateFrequency: rec.UpdateFrequency,
		InferredProduct: rec.InferredProduct,
		LastUpdated:     rec.LastUpdated,
	}
}

func reasoningFor(rec RetrievedRecord, comp types.ComponentScores, total float64) string {
	return fmt.Sprintf("semantic=%.2f disamb=%.2f (cert=%.2f fresh=%.2f quality=%.2f ctx=%.2f) score=%.2f",
		1.0-rec.Distance, comp.Disambiguation, comp.Certification, comp.Freshness, comp.Quality, comp.Context, total)
}

func dataExistence(matches []types.TableMatch) types.DataExistence {
	if len(matches) == 0 {
		return types.DataNeedsCreation
	}
	top := matches[0].Score
	switch {
	case top >= existsThreshold:
		return types.DataExistsYes
	case top < needsCreationThreshold:
		return types.DataNeedsCreation
	default:
		return types.DataUncertain
	}
}
