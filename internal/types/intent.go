// Package types holds the shared data model for the catalog search and
// validation core: intents, catalog entities, scored candidates, and the
// durable workflow/feedback records. Types here are plain structs with
// explicit Validate methods; nothing in this package performs I/O.
package types

import "fmt"

// Intent is the normalized form of a user request for business data.
// It is produced by the intent normalizer (see internal/intent) and is
// immutable once built.
type Intent struct {
	DataNeed             string   `json:"data_need"`
	DataType             string   `json:"data_type,omitempty"`
	TargetEntity         string   `json:"target_entity,omitempty"`
	TargetSegment        string   `json:"target_segment,omitempty"`
	TargetProduct        string   `json:"target_product,omitempty"`
	TargetAudience       string   `json:"target_audience,omitempty"`
	Granularity          string   `json:"granularity,omitempty"`
	TimeReference        string   `json:"time_reference,omitempty"`
	InferredDomains      []string `json:"inferred_domains,omitempty"`
	OriginalQuery        string   `json:"original_query"`
	ExtractionConfidence float64  `json:"extraction_confidence"`
	// Fallback marks an Intent built without a language-model call
	// (dependency-unavailable path); ExtractionConfidence must be < 0.5.
	Fallback bool `json:"fallback,omitempty"`
}

// Validate checks the invariants from spec §3 (Intent).
func (i Intent) Validate() error {
	if i.DataNeed == "" {
		return fmt.Errorf("intent: data_need is required")
	}
	if i.ExtractionConfidence < 0 || i.ExtractionConfidence > 1 {
		return fmt.Errorf("intent: extraction_confidence must be in [0,1], got %v", i.ExtractionConfidence)
	}
	if i.Fallback && i.ExtractionConfidence >= 0.5 {
		return fmt.Errorf("intent: fallback intent must have extraction_confidence < 0.5, got %v", i.ExtractionConfidence)
	}
	return nil
}

// RequestContext is the optional structured context accompanying a raw
// query: produto, segmento, publico, granularidade, use_case, and the
// search-mode / rerank toggles from the HTTP surface (spec §6.1).
type RequestContext struct {
	Produto      string `json:"produto,omitempty"`
	Segmento     string `json:"segmento,omitempty"`
	Publico      string `json:"publico,omitempty"`
	Granularidade string `json:"granularidade,omitempty"`
	UseCase      string `json:"use_case,omitempty"`
	SearchMode   string `json:"search_mode,omitempty"` // auto, table_only, column_only, hybrid
	EnableRerank *bool  `json:"enable_rerank,omitempty"`
}

// AsMap renders the context as a key -> value map for cache-key
// composition (spec §4.1); CacheKey sorts the keys. Empty fields are
// omitted, and so are SearchMode and EnableRerank.
func (c RequestContext) AsMap() map[string]string {
	m := make(map[string]string, 6)
	if c.Produto != "" {
		m["produto"] = c.Produto
	}
	if c.Segmento != "" {
		m["segmento"] = c.Segmento
	}
	if c.Publico != "" {
		m["publico"] = c.Publico
	}
	if c.Granularidade != "" {
		m["granularidade"] = c.Granularidade
	}
	if c.UseCase != "" {
		m["use_case"] = c.UseCase
	}
	return m
}

// UseCase enumerates the caller's intent class driving §4.6 weight mixes.
type UseCase string

const (
	UseCaseOperational UseCase = "operational"
	UseCaseAnalytical  UseCase = "analytical"
	UseCaseRegulatory  UseCase = "regulatory"
	UseCaseDefault     UseCase = "default"
)

// Normalize returns uc, or UseCaseDefault if uc is not one of the known values.
func (uc UseCase) Normalize() UseCase {
	switch uc {
	case UseCaseOperational, UseCaseAnalytical, UseCaseRegulatory:
		return uc
	default:
		return UseCaseDefault
	}
}
