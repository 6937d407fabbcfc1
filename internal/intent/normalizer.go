// Package intent implements the IntentNormalizer (spec §4.1) and its
// backing cache (§4.2): convert a raw query plus optional structured
// context into a canonical Intent, consulting a hashed-key TTL cache
// before calling the language model.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/catalogmatch/internal/cache"
	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/synonym"
	"github.com/steveyegge/catalogmatch/internal/types"
)

// maxSynonymVariants bounds the number of synonym-expanded query
// variants inserted as cache aliases per normalization (spec §4.1:
// "a small number of synonym-expanded query variants").
const maxSynonymVariants = 3

// maxDomainSynonyms is the per-seeded-domain synonym budget when
// expanding inferred_domains (spec §4.1).
const maxDomainSynonyms = 2

const fallbackConfidence = 0.3
const llmConfidence = 0.85

// Normalizer converts raw queries into cached, canonical Intents.
type Normalizer struct {
	cache     *cache.TTLCache[string, types.Intent]
	model     llm.LanguageModel
	synonyms  *synonym.Dictionary
}

// New builds a Normalizer. size and ttl configure the underlying cache
// (spec §4.1 "Cache discipline": default 10k entries, 7-day TTL).
func New(model llm.LanguageModel, synonyms *synonym.Dictionary, size int, ttl time.Duration) *Normalizer {
	return &Normalizer{
		cache:    cache.New[string, types.Intent](size, ttl),
		model:    model,
		synonyms: synonyms,
	}
}

// Normalize builds a canonical Intent for (rawQuery, variableName,
// reqCtx). It never returns an error: a language-model failure produces
// a fallback Intent per spec §4.1's "Failure" clause.
func (n *Normalizer) Normalize(ctx context.Context, rawQuery, variableName, variableType string, reqCtx types.RequestContext, deadline time.Time) types.Intent {
	key := CacheKey(rawQuery, variableName, reqCtx)

	if cached, ok := n.cache.Get(key); ok {
		cached.OriginalQuery = rawQuery
		return cached
	}

	out, err := n.callModel(ctx, rawQuery, variableName, variableType, reqCtx, deadline)
	if err != nil {
		return n.fallback(rawQuery, variableName)
	}
	out.OriginalQuery = rawQuery
	out.ExtractionConfidence = llmConfidence

	out.InferredDomains = n.expandDomains(out.InferredDomains)

	aliases := n.variantKeys(rawQuery, variableName, reqCtx)
	n.cache.Set(key, out, aliases...)
	return out
}

func (n *Normalizer) fallback(rawQuery, variableName string) types.Intent {
	dataNeed := variableName
	if dataNeed == "" {
		dataNeed = rawQuery
	}
	return types.Intent{
		DataNeed:             dataNeed,
		OriginalQuery:        rawQuery,
		ExtractionConfidence: fallbackConfidence,
		Fallback:             true,
	}
}

func (n *Normalizer) expandDomains(domains []string) []string {
	if n.synonyms == nil || len(domains) == 0 {
		return domains
	}
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	for _, d := range domains {
		syns := n.synonyms.GetSynonyms(d)
		count := 0
		for _, s := range syns {
			if count >= maxDomainSynonyms {
				break
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
			count++
		}
	}
	return out
}

func (n *Normalizer) variantKeys(rawQuery, variableName string, reqCtx types.RequestContext) []string {
	if n.synonyms == nil {
		return nil
	}
	variants := n.synonyms.ExpandQuery(rawQuery, maxSynonymVariants)
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == rawQuery {
			continue
		}
		keys = append(keys, CacheKey(v, variableName, reqCtx))
	}
	return keys
}

const promptTemplate = `Extract a structured data request from the text below. Respond with a single JSON object with exactly these keys: data_need, data_type, target_entity, target_segment, target_product, target_audience, granularity, time_reference, inferred_domains (array of strings). Use empty string ("") or empty array for fields you cannot determine. Do not include any text outside the JSON object.

Variable name: %s
Variable type: %s
Query: %s
Context: %s
`

type modelReply struct {
	DataNeed        string   `json:"data_need"`
	DataType        string   `json:"data_type"`
	TargetEntity    string   `json:"target_entity"`
	TargetSegment   string   `json:"target_segment"`
	TargetProduct   string   `json:"target_product"`
	TargetAudience  string   `json:"target_audience"`
	Granularity     string   `json:"granularity"`
	TimeReference   string   `json:"time_reference"`
	InferredDomains []string `json:"inferred_domains"`
}

func (n *Normalizer) callModel(ctx context.Context, rawQuery, variableName, variableType string, reqCtx types.RequestContext, deadline time.Time) (types.Intent, error) {
	ctxParts := make([]string, 0, 4)
	for k, v := range reqCtx.AsMap() {
		ctxParts = append(ctxParts, fmt.Sprintf("%s=%s", k, v))
	}
	prompt := fmt.Sprintf(promptTemplate, variableName, variableType, rawQuery, strings.Join(ctxParts, ","))

	reply, err := n.model.Complete(ctx, prompt, deadline)
	if err != nil {
		return types.Intent{}, err
	}

	var parsed modelReply
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return types.Intent{}, fmt.Errorf("intent: parsing model reply: %w", err)
	}
	if parsed.DataNeed == "" {
		return types.Intent{}, fmt.Errorf("intent: model reply missing data_need")
	}

	return types.Intent{
		DataNeed:        parsed.DataNeed,
		DataType:        parsed.DataType,
		TargetEntity:    parsed.TargetEntity,
		TargetSegment:   parsed.TargetSegment,
		TargetProduct:   parsed.TargetProduct,
		TargetAudience:  parsed.TargetAudience,
		Granularity:     parsed.Granularity,
		TimeReference:   parsed.TimeReference,
		InferredDomains: parsed.InferredDomains,
	}, nil
}

// extractJSON trims any leading/trailing prose a model might add despite
// instructions, returning the substring spanning the first '{' to the
// last '}'.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
