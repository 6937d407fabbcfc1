package intent

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/catalogmatch/internal/llm"
	"github.com/steveyegge/catalogmatch/internal/synonym"
	"github.com/steveyegge/catalogmatch/internal/types"
)

func TestCacheKeyInsensitiveToWhitespaceCaseStopwords(t *testing.T) {
	a := CacheKey("Vendas mensais de consignado", "", types.RequestContext{})
	b := CacheKey("  vendas   MENSAIS  consignado", "", types.RequestContext{})
	if a != b {
		t.Fatalf("cache keys differ: %q vs %q", a, b)
	}
}

func TestCacheKeyVariesWithContext(t *testing.T) {
	a := CacheKey("vendas", "", types.RequestContext{Produto: "consig"})
	b := CacheKey("vendas", "", types.RequestContext{Produto: "imob"})
	if a == b {
		t.Fatal("expected differing context to change the cache key")
	}
}

func TestNormalizeCacheHit(t *testing.T) {
	syns, _ := synonym.New("")
	model := &llm.FakeModel{Reply: `{"data_need":"vendas mensais","inferred_domains":["vendas"]}`}
	n := New(model, syns, 100, time.Hour)

	deadline := time.Now().Add(time.Second)
	first := n.Normalize(context.Background(), "vendas mensais", "", "", types.RequestContext{}, deadline)
	if first.DataNeed != "vendas mensais" {
		t.Fatalf("DataNeed = %q", first.DataNeed)
	}
	if model.Calls != 1 {
		t.Fatalf("expected 1 model call, got %d", model.Calls)
	}

	second := n.Normalize(context.Background(), "vendas mensais", "", "", types.RequestContext{}, deadline)
	if model.Calls != 1 {
		t.Fatalf("expected cache hit to avoid a second model call, got %d calls", model.Calls)
	}
	if second.OriginalQuery != "vendas mensais" {
		t.Fatalf("OriginalQuery = %q", second.OriginalQuery)
	}
}

func TestNormalizeFallbackOnModelError(t *testing.T) {
	syns, _ := synonym.New("")
	model := &llm.FakeModel{Err: context.DeadlineExceeded}
	n := New(model, syns, 100, time.Hour)

	out := n.Normalize(context.Background(), "vendas mensais", "varVendas", "", types.RequestContext{}, time.Now().Add(time.Second))
	if !out.Fallback {
		t.Fatal("expected fallback intent")
	}
	if out.ExtractionConfidence >= 0.5 {
		t.Fatalf("fallback confidence = %v, want < 0.5", out.ExtractionConfidence)
	}
	if out.DataNeed != "varVendas" {
		t.Fatalf("DataNeed = %q, want variable name", out.DataNeed)
	}
}

func TestNormalizeDomainExpansion(t *testing.T) {
	syns, _ := synonym.New("")
	model := &llm.FakeModel{Reply: `{"data_need":"x","inferred_domains":["vendas"]}`}
	n := New(model, syns, 100, time.Hour)

	out := n.Normalize(context.Background(), "x", "", "", types.RequestContext{}, time.Now().Add(time.Second))
	if len(out.InferredDomains) <= 1 {
		t.Fatalf("expected domain expansion beyond the seed, got %v", out.InferredDomains)
	}
}
