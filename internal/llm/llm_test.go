package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeModelReturnsReply(t *testing.T) {
	m := &FakeModel{Reply: `{"data_need":"x"}`}
	got, err := m.Complete(context.Background(), "prompt", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"data_need":"x"}` {
		t.Fatalf("got %q", got)
	}
	if m.Calls != 1 {
		t.Fatalf("Calls = %d, want 1", m.Calls)
	}
}

func TestFakeModelReturnsError(t *testing.T) {
	wantErr := errors.New("boom")
	m := &FakeModel{Err: wantErr}
	_, err := m.Complete(context.Background(), "prompt", time.Now().Add(time.Second))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestNewAnthropicModelRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicModel("", nil, nil); err == nil {
		t.Fatal("expected error when no api key is available")
	}
}
