package llm

import (
	"context"
	"time"
)

// FakeModel is a deterministic LanguageModel for tests: it returns a
// canned reply (or an error) without making any network call.
type FakeModel struct {
	Reply string
	Err   error
	Calls int
}

func (f *FakeModel) Complete(ctx context.Context, prompt string, deadline time.Time) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}
