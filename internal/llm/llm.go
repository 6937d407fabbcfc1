// Package llm provides the LanguageModel capability interface (spec §6.2)
// and an anthropic-sdk-go backed implementation, generalizing the
// teacher's haikuClient (internal/compact/haiku.go in the teacher repo):
// same retry/backoff shape and OTel instrumentation, but exposing a
// single prompt/deadline contract instead of issue-summarization methods.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// LanguageModel is the capability interface every caller in the retrieval
// DAG depends on (IntentNormalizer §4.1, LLMReranker §4.8). It never
// returns an error to ascend past a node boundary: callers treat an
// error as a dependency-unavailable condition and substitute a fallback.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, deadline time.Time) (string, error)
}

var errAPIKeyRequired = errors.New("llm: ANTHROPIC_API_KEY is required")

// AnthropicModel wraps anthropic-sdk-go with bounded retry/backoff and
// OTel instrumentation, mirroring the teacher's haikuClient.
type AnthropicModel struct {
	client anthropic.Client
	model  anthropic.Model

	maxRetries     uint64
	initialBackoff time.Duration

	tracer trace.Tracer
	instr  *instruments
}

// Option configures an AnthropicModel.
type Option func(*AnthropicModel)

// WithModel overrides the default model identifier.
func WithModel(m string) Option {
	return func(a *AnthropicModel) { a.model = anthropic.Model(m) }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n uint64) Option {
	return func(a *AnthropicModel) { a.maxRetries = n }
}

const defaultModel = "claude-3-5-haiku-20241022"

// NewAnthropicModel builds a LanguageModel backed by the Anthropic API.
// ANTHROPIC_API_KEY in the environment takes precedence over apiKey.
func NewAnthropicModel(apiKey string, meter metric.Meter, tracer trace.Tracer, opts ...Option) (*AnthropicModel, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	a := &AnthropicModel{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          defaultModel,
		maxRetries:     3,
		initialBackoff: time.Second,
		tracer:         tracer,
		instr:          newInstruments(meter),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type instruments struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
	retries      metric.Int64Counter
}

func newInstruments(meter metric.Meter) *instruments {
	if meter == nil {
		return &instruments{}
	}
	in := &instruments{}
	in.inputTokens, _ = meter.Int64Counter("catalogmatch.llm.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"), metric.WithUnit("{token}"))
	in.outputTokens, _ = meter.Int64Counter("catalogmatch.llm.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"), metric.WithUnit("{token}"))
	in.duration, _ = meter.Float64Histogram("catalogmatch.llm.request.duration",
		metric.WithDescription("Anthropic API request duration"), metric.WithUnit("ms"))
	in.retries, _ = meter.Int64Counter("catalogmatch.llm.retries",
		metric.WithDescription("Anthropic API call retry attempts"))
	return in
}

// Complete sends prompt as a single user message and returns the first
// text block of the reply, retrying transient failures with exponential
// backoff up to maxRetries and the given deadline.
func (a *AnthropicModel) Complete(ctx context.Context, prompt string, deadline time.Time) (string, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var span trace.Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, "llm.complete")
		defer span.End()
		span.SetAttributes(attribute.String("catalogmatch.llm.model", string(a.model)))
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(a.initialBackoff)), a.maxRetries), ctx)

	var result string
	attempt := 0
	op := func() error {
		if attempt > 0 && a.instr.retries != nil {
			a.instr.retries.Add(ctx, 1)
		}
		attempt++

		t0 := time.Now()
		message, err := a.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		attrs := metric.WithAttributes(attribute.String("catalogmatch.llm.model", string(a.model)))
		if a.instr.inputTokens != nil {
			a.instr.inputTokens.Add(ctx, message.Usage.InputTokens, attrs)
			a.instr.outputTokens.Add(ctx, message.Usage.OutputTokens, attrs)
			a.instr.duration.Record(ctx, ms, attrs)
		}

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("llm: empty response content"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("llm: unexpected content type %q", content.Type))
		}
		result = content.Text
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	return result, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
