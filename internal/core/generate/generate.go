// Package generate drives the generative model over an assembled context.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/llm"
	"github.com/agenthands/graphrag/internal/logger"
	"github.com/agenthands/graphrag/internal/metrics"
)

const (
	NoDataText      = "No information was found in the knowledge graph for this question."
	UnavailableText = "Answer generation is currently unavailable. Please try again later."
)

type Options struct {
	System         string
	Templates      map[string]string
	Temperature    float32
	MaxTokens      int
	Timeout        time.Duration // per attempt
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Reserve is kept back from the caller's deadline so the degraded answer
	// can still be delivered after the last attempt.
	Reserve time.Duration
}

func OptionsFrom(l config.LLMConfig, p config.PromptsConfig) Options {
	return Options{
		System:         p.System,
		Templates:      p.Templates,
		Temperature:    l.Temperature,
		MaxTokens:      l.MaxTokens,
		Timeout:        l.Timeout(),
		MaxAttempts:    l.MaxAttempts,
		InitialBackoff: l.InitialBackoff(),
		MaxBackoff:     l.MaxBackoff(),
		Reserve:        l.DeadlineReserve(),
	}
}

type Result struct {
	Text     string
	Degraded model.DegradedReason
	Attempts int
}

type Generator struct {
	client llm.LLMClient
	opts   Options
}

func New(client llm.LLMClient, opts Options) *Generator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.System == "" {
		opts.System = config.DefaultSystemPrompt
	}
	if opts.Templates == nil {
		opts.Templates = config.DefaultTemplates()
	}
	return &Generator{client: client, opts: opts}
}

// Prompt fills the template for the intent's prompt key, falling back to
// the default template.
func (g *Generator) Prompt(question string, intent model.Intent, c model.Context) string {
	tmpl, ok := g.opts.Templates[intent.PromptKey]
	if !ok {
		tmpl = g.opts.Templates["default"]
	}
	return strings.NewReplacer(
		"{intent}", string(intent.Category),
		"{context}", c.Text,
		"{question}", question,
	).Replace(tmpl)
}

// Generate answers from the context. Model failures never surface as errors:
// after the last attempt the fixed unavailable text is returned instead. A
// deadline on ctx bounds the attempts and also ends in the unavailable text.
// The only error is the caller's own cancellation.
func (g *Generator) Generate(ctx context.Context, question string, intent model.Intent, c model.Context) (Result, error) {
	if c.Empty {
		return Result{Text: NoDataText, Degraded: model.DegradedNoData}, nil
	}

	req := llm.Request{
		System:      g.opts.System,
		Prompt:      g.Prompt(question, intent, c),
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	}

	var (
		text     string
		attempts int
	)
	op := func() error {
		timeout, ok := g.budget(ctx)
		if !ok {
			return backoff.Permanent(fmt.Errorf("%w: no time left for another attempt", context.DeadlineExceeded))
		}
		attempts++
		out, err := g.attempt(ctx, req, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			if !llm.IsTransient(err) {
				return backoff.Permanent(err)
			}
			logger.Warn(ctx, "generation attempt failed", "attempt", attempts, "error", err)
			return err
		}
		text = out
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(g.policy(), ctx))
	if errors.Is(ctx.Err(), context.Canceled) {
		return Result{}, ctx.Err()
	}
	if err != nil {
		logger.Error(ctx, "generation unavailable", classify(err), "attempts", attempts)
		return Result{Text: UnavailableText, Degraded: model.DegradedGenerationUnavailable, Attempts: attempts}, nil
	}
	return Result{Text: strings.TrimSpace(text), Attempts: attempts}, nil
}

// budget is the timeout for the next attempt: the configured per-attempt
// timeout, cut down to what is left of ctx's deadline minus the reserve.
// It reports false once nothing is left.
func (g *Generator) budget(ctx context.Context) (time.Duration, bool) {
	timeout := g.opts.Timeout
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout, true
	}
	left := time.Until(deadline) - g.opts.Reserve
	if left <= 0 {
		return 0, false
	}
	if timeout <= 0 || left < timeout {
		timeout = left
	}
	return timeout, true
}

func (g *Generator) attempt(ctx context.Context, req llm.Request, timeout time.Duration) (string, error) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.client.Generate(actx, req)
	metrics.LLMCallDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LLMCallsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded):
		metrics.LLMCallsTotal.WithLabelValues("timeout").Inc()
		if !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	default:
		metrics.LLMCallsTotal.WithLabelValues("error").Inc()
	}
	return out, err
}

func (g *Generator) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if g.opts.InitialBackoff > 0 {
		b.InitialInterval = g.opts.InitialBackoff
	}
	if g.opts.MaxBackoff > 0 {
		b.MaxInterval = g.opts.MaxBackoff
	}
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(g.opts.MaxAttempts-1))
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %v", model.ErrGenerationUnavailable, err)
}
