// Package core wires the query stages into the answering pipeline.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/graphrag/internal/core/alias"
	"github.com/agenthands/graphrag/internal/core/assemble"
	"github.com/agenthands/graphrag/internal/core/generate"
	"github.com/agenthands/graphrag/internal/core/intent"
	"github.com/agenthands/graphrag/internal/core/linker"
	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/core/retrieval"
	"github.com/agenthands/graphrag/internal/logger"
	"github.com/agenthands/graphrag/internal/metrics"
	"github.com/agenthands/graphrag/internal/tracing"
)

const GraphUnavailableText = "The knowledge graph is currently unreachable, so this question could not be answered from its data. Please try again later."

// Pipeline answers one question at a time. All fields are set once at start
// up and shared read-only by concurrent requests.
type Pipeline struct {
	Index     *alias.Index
	Linker    *linker.Linker
	Router    *intent.Router
	Retriever *retrieval.Retriever
	Assembler *assemble.Assembler
	Generator *generate.Generator

	MaxQuestionLength int
}

// Answer runs every stage for q. Only a malformed question or the caller's
// cancellation is returned as an error. Stage failures, including running
// out of time on ctx's deadline, are folded into a complete, degraded Answer.
func (p *Pipeline) Answer(ctx context.Context, q model.Question) (*model.Answer, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: question is empty", model.ErrMalformedRequest)
	}
	if p.MaxQuestionLength > 0 && utf8.RuneCountInString(text) > p.MaxQuestionLength {
		return nil, fmt.Errorf("%w: question longer than %d characters", model.ErrMalformedRequest, p.MaxQuestionLength)
	}

	ctx, span := tracing.Start(ctx, "pipeline.Answer")
	defer span.End()

	// Linking and classification are independent.
	var (
		mentions  []model.LinkedMention
		intentRaw model.Intent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stage("link", time.Now())
		mentions = p.Linker.Link(gctx, text)
		return gctx.Err()
	})
	g.Go(func() error {
		defer stage("classify", time.Now())
		intentRaw = p.Router.Classify(text)
		return gctx.Err()
	})
	if err := g.Wait(); errors.Is(err, context.Canceled) {
		return nil, err
	}
	mentions = p.withFocusIDs(mentions, intentRaw.FocusIDs)
	metrics.LinkedMentions.Observe(float64(len(mentions)))

	in := p.Router.Route(intentRaw, mentions)
	span.SetAttributes(
		attribute.String("intent", string(in.Category)),
		attribute.String("strategy", string(in.Strategy)),
		attribute.Int("mentions", len(mentions)),
	)
	logger.Debug(ctx, "question routed", "intent", in.Category, "strategy", in.Strategy, "mentions", len(mentions))

	ans := &model.Answer{IntentType: in.Category, IntentNotes: in.Notes, Strategy: in.Strategy}

	start := time.Now()
	res, err := p.Retriever.Retrieve(ctx, retrieval.Query{
		Intent:   in,
		Mentions: mentions,
		Text:     text,
		Terms:    searchTerms(text),
	})
	stage("retrieve", start)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if !errors.Is(err, model.ErrGraphUnavailable) {
			err = fmt.Errorf("%w: %v", model.ErrGraphUnavailable, err)
		}
		logger.Error(ctx, "retrieval failed", err, "strategy", in.Strategy)
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph unavailable")

		ans.Text = GraphUnavailableText
		ans.Degraded = model.DegradedGraphUnavailable
		p.finish(ans, q, assemble.EmptyMarker)
		return ans, nil
	}

	start = time.Now()
	c := p.Assembler.Assemble(res)
	stage("assemble", start)
	if c.Empty {
		logger.Info(ctx, "no facts retrieved", "strategy", in.Strategy, "intent", in.Category)
	}

	start = time.Now()
	gen, err := p.Generator.Generate(ctx, text, in, c)
	stage("generate", start)
	if err != nil {
		return nil, err
	}

	ans.Text = gen.Text
	ans.Degraded = gen.Degraded
	p.finish(ans, q, c.Text)
	return ans, nil
}

func (p *Pipeline) finish(ans *model.Answer, q model.Question, contextText string) {
	if q.ReturnContext {
		ans.Context = &contextText
	}
	outcome := string(ans.Degraded)
	if outcome == "" {
		outcome = "ok"
	}
	metrics.AnswersTotal.WithLabelValues(string(ans.IntentType), string(ans.Strategy), outcome).Inc()
}

// withFocusIDs adds identifiers written literally in the question that the
// linker did not already resolve.
func (p *Pipeline) withFocusIDs(mentions []model.LinkedMention, ids []string) []model.LinkedMention {
	if p.Index == nil || len(ids) == 0 {
		return mentions
	}
	linked := make(map[string]struct{})
	for _, m := range mentions {
		for _, c := range m.Candidates {
			linked[c.Entity.ID] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := linked[id]; ok {
			continue
		}
		e, ok := p.Index.Entity(id)
		if !ok {
			continue
		}
		linked[id] = struct{}{}
		mentions = append(mentions, model.LinkedMention{
			Span:       id,
			Candidates: []model.Candidate{{Entity: e, Score: model.ScoreCanonical, Match: model.MatchCanonical}},
		})
	}
	return mentions
}

// searchTerms drops routing keywords so the text search looks for the
// subject of the question rather than words like "treatment".
func searchTerms(text string) []string {
	var terms []string
	for _, t := range linker.ContentTerms(text) {
		if !intent.IsKeyword(t) {
			terms = append(terms, t)
		}
	}
	return terms
}

func stage(name string, start time.Time) {
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
