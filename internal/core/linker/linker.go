// Package linker finds entity mentions in free text.
package linker

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agenthands/graphrag/internal/core/alias"
	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/logger"
)

type Options struct {
	MaxNGram            int
	SimilarityThreshold float64
	MinFuzzyLength      int
}

type Linker struct {
	index *alias.Index
	opts  Options
}

func New(index *alias.Index, opts Options) *Linker {
	if opts.MaxNGram < 1 {
		opts.MaxNGram = 4
	}
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = 0.85
	}
	if opts.MinFuzzyLength < 1 {
		opts.MinFuzzyLength = 5
	}
	return &Linker{index: index, opts: opts}
}

type token struct {
	text string
	key  string
}

// Link returns the mentions found in text, ordered by position. Exact
// matches are taken greedily, longest window first; remaining spans are then
// tried against the fuzzy matcher. Spans that match nothing are dropped.
func (l *Linker) Link(ctx context.Context, text string) []model.LinkedMention {
	tokens := tokenize(text)
	if len(tokens) == 0 || l.index == nil {
		return nil
	}

	consumed := make([]bool, len(tokens))
	var mentions []model.LinkedMention

	match := func(lookup func(string) []model.Candidate, minLen int) {
		for i := 0; i < len(tokens); {
			if consumed[i] {
				i++
				continue
			}
			n := l.window(tokens, consumed, i)
			hit := false
			for ; n >= 1; n-- {
				span := tokens[i : i+n]
				if isStopword(span[0].key) || isStopword(span[n-1].key) {
					continue
				}
				surface := joinText(span)
				if minLen > 0 && utf8.RuneCountInString(alias.Normalize(surface)) < minLen {
					continue
				}
				cands := lookup(surface)
				if len(cands) == 0 {
					continue
				}
				mentions = append(mentions, newMention(surface, i, i+n, cands))
				for j := i; j < i+n; j++ {
					consumed[j] = true
				}
				i += n
				hit = true
				break
			}
			if !hit {
				i++
			}
		}
	}

	match(l.index.Lookup, 0)
	match(func(s string) []model.Candidate {
		return l.index.Fuzzy(s, l.opts.SimilarityThreshold)
	}, l.opts.MinFuzzyLength)

	sort.Slice(mentions, func(a, b int) bool { return mentions[a].Start < mentions[b].Start })

	for _, m := range mentions {
		if m.Ambiguous {
			ids := make([]string, 0, len(m.Candidates))
			for _, c := range m.Candidates {
				ids = append(ids, c.Entity.ID)
			}
			logger.Debug(ctx, "ambiguous mention", "span", m.Span, "candidates", ids)
		}
	}
	return mentions
}

// window is the widest n-gram starting at i that stays within unconsumed tokens.
func (l *Linker) window(tokens []token, consumed []bool, i int) int {
	n := 0
	for j := i; j < len(tokens) && n < l.opts.MaxNGram && !consumed[j]; j++ {
		n++
	}
	return n
}

func newMention(surface string, start, end int, cands []model.Candidate) model.LinkedMention {
	m := model.LinkedMention{Span: surface, Start: start, End: end, Candidates: cands}
	if len(cands) > 1 && cands[0].Score == cands[1].Score {
		m.Ambiguous = true
	}
	return m
}

func joinText(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

// tokenize splits on whitespace and sentence punctuation and trims edge
// punctuation, keeping inner characters such as "Aβ-42" or "MONDO:0004975".
func tokenize(text string) []token {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		if unicode.IsSpace(r) {
			return true
		}
		switch r {
		case ',', ';', '?', '!', '(', ')', '[', ']', '{', '}', '"', '“', '”':
			return true
		}
		return false
	})

	out := make([]token, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		key := alias.Normalize(f)
		if key == "" {
			continue
		}
		out = append(out, token{text: f, key: key})
	}
	return out
}

// ContentTerms returns the normalized non-stopword tokens of text, in order
// and without repeats.
func ContentTerms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range tokenize(text) {
		if isStopword(t.key) {
			continue
		}
		if _, ok := seen[t.key]; ok {
			continue
		}
		seen[t.key] = struct{}{}
		terms = append(terms, t.key)
	}
	return terms
}
