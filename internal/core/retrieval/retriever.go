// Package retrieval runs the bounded graph queries behind each intent.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/logger"
	"github.com/agenthands/graphrag/internal/metrics"
)

type Store interface {
	Neighbors(ctx context.Context, ids, edgeTypes []string, limit int) (map[string][]model.Neighbor, error)
	SearchEntities(ctx context.Context, terms []string, limit int) ([]model.Entity, error)
}

// Cache stores finished retrievals. Keys already include the alias index
// version, so entries never outlive the index they were built from.
type Cache interface {
	Get(ctx context.Context, key string) (*model.RetrievalResult, bool)
	Set(ctx context.Context, key string, r *model.RetrievalResult)
}

type Options struct {
	MaxResults   int // N
	MaxDepth     int // k
	KeywordLimit int
	IndexVersion string
}

type Query struct {
	Intent   model.Intent
	Mentions []model.LinkedMention
	Text     string
	Terms    []string // content words for keyword fallback
}

type Retriever struct {
	store Store
	cache Cache
	opts  Options
	group singleflight.Group
}

func New(store Store, cache Cache, opts Options) *Retriever {
	if opts.MaxResults < 0 {
		opts.MaxResults = 0
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	if opts.KeywordLimit <= 0 {
		opts.KeywordLimit = opts.MaxResults
	}
	return &Retriever{store: store, cache: cache, opts: opts}
}

// Retrieve runs exactly one strategy. A result with no items is a normal
// outcome; only an unreachable graph is an error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*model.RetrievalResult, error) {
	seeds := seedsOf(q.Mentions)
	pred := ParsePredicate(q.Text)
	key := r.cacheKey(q, seeds, pred)

	if r.cache != nil {
		if res, ok := r.cache.Get(ctx, key); ok {
			return res, nil
		}
	}

	for {
		v, err, shared := r.group.Do(key, func() (interface{}, error) {
			res, err := r.retrieve(ctx, q, seeds, pred)
			if err != nil {
				return nil, err
			}
			if r.cache != nil {
				r.cache.Set(ctx, key, res)
			}
			return res, nil
		})
		if err != nil {
			// The call this request joined ended with its leader's context.
			// Run again under our own unless we are done as well.
			if shared && ctx.Err() == nil && callerGone(err) {
				logger.Debug(ctx, "coalesced retrieval cancelled by another request, retrying")
				r.group.Forget(key)
				continue
			}
			return nil, err
		}
		res := v.(*model.RetrievalResult)
		if shared {
			res = clone(res)
		}
		metrics.RetrievedItems.WithLabelValues(string(res.Strategy)).Observe(float64(len(res.Items)))
		return res, nil
	}
}

// callerGone reports a bare context error. Store timeouts are wrapped as
// ErrGraphUnavailable and do not count.
func callerGone(err error) bool {
	if errors.Is(err, model.ErrGraphUnavailable) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Retriever) retrieve(ctx context.Context, q Query, seeds []model.Entity, pred Predicate) (*model.RetrievalResult, error) {
	strategy := q.Intent.Strategy
	res := &model.RetrievalResult{Strategy: strategy}
	if r.opts.MaxResults == 0 {
		return res, nil
	}

	var err error
	switch strategy {
	case model.StrategyKeywordFallback:
		err = r.keywordFallback(ctx, q.Terms, res)
	case model.StrategyMultiHop:
		err = r.traverse(ctx, seeds, q.Intent.EdgeTypes, r.opts.MaxDepth, Predicate{}, res)
	case model.StrategyAttributeFilter:
		if pred.Empty() {
			logger.Debug(ctx, "no value predicate in question, using neighbor lookup")
		}
		err = r.traverse(ctx, seeds, q.Intent.EdgeTypes, 1, pred, res)
	default:
		err = r.traverse(ctx, seeds, q.Intent.EdgeTypes, 1, Predicate{}, res)
	}
	if err != nil {
		return nil, err
	}

	rank(res.Items)
	if len(res.Items) > r.opts.MaxResults {
		res.Items = res.Items[:r.opts.MaxResults]
		res.Truncated = true
	}
	return res, nil
}

// traverse walks outward from the seeds breadth first, up to depth hops.
// Within a hop, origins are expanded in seed order and their neighbors in
// ascending ID order. Expansion stops once MaxResults facts are collected.
func (r *Retriever) traverse(ctx context.Context, seeds []model.Entity, edgeTypes []string, depth int, pred Predicate, res *model.RetrievalResult) error {
	if len(seeds) == 0 || len(edgeTypes) == 0 {
		return nil
	}

	limit := r.opts.MaxResults
	priority := priorities(edgeTypes)
	seen := make(map[string]struct{})
	visited := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		visited[s.ID] = struct{}{}
	}
	frontier := seeds

	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids := make([]string, len(frontier))
		for i, f := range frontier {
			ids[i] = f.ID
		}
		found, err := r.store.Neighbors(ctx, ids, edgeTypes, limit)
		if err != nil {
			return err
		}

		var next []model.Entity
		for _, origin := range frontier {
			neighbors := append([]model.Neighbor(nil), found[origin.ID]...)
			sort.SliceStable(neighbors, func(i, j int) bool {
				if neighbors[i].Entity.ID != neighbors[j].Entity.ID {
					return neighbors[i].Entity.ID < neighbors[j].Entity.ID
				}
				return neighbors[i].Edge.Type < neighbors[j].Edge.Type
			})

			for _, n := range neighbors {
				if !pred.Empty() && !pred.Match(n.Edge.Properties, n.Entity.Attributes) {
					continue
				}
				item := toItem(origin, n, hop, priority)
				if _, dup := seen[item.Key()]; dup {
					continue
				}
				if len(res.Items) >= limit {
					res.Truncated = true
					return nil
				}
				seen[item.Key()] = struct{}{}
				res.Items = append(res.Items, item)

				if _, ok := visited[n.Entity.ID]; !ok {
					visited[n.Entity.ID] = struct{}{}
					next = append(next, n.Entity)
				}
			}
		}
		frontier = next
	}
	return nil
}

func (r *Retriever) keywordFallback(ctx context.Context, terms []string, res *model.RetrievalResult) error {
	if len(terms) == 0 {
		return nil
	}
	limit := r.opts.KeywordLimit
	if limit > r.opts.MaxResults {
		limit = r.opts.MaxResults
	}
	entities, err := r.store.SearchEntities(ctx, terms, limit)
	if err != nil {
		return err
	}
	for _, e := range entities {
		res.Items = append(res.Items, model.Item{
			Subject: e,
			Score:   termCoverage(e, terms),
			Depth:   0,
		})
	}
	return nil
}

func termCoverage(e model.Entity, terms []string) float64 {
	text := strings.ToLower(e.Name + " " + strings.Join(e.Aliases, " "))
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

// priorities weights edge types by their position in the allow-list, from
// 1.0 for the first down to just above 0.5 for the last.
func priorities(edgeTypes []string) map[string]float64 {
	p := make(map[string]float64, len(edgeTypes))
	for i, t := range edgeTypes {
		if _, ok := p[t]; !ok {
			p[t] = 1.0 - 0.5*float64(i)/float64(len(edgeTypes))
		}
	}
	return p
}

// Each extra hop halves the score, so a shallower fact always outranks a
// deeper one.
func score(priority float64, depth int) float64 {
	return priority * math.Pow(0.5, float64(depth-1))
}

func toItem(origin model.Entity, n model.Neighbor, depth int, priority map[string]float64) model.Item {
	item := model.Item{
		Relation:   n.Edge.Type,
		Properties: n.Edge.Properties,
		Provenance: n.Edge.Provenance,
		Score:      score(priority[n.Edge.Type], depth),
		Depth:      depth,
	}
	other := n.Entity
	if n.Outgoing {
		item.Subject, item.Object = origin, &other
	} else {
		o := origin
		item.Subject, item.Object = other, &o
	}
	return item
}

func rank(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

// seedsOf picks the best candidates of each mention, keeping ties, in
// mention order and without repeats.
func seedsOf(mentions []model.LinkedMention) []model.Entity {
	var seeds []model.Entity
	seen := make(map[string]struct{})
	for _, m := range mentions {
		if len(m.Candidates) == 0 {
			continue
		}
		top := m.Candidates[0].Score
		for _, c := range m.Candidates {
			if c.Score != top {
				break
			}
			if _, ok := seen[c.Entity.ID]; ok {
				continue
			}
			seen[c.Entity.ID] = struct{}{}
			seeds = append(seeds, c.Entity)
		}
	}
	return seeds
}

func (r *Retriever) cacheKey(q Query, seeds []model.Entity, pred Predicate) string {
	ids := make([]string, len(seeds))
	for i, s := range seeds {
		ids[i] = s.ID
	}
	raw := strings.Join([]string{
		r.opts.IndexVersion,
		string(q.Intent.Strategy),
		strings.Join(ids, ","),
		strings.Join(q.Intent.EdgeTypes, ","),
		fmt.Sprintf("n=%d;k=%d;kw=%d", r.opts.MaxResults, r.opts.MaxDepth, r.opts.KeywordLimit),
		pred.String(),
		strings.Join(q.Terms, ","),
	}, "\x1f")
	sum := sha256.Sum256([]byte(raw))
	return "retrieval:" + hex.EncodeToString(sum[:])
}

func clone(r *model.RetrievalResult) *model.RetrievalResult {
	c := *r
	c.Items = append([]model.Item(nil), r.Items...)
	return &c
}
