package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/metrics"
)

// Store is the read-only view of the knowledge graph used at query time.
// Every failure to reach the graph is reported as model.ErrGraphUnavailable.
type Store struct {
	driver       GraphDriver
	queryTimeout time.Duration
}

func NewStore(d GraphDriver, queryTimeout time.Duration) *Store {
	return &Store{driver: d, queryTimeout: queryTimeout}
}

func (s *Store) run(ctx context.Context, kind, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	qctx := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	res, err := s.driver.ExecuteQuery(qctx, query, params)
	if err != nil {
		metrics.GraphQueriesTotal.WithLabelValues(kind, "error").Inc()
		if ctx.Err() != nil {
			return neo4j.EagerResult{}, ctx.Err()
		}
		return neo4j.EagerResult{}, fmt.Errorf("%w: %s: %v", model.ErrGraphUnavailable, kind, err)
	}
	metrics.GraphQueriesTotal.WithLabelValues(kind, "ok").Inc()
	return res, nil
}

// Ping checks that the graph answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrGraphUnavailable, err)
	}
	return nil
}

// EnsureIndexes creates the per-label id indexes that neighbor lookups rely
// on. Existing indexes are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, q := range IndexQueries() {
		if _, err := s.run(ctx, "schema", q, nil); err != nil {
			return err
		}
	}
	return nil
}

// Neighbors returns the allowed incident edges of each id, keyed by id.
// At most limit edges are returned per id.
func (s *Store) Neighbors(ctx context.Context, ids, edgeTypes []string, limit int) (map[string][]model.Neighbor, error) {
	out := make(map[string][]model.Neighbor, len(ids))
	if len(ids) == 0 || len(edgeTypes) == 0 || limit <= 0 {
		return out, nil
	}

	res, err := s.run(ctx, "neighbors", NeighborsQuery, map[string]interface{}{
		"ids":   ids,
		"types": edgeTypes,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}

	for _, rec := range res.Records {
		origin := str(get(rec, "origin"))
		rel := str(get(rec, "rel"))
		outgoing, _ := get(rec, "outgoing").(bool)
		relProps := props(get(rec, "rel_props"))
		neighbor := entityFrom(
			str(get(rec, "neighbor_id")),
			get(rec, "neighbor_labels"),
			str(get(rec, "neighbor_name")),
			get(rec, "neighbor_synonyms"),
			props(get(rec, "neighbor_props")),
		)

		edge := model.Edge{Type: rel, Properties: relProps, Provenance: provenance(relProps)}
		if outgoing {
			edge.From, edge.To = origin, neighbor.ID
		} else {
			edge.From, edge.To = neighbor.ID, origin
		}
		out[origin] = append(out[origin], model.Neighbor{Edge: edge, Entity: neighbor, Outgoing: outgoing})
	}
	return out, nil
}

// SearchEntities matches lower-cased terms against entity names and synonyms.
func (s *Store) SearchEntities(ctx context.Context, terms []string, limit int) ([]model.Entity, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	res, err := s.run(ctx, "search", SearchEntitiesQuery, map[string]interface{}{
		"terms": lowered,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}

	entities := make([]model.Entity, 0, len(res.Records))
	for _, rec := range res.Records {
		entities = append(entities, entityFrom(
			str(get(rec, "id")),
			get(rec, "labels"),
			str(get(rec, "name")),
			get(rec, "synonyms"),
			props(get(rec, "props")),
		))
	}
	return entities, nil
}

// AllEntities lists every identified node with its names, for building the
// alias index.
func (s *Store) AllEntities(ctx context.Context) ([]model.Entity, error) {
	res, err := s.run(ctx, "all_entities", AllEntitiesQuery, nil)
	if err != nil {
		return nil, err
	}
	entities := make([]model.Entity, 0, len(res.Records))
	for _, rec := range res.Records {
		e := entityFrom(str(get(rec, "id")), get(rec, "labels"), str(get(rec, "name")), get(rec, "synonyms"), nil)
		if sym := str(get(rec, "symbol")); sym != "" {
			e.Aliases = append(e.Aliases, sym)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func get(rec *neo4j.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func props(v any) map[string]interface{} {
	m, _ := v.(map[string]any)
	return m
}

var reservedProps = map[string]struct{}{"id": {}, "label": {}, "name": {}, "synonyms": {}}

func entityFrom(id string, labels any, name string, synonyms any, nodeProps map[string]interface{}) model.Entity {
	e := model.Entity{ID: id, Name: name, Type: model.TypeUnknown, Aliases: aliases(synonyms)}
	if ls, ok := labels.([]any); ok {
		for _, l := range ls {
			if t := model.ParseEntityType(str(l)); t != model.TypeUnknown {
				e.Type = t
				break
			}
		}
	}
	for k, v := range nodeProps {
		if _, skip := reservedProps[k]; skip {
			continue
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]interface{}, len(nodeProps))
		}
		e.Attributes[k] = v
	}
	return e
}

// aliases accepts the pipe-delimited string written by the graph build or a
// native list.
func aliases(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, "|")
	case []any:
		for _, x := range t {
			raw = append(raw, str(x))
		}
	}
	out := raw[:0]
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func provenance(p map[string]interface{}) model.Provenance {
	var prov model.Provenance
	for _, k := range []string{"source", "sources", "evidence_source", "pmid"} {
		if s := str(p[k]); s != "" {
			prov.Source = s
			break
		}
	}
	for _, k := range []string{"confidence", "score"} {
		if f, ok := toFloat(p[k]); ok {
			prov.Confidence = &f
			break
		}
	}
	return prov
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
