// Package alias maps surface forms to canonical graph entities.
//
// An Index is built once at startup and never mutated afterwards, so it can
// be shared by every request without locking.
package alias

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/agenthands/graphrag/internal/core/model"
)

type entry struct {
	id   string
	kind model.MatchKind
}

type Index struct {
	exact    map[string][]entry
	entities map[string]model.Entity
	byLen    map[int][]string
	version  string
}

// Builder accumulates entities before freezing them into an Index.
type Builder struct {
	entities map[string]*model.Entity
}

func NewBuilder() *Builder {
	return &Builder{entities: make(map[string]*model.Entity)}
}

// Add registers an entity. Adding the same ID twice merges aliases and keeps
// the first non-empty name and known type.
func (b *Builder) Add(e model.Entity) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return
	}
	cur, ok := b.entities[id]
	if !ok {
		c := e
		c.ID = id
		c.Aliases = append([]string(nil), e.Aliases...)
		b.entities[id] = &c
		return
	}
	if cur.Name == "" {
		cur.Name = e.Name
	}
	if cur.Type == "" || cur.Type == model.TypeUnknown {
		cur.Type = e.Type
	}
	cur.Aliases = append(cur.Aliases, e.Aliases...)
	if len(e.Attributes) > 0 {
		if cur.Attributes == nil {
			cur.Attributes = make(map[string]interface{}, len(e.Attributes))
		}
		for k, v := range e.Attributes {
			if _, exists := cur.Attributes[k]; !exists {
				cur.Attributes[k] = v
			}
		}
	}
}

func (b *Builder) Len() int { return len(b.entities) }

func (b *Builder) Build() *Index {
	idx := &Index{
		exact:    make(map[string][]entry),
		entities: make(map[string]model.Entity, len(b.entities)),
		byLen:    make(map[int][]string),
	}

	ids := make([]string, 0, len(b.entities))
	for id := range b.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		e := *b.entities[id]
		e.Aliases = dedupeAliases(e.Aliases, e.Name)
		idx.entities[id] = e

		idx.addKey(Normalize(e.Name), id, model.MatchCanonical)
		idx.addKey(Normalize(id), id, model.MatchCanonical)
		for _, a := range e.Aliases {
			idx.addKey(Normalize(a), id, model.MatchAlias)
		}

		h.Write([]byte(id))
		h.Write([]byte{0x1f})
		h.Write([]byte(e.Name))
		h.Write([]byte{0x1f})
		h.Write([]byte(e.Type))
		for _, a := range e.Aliases {
			h.Write([]byte{0x1f})
			h.Write([]byte(a))
		}
		h.Write([]byte{'\n'})
	}
	idx.version = hex.EncodeToString(h.Sum(nil))[:16]

	for k := range idx.exact {
		n := utf8.RuneCountInString(k)
		idx.byLen[n] = append(idx.byLen[n], k)
	}
	for n := range idx.byLen {
		sort.Strings(idx.byLen[n])
	}
	return idx
}

func (idx *Index) addKey(key, id string, kind model.MatchKind) {
	if key == "" {
		return
	}
	entries := idx.exact[key]
	for i, e := range entries {
		if e.id == id {
			if kind == model.MatchCanonical {
				entries[i].kind = kind
			}
			return
		}
	}
	idx.exact[key] = append(entries, entry{id: id, kind: kind})
}

func dedupeAliases(aliases []string, name string) []string {
	seen := map[string]struct{}{Normalize(name): {}}
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		k := Normalize(a)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Version identifies the index contents. Caches key on it.
func (idx *Index) Version() string { return idx.version }

func (idx *Index) Size() int { return len(idx.entities) }

func (idx *Index) Entity(id string) (model.Entity, bool) {
	e, ok := idx.entities[id]
	return e, ok
}

// Lookup resolves span by exact key. Canonical names and IDs score
// ScoreCanonical, aliases ScoreAlias.
func (idx *Index) Lookup(span string) []model.Candidate {
	key := Normalize(span)
	if key == "" {
		return nil
	}
	entries := idx.exact[key]
	if len(entries) == 0 {
		return nil
	}
	out := make([]model.Candidate, 0, len(entries))
	for _, e := range entries {
		score := model.ScoreAlias
		if e.kind == model.MatchCanonical {
			score = model.ScoreCanonical
		}
		out = append(out, model.Candidate{Entity: idx.entities[e.id], Score: score, Match: e.kind})
	}
	return Collapse(out)
}

// Fuzzy resolves span by edit-distance similarity against every key of a
// compatible length. Only matches with similarity >= threshold are returned,
// scored ScoreFuzzyMax * similarity.
func (idx *Index) Fuzzy(span string, threshold float64) []model.Candidate {
	key := Normalize(span)
	n := utf8.RuneCountInString(key)
	if n == 0 || threshold <= 0 {
		return nil
	}

	lo := int(math.Ceil(float64(n)*threshold - 1e-9))
	hi := int(math.Floor(float64(n)/threshold + 1e-9))

	var out []model.Candidate
	for l := lo; l <= hi; l++ {
		for _, k := range idx.byLen[l] {
			sim := similarity(key, k, n, l)
			if sim < threshold {
				continue
			}
			for _, e := range idx.exact[k] {
				out = append(out, model.Candidate{
					Entity: idx.entities[e.id],
					Score:  model.ScoreFuzzyMax * sim,
					Match:  model.MatchFuzzy,
				})
			}
		}
	}
	return Collapse(out)
}

func similarity(a, b string, la, lb int) float64 {
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// Collapse keeps the best-scoring candidate per entity ID and orders the
// result by score descending, then ID ascending.
func Collapse(cands []model.Candidate) []model.Candidate {
	if len(cands) == 0 {
		return nil
	}
	best := make(map[string]int, len(cands))
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if i, ok := best[c.Entity.ID]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		best[c.Entity.ID] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	return out
}
