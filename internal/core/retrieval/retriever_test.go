package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/graphrag/internal/core/model"
)

type mockStore struct {
	mu        sync.Mutex
	neighbors map[string][]model.Neighbor
	entities  []model.Entity
	err       error

	neighborCalls [][]string
	searchCalls   [][]string
	lastLimit     int
}

func (m *mockStore) Neighbors(ctx context.Context, ids, edgeTypes []string, limit int) (map[string][]model.Neighbor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighborCalls = append(m.neighborCalls, ids)
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	allowed := make(map[string]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}
	out := make(map[string][]model.Neighbor)
	for _, id := range ids {
		for _, n := range m.neighbors[id] {
			if allowed[n.Edge.Type] {
				out[id] = append(out[id], n)
			}
		}
	}
	return out, nil
}

func (m *mockStore) SearchEntities(ctx context.Context, terms []string, limit int) ([]model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, terms)
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if len(m.entities) > limit {
		return m.entities[:limit], nil
	}
	return m.entities, nil
}

type mapCache struct {
	data map[string]*model.RetrievalResult
	hits int
}

func (c *mapCache) Get(ctx context.Context, key string) (*model.RetrievalResult, bool) {
	r, ok := c.data[key]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *mapCache) Set(ctx context.Context, key string, r *model.RetrievalResult) {
	c.data[key] = r
}

func ent(id string, typ model.EntityType) model.Entity {
	return model.Entity{ID: id, Type: typ, Name: id}
}

func out(rel string, to model.Entity, edgeProps map[string]interface{}) model.Neighbor {
	return model.Neighbor{Edge: model.Edge{Type: rel, To: to.ID, Properties: edgeProps}, Entity: to, Outgoing: true}
}

func in(rel string, from model.Entity) model.Neighbor {
	return model.Neighbor{Edge: model.Edge{Type: rel, From: from.ID}, Entity: from, Outgoing: false}
}

func mention(e model.Entity) model.LinkedMention {
	return model.LinkedMention{Span: e.Name, Candidates: []model.Candidate{{Entity: e, Score: 1, Match: model.MatchCanonical}}}
}

var (
	ad       = ent("MONDO:0004975", model.TypeDisease)
	apoe     = ent("HGNC:613", model.TypeGene)
	apoeProt = ent("PR:P02649", model.TypeProtein)
	lipid    = ent("GO:0006869", model.TypePathway)
	abeta    = ent("BM:ab42", model.TypeBiomarker)
	tau      = ent("BM:ptau181", model.TypeBiomarker)
	nfl      = ent("BM:nfl", model.TypeBiomarker)
)

func biomarkerIntent() model.Intent {
	return model.Intent{
		Category:  model.IntentBiomarker,
		Strategy:  model.StrategyNeighborLookup,
		EdgeTypes: []string{"HAS_BIOMARKER", "BIOMARKER_OF"},
	}
}

func TestRetrieve_NeighborLookup(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		ad.ID: {
			in("BIOMARKER_OF", tau),
			out("HAS_BIOMARKER", abeta, nil),
			in("BIOMARKER_OF", abeta),
			out("TREATS", apoe, nil),
		},
	}}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})

	res, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}})
	require.NoError(t, err)

	assert.Equal(t, model.StrategyNeighborLookup, res.Strategy)
	assert.False(t, res.Truncated)
	require.Len(t, res.Items, 3)

	// HAS_BIOMARKER outranks BIOMARKER_OF; equal scores keep neighbor id order.
	assert.Equal(t, "HAS_BIOMARKER", res.Items[0].Relation)
	assert.Equal(t, ad.ID, res.Items[0].Subject.ID)
	assert.Equal(t, abeta.ID, res.Items[0].Object.ID)
	assert.Equal(t, abeta.ID, res.Items[1].Subject.ID)
	assert.Equal(t, ad.ID, res.Items[1].Object.ID)
	assert.Equal(t, tau.ID, res.Items[2].Subject.ID)
	for _, it := range res.Items {
		assert.Equal(t, 1, it.Depth)
	}
	assert.Equal(t, []string{ad.ID}, store.neighborCalls[0])
}

func TestRetrieve_CapsAtMaxResults(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		ad.ID: {in("BIOMARKER_OF", tau), in("BIOMARKER_OF", abeta), in("BIOMARKER_OF", nfl)},
	}}
	r := New(store, nil, Options{MaxResults: 2, MaxDepth: 2})

	res, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, abeta.ID, res.Items[0].Subject.ID)
	assert.Equal(t, nfl.ID, res.Items[1].Subject.ID)
	assert.Equal(t, 2, store.lastLimit)
}

func TestRetrieve_ZeroMaxResults(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{ad.ID: {in("BIOMARKER_OF", tau)}}}
	r := New(store, nil, Options{MaxResults: 0, MaxDepth: 2})

	res, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, store.neighborCalls)
}

func TestRetrieve_NoSeeds(t *testing.T) {
	store := &mockStore{}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})

	res, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent()})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, store.neighborCalls)
}

func TestRetrieve_MultiHop(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		apoe.ID:     {out("ENCODES", apoeProt, nil)},
		apoeProt.ID: {in("ENCODES", apoe), out("INVOLVED_IN_PATHWAY", lipid, nil)},
		lipid.ID:    {in("INVOLVED_IN_PATHWAY", apoeProt)},
	}}
	intent := model.Intent{
		Category:  model.IntentGeneProtein,
		Strategy:  model.StrategyMultiHop,
		EdgeTypes: []string{"ENCODES", "INVOLVED_IN_PATHWAY"},
	}

	t.Run("depth two", func(t *testing.T) {
		r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})
		res, err := r.Retrieve(context.Background(), Query{Intent: intent, Mentions: []model.LinkedMention{mention(apoe)}})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)

		assert.Equal(t, "ENCODES", res.Items[0].Relation)
		assert.Equal(t, 1, res.Items[0].Depth)
		assert.Equal(t, "INVOLVED_IN_PATHWAY", res.Items[1].Relation)
		assert.Equal(t, 2, res.Items[1].Depth)
		assert.Equal(t, apoeProt.ID, res.Items[1].Subject.ID)
		assert.Equal(t, lipid.ID, res.Items[1].Object.ID)
		assert.Greater(t, res.Items[0].Score, res.Items[1].Score)
	})

	t.Run("depth one stops early", func(t *testing.T) {
		r := New(store, nil, Options{MaxResults: 10, MaxDepth: 1})
		res, err := r.Retrieve(context.Background(), Query{Intent: intent, Mentions: []model.LinkedMention{mention(apoe)}})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, apoeProt.ID, res.Items[0].Object.ID)
	})
}

func TestRetrieve_AttributeFilter(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		ad.ID: {
			out("HAS_BIOMARKER", abeta, map[string]interface{}{"effect_size": 1.4, "fluid": "CSF"}),
			out("HAS_BIOMARKER", tau, map[string]interface{}{"effect_size": 0.3, "fluid": "CSF"}),
			out("HAS_BIOMARKER", nfl, map[string]interface{}{"fluid": "Plasma"}),
		},
	}}
	intent := model.Intent{
		Category:  model.IntentBiomarkerValues,
		Strategy:  model.StrategyAttributeFilter,
		EdgeTypes: []string{"HAS_BIOMARKER", "BIOMARKER_OF"},
	}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})

	res, err := r.Retrieve(context.Background(), Query{
		Intent:   intent,
		Mentions: []model.LinkedMention{mention(ad)},
		Text:     "Which biomarkers have an effect size above 1 in Alzheimer's disease?",
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, abeta.ID, res.Items[0].Object.ID)

	res, err = r.Retrieve(context.Background(), Query{
		Intent:   intent,
		Mentions: []model.LinkedMention{mention(ad)},
		Text:     "What biomarker values are reported for Alzheimer's disease?",
	})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
}

func TestRetrieve_KeywordFallback(t *testing.T) {
	store := &mockStore{entities: []model.Entity{
		{ID: "X:1", Name: "neuroinflammation"},
		{ID: "X:2", Name: "microglial inflammation response"},
	}}
	r := New(store, nil, Options{MaxResults: 10, KeywordLimit: 5})
	intent := model.Intent{Category: model.IntentOpenQuestion, Strategy: model.StrategyKeywordFallback}

	res, err := r.Retrieve(context.Background(), Query{Intent: intent, Terms: []string{"inflammation", "microglial"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 5, store.lastLimit)
	assert.Equal(t, "X:2", res.Items[0].Subject.ID)
	assert.InDelta(t, 1.0, res.Items[0].Score, 1e-9)
	assert.Nil(t, res.Items[0].Object)
	assert.InDelta(t, 0.5, res.Items[1].Score, 1e-9)

	res, err = r.Retrieve(context.Background(), Query{Intent: intent})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Len(t, store.searchCalls, 1)
}

func TestRetrieve_GraphUnavailable(t *testing.T) {
	store := &mockStore{err: fmt.Errorf("%w: neighbors: dial tcp", model.ErrGraphUnavailable)}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})

	_, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}})
	assert.ErrorIs(t, err, model.ErrGraphUnavailable)
}

func TestRetrieve_CancelledBeforeHop(t *testing.T) {
	store := &mockStore{}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Retrieve(ctx, Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.neighborCalls)
}

func TestRetrieve_TiedCandidatesAllSeed(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		abeta.ID: {out("BIOMARKER_OF", ad, nil)},
		tau.ID:   {out("BIOMARKER_OF", ad, nil)},
	}}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 1})
	m := model.LinkedMention{Span: "marker", Ambiguous: true, Candidates: []model.Candidate{
		{Entity: abeta, Score: 0.9}, {Entity: tau, Score: 0.9}, {Entity: nfl, Score: 0.5},
	}}

	res, err := r.Retrieve(context.Background(), Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{m}})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, []string{abeta.ID, tau.ID}, store.neighborCalls[0])
}

func TestRetrieve_Deterministic(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{
		ad.ID: {in("BIOMARKER_OF", tau), in("BIOMARKER_OF", nfl), out("HAS_BIOMARKER", abeta, nil)},
	}}
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 1})
	q := Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}}

	first, err := r.Retrieve(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieve_UsesCache(t *testing.T) {
	store := &mockStore{neighbors: map[string][]model.Neighbor{ad.ID: {in("BIOMARKER_OF", tau)}}}
	cache := &mapCache{data: map[string]*model.RetrievalResult{}}
	r := New(store, cache, Options{MaxResults: 10, MaxDepth: 1, IndexVersion: "v1"})
	q := Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}}

	_, err := r.Retrieve(context.Background(), q)
	require.NoError(t, err)
	res, err := r.Retrieve(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, res.Items, 1)
	assert.Len(t, store.neighborCalls, 1)
	assert.Equal(t, 1, cache.hits)

	other := New(store, cache, Options{MaxResults: 10, MaxDepth: 1, IndexVersion: "v2"})
	_, err = other.Retrieve(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, store.neighborCalls, 2, "a new index version must not reuse entries")
}

// gatedStore holds every Neighbors call until release is closed or the
// call's context ends.
type gatedStore struct {
	mockStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(neighbors map[string][]model.Neighbor) *gatedStore {
	return &gatedStore{
		mockStore: mockStore{neighbors: neighbors},
		entered:   make(chan struct{}, 8),
		release:   make(chan struct{}),
	}
}

func (g *gatedStore) Neighbors(ctx context.Context, ids, edgeTypes []string, limit int) (map[string][]model.Neighbor, error) {
	g.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	return g.mockStore.Neighbors(ctx, ids, edgeTypes, limit)
}

type retrieveOutcome struct {
	res *model.RetrievalResult
	err error
}

func retrieveAsync(ctx context.Context, r *Retriever, q Query) <-chan retrieveOutcome {
	done := make(chan retrieveOutcome, 1)
	go func() {
		res, err := r.Retrieve(ctx, q)
		done <- retrieveOutcome{res, err}
	}()
	return done
}

func TestRetrieve_JoinedCallerSurvivesLeaderCancel(t *testing.T) {
	store := newGatedStore(map[string][]model.Neighbor{ad.ID: {in("BIOMARKER_OF", abeta)}})
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 1})
	q := Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leader := retrieveAsync(leaderCtx, r, q)
	<-store.entered

	follower := retrieveAsync(context.Background(), r, q)
	time.Sleep(20 * time.Millisecond) // let the follower join the in-flight call

	cancelLeader()
	got := <-leader
	assert.ErrorIs(t, got.err, context.Canceled)

	close(store.release)
	select {
	case got = <-follower:
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not finish")
	}
	require.NoError(t, got.err)
	require.Len(t, got.res.Items, 1)
	assert.Equal(t, abeta.ID, got.res.Items[0].Subject.ID)
}

func TestRetrieve_CoalescedCallersGetOwnCopies(t *testing.T) {
	store := newGatedStore(map[string][]model.Neighbor{ad.ID: {in("BIOMARKER_OF", abeta), in("BIOMARKER_OF", tau)}})
	r := New(store, nil, Options{MaxResults: 10, MaxDepth: 1})
	q := Query{Intent: biomarkerIntent(), Mentions: []model.LinkedMention{mention(ad)}}

	first := retrieveAsync(context.Background(), r, q)
	<-store.entered
	second := retrieveAsync(context.Background(), r, q)
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	require.Len(t, a.res.Items, 2)
	assert.Equal(t, a.res.Items, b.res.Items)

	a.res.Items[0].Score = -1
	assert.NotEqual(t, a.res.Items[0].Score, b.res.Items[0].Score)
}
