package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/graphrag/internal/core/alias"
	"github.com/agenthands/graphrag/internal/core/model"
)

func newTestLinker() *Linker {
	b := alias.NewBuilder()
	b.Add(model.Entity{ID: "HGNC:613", Type: model.TypeGene, Name: "APOE", Aliases: []string{"APOE4", "apolipoprotein E"}})
	b.Add(model.Entity{ID: "MONDO:0004975", Type: model.TypeDisease, Name: "Alzheimer disease", Aliases: []string{"Alzheimer's disease"}})
	b.Add(model.Entity{ID: "BM:ab42", Type: model.TypeBiomarker, Name: "amyloid beta 42", Aliases: []string{"Aβ42"}})
	b.Add(model.Entity{ID: "BM:ab", Type: model.TypeBiomarker, Name: "amyloid beta"})
	b.Add(model.Entity{ID: "CHEBI:53289", Type: model.TypeDrug, Name: "donepezil"})
	b.Add(model.Entity{ID: "P:tau", Type: model.TypeProtein, Name: "tau"})
	b.Add(model.Entity{ID: "B:tau", Type: model.TypeBiomarker, Name: "tau"})
	return New(b.Build(), Options{MaxNGram: 4, SimilarityThreshold: 0.85, MinFuzzyLength: 5})
}

func ids(ms []model.LinkedMention) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Best().Entity.ID)
	}
	return out
}

func TestLink_CaseInvariance(t *testing.T) {
	l := newTestLinker()
	ctx := context.Background()

	want := l.Link(ctx, "What biomarkers are associated with APOE4?")
	require.Len(t, want, 1)
	assert.Equal(t, "HGNC:613", want[0].Best().Entity.ID)

	for _, q := range []string{
		"What biomarkers are associated with apoe4 ?",
		"What biomarkers are associated with Apoe4",
		"what   BIOMARKERS are associated with  APOE4 ",
	} {
		got := l.Link(ctx, q)
		require.Len(t, got, 1, q)
		assert.Equal(t, want[0].Candidates, got[0].Candidates, q)
	}
}

func TestLink_LongestMatchWins(t *testing.T) {
	l := newTestLinker()
	got := l.Link(context.Background(), "Is amyloid-beta 42 lower in Alzheimer's disease?")
	assert.Equal(t, []string{"BM:ab42", "MONDO:0004975"}, ids(got))
	assert.Equal(t, 1, got[0].Start)
	assert.Equal(t, 3, got[0].End)
}

func TestLink_PreservesInnerPunctuation(t *testing.T) {
	l := newTestLinker()
	got := l.Link(context.Background(), "CSF Aβ42 and MONDO:0004975")
	assert.Equal(t, []string{"BM:ab42", "MONDO:0004975"}, ids(got))
	assert.Equal(t, model.ScoreCanonical, got[1].Best().Score)
}

func TestLink_Fuzzy(t *testing.T) {
	l := newTestLinker()
	got := l.Link(context.Background(), "dose of donepezill in trials")
	require.Len(t, got, 1)
	assert.Equal(t, "CHEBI:53289", got[0].Best().Entity.ID)
	assert.Equal(t, model.MatchFuzzy, got[0].Best().Match)
	assert.Less(t, got[0].Best().Score, model.ScoreAlias)
}

func TestLink_NoMatch(t *testing.T) {
	l := newTestLinker()
	assert.Empty(t, l.Link(context.Background(), "XYZ123 treatment options"))
	assert.Empty(t, l.Link(context.Background(), ""))
	assert.Empty(t, l.Link(context.Background(), "?? !!"))
}

func TestLink_Ambiguous(t *testing.T) {
	l := newTestLinker()
	got := l.Link(context.Background(), "role of tau")
	require.Len(t, got, 1)
	assert.True(t, got[0].Ambiguous)
	require.Len(t, got[0].Candidates, 2)
	assert.Equal(t, "B:tau", got[0].Candidates[0].Entity.ID)
	assert.Equal(t, "P:tau", got[0].Candidates[1].Entity.ID)
}

func TestLink_Deterministic(t *testing.T) {
	l := newTestLinker()
	q := "APOE4, tau and donepezil in Alzheimer disease"
	first := l.Link(context.Background(), q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, l.Link(context.Background(), q))
	}
}

func TestContentTerms(t *testing.T) {
	assert.Equal(t, []string{"xyz123", "treatment"}, ContentTerms("XYZ123 treatment options for the XYZ123?"))
}
