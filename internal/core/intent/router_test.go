package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/graphrag/internal/core/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		category model.IntentCategory
		strategy model.Strategy
	}{
		{"biomarker", "What biomarkers are associated with APOE4?", model.IntentBiomarker, model.StrategyNeighborLookup},
		{"drug trial", "Which drugs in phase 3 trials target amyloid?", model.IntentDrugTrial, model.StrategyMultiHop},
		{"phenotype", "What are the symptoms of Alzheimer's disease?", model.IntentPhenotype, model.StrategyNeighborLookup},
		{"pathway", "Which pathways does lecanemab affect?", model.IntentPathway, model.StrategyMultiHop},
		{"gene protein", "Which gene encodes the tau protein?", model.IntentGeneProtein, model.StrategyMultiHop},
		{"general disease", "Tell me about Alzheimer's", model.IntentGeneralDisease, model.StrategyNeighborLookup},
		{"open question", "What is XYZ?", model.IntentOpenQuestion, model.StrategyNeighborLookup},
		{"id heuristic", "What is HP:0002354?", model.IntentPhenotype, model.StrategyNeighborLookup},
		{"values", "CSF biomarkers with effect size > 1.5", model.IntentBiomarkerValues, model.StrategyAttributeFilter},
		{"p-value", "Which plasma biomarkers have a p-value below 0.01?", model.IntentBiomarkerValues, model.StrategyAttributeFilter},
		{"biomarker override", "Which biomarker changes with memory and cognitive decline?", model.IntentBiomarker, model.StrategyNeighborLookup},
		{"trial override", "Which plasma markers are used in phase 2 trials?", model.IntentDrugTrial, model.StrategyMultiHop},
	}

	r := NewRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.question)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.NotEmpty(t, got.Notes)
			assert.NotEmpty(t, got.EdgeTypes)
			assert.NotEmpty(t, got.PromptKey)
		})
	}
}

func TestClassify_FocusIDs(t *testing.T) {
	got := NewRouter().Classify("Compare MONDO:0004975 with MONDO:0004975 and GO:0007165")
	assert.Equal(t, []string{"MONDO:0004975", "GO:0007165"}, got.FocusIDs)
}

func TestClassify_OpenQuestionNotes(t *testing.T) {
	got := NewRouter().Classify("What is XYZ?")
	assert.Contains(t, got.Notes, "no rule matched")
	assert.Equal(t, AllEdgeTypes, got.EdgeTypes)
}

func TestClassify_Deterministic(t *testing.T) {
	r := NewRouter()
	q := "Which CSF biomarkers are increased in Alzheimer's disease?"
	first := r.Classify(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Classify(q))
	}
}

func TestClassify_NeverPanics(t *testing.T) {
	r := NewRouter()
	for _, q := range []string{"", "   ", "::::", "???", "ＡＰＯＥ", "GO:", "> 5", "αβγ"} {
		assert.NotPanics(t, func() {
			got := r.Classify(q)
			assert.NotEmpty(t, got.Category)
		}, q)
	}
}

func TestRoute_NoMentionsFallsBack(t *testing.T) {
	r := NewRouter()
	in := r.Classify("XYZ123 treatment options")
	assert.Equal(t, model.IntentDrugTrial, in.Category)

	got := r.Route(in, nil)
	assert.Equal(t, model.IntentOpenQuestion, got.Category)
	assert.Equal(t, model.StrategyKeywordFallback, got.Strategy)
	assert.Contains(t, got.Notes, "classified as drug_trial")
	assert.Equal(t, "default", got.PromptKey)
}

func TestRoute_WithMentionsKeepsPlan(t *testing.T) {
	r := NewRouter()
	in := r.Classify("What biomarkers are associated with APOE4?")
	mentions := []model.LinkedMention{{Span: "APOE4", Candidates: []model.Candidate{{Entity: model.Entity{ID: "HGNC:613"}, Score: 1}}}}

	got := r.Route(in, mentions)
	assert.Equal(t, in, got)
}

func TestPlanFor_Unknown(t *testing.T) {
	assert.Equal(t, PlanFor(model.IntentOpenQuestion), PlanFor("nonsense"))
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, IsKeyword("treatment"))
	assert.True(t, IsKeyword("trials"))
	assert.False(t, IsKeyword("xyz123"))
}

func TestClassify_TrialOverrideIgnoresBucketOrder(t *testing.T) {
	orig := buckets
	t.Cleanup(func() { buckets = orig })

	reordered := make([]bucket, 0, len(orig))
	for i := len(orig) - 1; i >= 0; i-- {
		reordered = append(reordered, orig[i])
	}
	buckets = reordered

	got := NewRouter().Classify("Which plasma and serum markers are used in a phase 2 study?")
	assert.Equal(t, model.IntentDrugTrial, got.Category)
	assert.Contains(t, got.Notes, "overridden to drug_trial")
}
