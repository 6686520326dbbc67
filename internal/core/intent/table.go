package intent

import "github.com/agenthands/graphrag/internal/core/model"

// Relationship types written by the graph build.
const (
	EdgeHasBiomarker          = "HAS_BIOMARKER"
	EdgeBiomarkerOf           = "BIOMARKER_OF"
	EdgeIncreasesRiskOf       = "INCREASES_RISK_OF"
	EdgeTreats                = "TREATS"
	EdgeTargetsProtein        = "TARGETS_PROTEIN"
	EdgeAffectsPathway        = "AFFECTS_PATHWAY"
	EdgeEncodes               = "ENCODES"
	EdgeInvolvedInPathway     = "INVOLVED_IN_PATHWAY"
	EdgeHasPhenotype          = "HAS_PHENOTYPE"
	EdgeInvolvesPathology     = "INVOLVES_PATHOLOGY"
	EdgeTargetsPathology      = "TARGETS_PATHOLOGY"
	EdgeReflectsPathology     = "REFLECTS_PATHOLOGY"
	EdgeRepresentsGene        = "REPRESENTS_GENE"
	EdgeAssociatedWithDisease = "ASSOCIATED_WITH_DISEASE"
	EdgeDevelopedBy           = "DEVELOPED_BY"
	EdgeHasTherapyType        = "HAS_THERAPY_TYPE"
	EdgeMeasuredIn            = "MEASURED_IN"
	EdgeHasTrial              = "HAS_TRIAL"
	EdgeForDisease            = "FOR_DISEASE"
)

// AllEdgeTypes is the open allow-list.
var AllEdgeTypes = []string{
	EdgeHasBiomarker, EdgeBiomarkerOf, EdgeTreats, EdgeHasPhenotype,
	EdgeAssociatedWithDisease, EdgeIncreasesRiskOf, EdgeTargetsProtein,
	EdgeAffectsPathway, EdgeEncodes, EdgeInvolvedInPathway,
	EdgeInvolvesPathology, EdgeTargetsPathology, EdgeReflectsPathology,
	EdgeRepresentsGene, EdgeHasTrial, EdgeForDisease, EdgeDevelopedBy,
	EdgeHasTherapyType, EdgeMeasuredIn,
}

// Plan is what a category routes to. Edge types are listed in priority
// order; the retriever ranks facts by their position here.
type Plan struct {
	Strategy  model.Strategy
	EdgeTypes []string
	PromptKey string
}

var plans = map[model.IntentCategory]Plan{
	model.IntentBiomarker: {
		Strategy:  model.StrategyNeighborLookup,
		EdgeTypes: []string{EdgeBiomarkerOf, EdgeHasBiomarker, EdgeReflectsPathology, EdgeMeasuredIn},
		PromptKey: "biomarker",
	},
	model.IntentBiomarkerValues: {
		Strategy:  model.StrategyAttributeFilter,
		EdgeTypes: []string{EdgeHasBiomarker, EdgeBiomarkerOf},
		PromptKey: "biomarker_values",
	},
	model.IntentDrugTrial: {
		Strategy: model.StrategyMultiHop,
		EdgeTypes: []string{
			EdgeTreats, EdgeHasTrial, EdgeForDisease, EdgeTargetsProtein,
			EdgeTargetsPathology, EdgeAffectsPathway, EdgeHasTherapyType, EdgeDevelopedBy,
		},
		PromptKey: "drug_trial",
	},
	model.IntentPhenotype: {
		Strategy:  model.StrategyNeighborLookup,
		EdgeTypes: []string{EdgeHasPhenotype},
		PromptKey: "phenotype",
	},
	model.IntentPathway: {
		Strategy:  model.StrategyMultiHop,
		EdgeTypes: []string{EdgeAffectsPathway, EdgeInvolvedInPathway, EdgeTargetsProtein, EdgeEncodes},
		PromptKey: "pathway",
	},
	model.IntentGeneProtein: {
		Strategy: model.StrategyMultiHop,
		EdgeTypes: []string{
			EdgeEncodes, EdgeAssociatedWithDisease, EdgeInvolvedInPathway,
			EdgeRepresentsGene, EdgeBiomarkerOf, EdgeTargetsProtein,
		},
		PromptKey: "gene_protein",
	},
	model.IntentGeneralDisease: {
		Strategy: model.StrategyNeighborLookup,
		EdgeTypes: []string{
			EdgeHasBiomarker, EdgeTreats, EdgeHasPhenotype, EdgeInvolvesPathology,
			EdgeAssociatedWithDisease, EdgeIncreasesRiskOf, EdgeForDisease,
		},
		PromptKey: "default",
	},
	model.IntentOpenQuestion: {
		Strategy:  model.StrategyNeighborLookup,
		EdgeTypes: AllEdgeTypes,
		PromptKey: "default",
	},
}

// PlanFor is the single table lookup behind routing. Unknown categories get
// the open-question plan.
func PlanFor(c model.IntentCategory) Plan {
	if p, ok := plans[c]; ok {
		return p
	}
	return plans[model.IntentOpenQuestion]
}
