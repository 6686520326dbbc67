package model

type IntentCategory string

const (
	IntentBiomarker       IntentCategory = "biomarker"
	IntentBiomarkerValues IntentCategory = "biomarker_values"
	IntentDrugTrial       IntentCategory = "drug_trial"
	IntentPhenotype       IntentCategory = "phenotype"
	IntentPathway         IntentCategory = "pathway"
	IntentGeneProtein     IntentCategory = "gene_protein"
	IntentGeneralDisease  IntentCategory = "general_disease"
	IntentOpenQuestion    IntentCategory = "open_question"
)

// Intent is the routing decision for one question.
type Intent struct {
	Category  IntentCategory `json:"intent_type"`
	Notes     string         `json:"intent_notes"`
	Strategy  Strategy       `json:"strategy"`
	EdgeTypes []string       `json:"edge_types,omitempty"`
	PromptKey string         `json:"-"`
	FocusIDs  []string       `json:"focus_ids,omitempty"` // ontology IDs written out in the question
}
