package model

import "strings"

type EntityType string

const (
	TypeGene        EntityType = "Gene"
	TypeProtein     EntityType = "Protein"
	TypeDrug        EntityType = "Drug"
	TypeBiomarker   EntityType = "Biomarker"
	TypeDisease     EntityType = "Disease"
	TypePhenotype   EntityType = "Phenotype"
	TypePathway     EntityType = "Pathway"
	TypeMechanism   EntityType = "Mechanism"
	TypeTrial       EntityType = "Trial"
	TypeCompany     EntityType = "Company"
	TypeTherapyType EntityType = "TherapyType"
	TypeFluid       EntityType = "Fluid"
	TypeRiskFactor  EntityType = "RiskFactor"
	TypeStudy       EntityType = "Study"
	TypeAlzPedia    EntityType = "AlzPediaEntity"
	TypeTherapeutic EntityType = "Therapeutic"
	TypeUnknown     EntityType = "Unknown"
)

var knownTypes = map[string]EntityType{
	"gene":           TypeGene,
	"protein":        TypeProtein,
	"drug":           TypeDrug,
	"biomarker":      TypeBiomarker,
	"disease":        TypeDisease,
	"phenotype":      TypePhenotype,
	"pathway":        TypePathway,
	"mechanism":      TypeMechanism,
	"trial":          TypeTrial,
	"company":        TypeCompany,
	"therapytype":    TypeTherapyType,
	"fluid":          TypeFluid,
	"riskfactor":     TypeRiskFactor,
	"study":          TypeStudy,
	"alzpediaentity": TypeAlzPedia,
	"alzpedia":       TypeAlzPedia,
	"therapeutic":    TypeTherapeutic,
}

// ParseEntityType maps a node label or file slug (e.g. "risk_factor") onto the
// closed type set.
// Unrecognised labels become TypeUnknown.
func ParseEntityType(label string) EntityType {
	if t, ok := knownTypes[strings.ReplaceAll(strings.ToLower(label), "_", "")]; ok {
		return t
	}
	return TypeUnknown
}

// Entity is a knowledge graph node. It is read-only at query time.
type Entity struct {
	ID         string                 `json:"id"`
	Type       EntityType             `json:"type"`
	Name       string                 `json:"name"`
	Aliases    []string               `json:"aliases,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// DisplayName falls back to the ID for nodes without a label.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
