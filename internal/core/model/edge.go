package model

// Provenance tags a fact with where it came from.
type Provenance struct {
	Source     string   `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Edge struct {
	Type       string                 `json:"type"` // e.g. HAS_BIOMARKER, TREATS
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Provenance Provenance             `json:"provenance"`
}

// Neighbor is one incident edge of an entity together with the entity on the
// other end. Outgoing reports whether the edge starts at the queried entity.
type Neighbor struct {
	Edge     Edge   `json:"edge"`
	Entity   Entity `json:"entity"`
	Outgoing bool   `json:"outgoing"`
}
