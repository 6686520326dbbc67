package model

type MatchKind string

const (
	MatchCanonical MatchKind = "canonical"
	MatchAlias     MatchKind = "alias"
	MatchFuzzy     MatchKind = "fuzzy"
)

const (
	ScoreCanonical = 1.0
	ScoreAlias     = 0.9
	ScoreFuzzyMax  = 0.8
)

type Candidate struct {
	Entity Entity    `json:"entity"`
	Score  float64   `json:"score"`
	Match  MatchKind `json:"match"`
}

// LinkedMention is a span of the question resolved to one or more entities.
// Start and End are token offsets, End exclusive.
type LinkedMention struct {
	Span       string      `json:"span"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	Candidates []Candidate `json:"candidates"`
	Ambiguous  bool        `json:"ambiguous"`
}

// Best returns the top candidate. Mentions always carry at least one.
func (m LinkedMention) Best() Candidate {
	return m.Candidates[0]
}
