package model

type Strategy string

const (
	StrategyNeighborLookup  Strategy = "neighbor-lookup"
	StrategyMultiHop        Strategy = "multi-hop"
	StrategyAttributeFilter Strategy = "attribute-filter"
	StrategyKeywordFallback Strategy = "keyword-fallback"
)

// Item is one retrieved fact. A bare entity hit (keyword fallback) has no
// Relation and a nil Object.
type Item struct {
	Subject    Entity                 `json:"subject"`
	Relation   string                 `json:"relation,omitempty"`
	Object     *Entity                `json:"object,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Provenance Provenance             `json:"provenance"`
	Score      float64                `json:"score"`
	Depth      int                    `json:"depth"`
}

// Key identifies the (subject, relation, object) triple the item describes.
func (i Item) Key() string {
	if i.Object == nil {
		return i.Subject.ID
	}
	return i.Subject.ID + "|" + i.Relation + "|" + i.Object.ID
}

type RetrievalResult struct {
	Strategy  Strategy `json:"strategy"`
	Items     []Item   `json:"items"`
	Truncated bool     `json:"truncated"`
}

func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Items) == 0
}
