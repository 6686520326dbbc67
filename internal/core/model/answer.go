package model

type Question struct {
	Text          string `json:"question"`
	ReturnContext bool   `json:"return_context"`
}

// Context is the rendered grounding text handed to the generator.
type Context struct {
	Text      string `json:"text"`
	Facts     int    `json:"facts"`
	Budget    int    `json:"budget"`
	Used      int    `json:"used"`
	Empty     bool   `json:"empty"`
	Truncated bool   `json:"truncated"`
}

type DegradedReason string

const (
	DegradedNone                  DegradedReason = ""
	DegradedGraphUnavailable      DegradedReason = "graph_unavailable"
	DegradedGenerationUnavailable DegradedReason = "generation_unavailable"
	DegradedNoData                DegradedReason = "no_data"
)

type Answer struct {
	Text        string         `json:"answer"`
	IntentType  IntentCategory `json:"intent_type"`
	IntentNotes string         `json:"intent_notes"`
	Strategy    Strategy       `json:"strategy"`
	Context     *string        `json:"context,omitempty"`
	Degraded    DegradedReason `json:"-"`
}
