// Package llm wraps the generative model providers behind one interface.
package llm

import (
	"context"
)

// Request is a single grounded generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

type LLMClient interface {
	Generate(ctx context.Context, req Request) (string, error)
}
