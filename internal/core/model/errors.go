package model

import "errors"

var (
	// ErrMalformedRequest is the only error surfaced to API callers.
	ErrMalformedRequest = errors.New("malformed request")

	ErrGraphUnavailable      = errors.New("graph store unavailable")
	ErrRetrievalEmpty        = errors.New("retrieval returned no facts")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrGenerationUnavailable = errors.New("generation unavailable")
)
