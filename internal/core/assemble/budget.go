package assemble

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/agenthands/graphrag/internal/config"
)

// Counter measures text in budget units.
type Counter interface {
	Count(s string) int
}

type runeCounter struct{}

func (runeCounter) Count(s string) int { return utf8.RuneCountInString(s) }

// Chars counts Unicode code points.
var Chars Counter = runeCounter{}

type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tokenCounter) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// Tokens counts model tokens with the named tiktoken encoding.
func Tokens(encoding string) (Counter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %q: %w", encoding, err)
	}
	return tokenCounter{enc: enc}, nil
}

func NewCounter(cfg config.ContextConfig) (Counter, error) {
	if cfg.Unit == config.UnitTokens {
		return Tokens(cfg.Encoding)
	}
	return Chars, nil
}
