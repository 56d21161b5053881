package boxer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"polyvis/internal/errors"
)

// TokenCounter measures box size. The budget check only needs a rough
// measure, so the default counter splits on whitespace; a BPE counter
// can be configured when box sizes must track a real model's window.
type TokenCounter interface {
	Count(text string) int
	Name() string
}

// WhitespaceCounter counts whitespace-separated tokens.
type WhitespaceCounter struct{}

func (WhitespaceCounter) Count(text string) int { return len(strings.Fields(text)) }
func (WhitespaceCounter) Name() string          { return "whitespace" }

// BPECounter counts tokens with a tiktoken encoding such as
// cl100k_base or o200k_base.
type BPECounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (c *BPECounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *BPECounter) Name() string { return c.name }

// NewTokenCounter builds the counter named in configuration.
// Unknown or unloadable encodings return an error; callers fall back
// to whitespace counting.
func NewTokenCounter(name string) (TokenCounter, error) {
	if name == "" || name == "whitespace" {
		return WhitespaceCounter{}, nil
	}
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid, "unknown token encoding "+name, err)
	}
	return &BPECounter{encoding: encoding, name: name}, nil
}
