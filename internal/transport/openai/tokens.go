package openai

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/legojeon/report-coach/internal/lazy"
)

// TokenCounter estimates the token count of a text.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// TiktokenCounter estimates tokens with a tiktoken encoding. Gemini does not
// publish its tokenizer, so counts are an approximation used only when the
// provider omits usage.
type TiktokenCounter struct {
	enc *lazy.Value[*tiktoken.Tiktoken]
}

// NewTiktokenCounter returns a counter for the named encoding ("cl100k_base"
// when empty). The encoding is loaded on first use.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{
		enc: lazy.New(func(context.Context) (*tiktoken.Tiktoken, error) {
			enc, err := tiktoken.GetEncoding(encoding)
			if err != nil {
				return nil, fmt.Errorf("init tiktoken encoding %s: %w", encoding, err)
			}
			return enc, nil
		}),
	}
}

// CountTokens implements TokenCounter.
func (c *TiktokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	enc, err := c.enc.Get(ctx)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
