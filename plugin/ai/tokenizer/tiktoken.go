package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts tokens with a BPE encoding from tiktoken.
// It is an approximation for checkpoints that do not ship tokenizer.json.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding (e.g. "cl100k_base").
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// TokenCount returns the number of tokens in text.
func (t *Tiktoken) TokenCount(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
