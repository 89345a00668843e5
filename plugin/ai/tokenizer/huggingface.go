package tokenizer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HuggingFace counts tokens with the checkpoint's own tokenizer.json,
// so budgets match what the model will actually see.
type HuggingFace struct {
	mu       sync.Mutex
	tk       *tokenizer.Tokenizer
	path     string
	fallback Counter
}

// NewHuggingFace loads a tokenizer.json file.
func NewHuggingFace(path string) (*HuggingFace, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load %s: %w", path, err)
	}
	return &HuggingFace{
		tk:       tk,
		path:     path,
		fallback: Estimator{},
	}, nil
}

// TokenCount returns the number of tokens in text, without special tokens.
// Encoding failures fall back to the estimate so prompt assembly never fails.
func (h *HuggingFace) TokenCount(text string) int {
	h.mu.Lock()
	encoding, err := h.tk.EncodeSingle(text, false)
	h.mu.Unlock()
	if err != nil {
		slog.Debug("tokenizer encode failed, using estimate", "path", h.path, "error", err)
		return h.fallback.TokenCount(text)
	}
	return len(encoding.Ids)
}
