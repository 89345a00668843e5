// Package tokenizer counts tokens the way the model's tokenizer would.
//
// Prompt assembly only needs a count, so every implementation here reduces to
// TokenCount. Implementations must be safe for concurrent use.
package tokenizer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Counter reports how many tokenizer units a piece of text consumes.
type Counter interface {
	TokenCount(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

// TokenCount calls f(text).
func (f CounterFunc) TokenCount(text string) int {
	return f(text)
}

// Kind selects a Counter implementation.
type Kind string

const (
	KindAuto        Kind = "auto"
	KindHuggingFace Kind = "hf"
	KindTiktoken    Kind = "tiktoken"
	KindEstimate    Kind = "estimate"
)

// HFTokenizerFile is the tokenizer definition shipped with Hugging Face checkpoints.
const HFTokenizerFile = "tokenizer.json"

// DefaultTiktokenEncoding is used when no checkpoint tokenizer is available.
const DefaultTiktokenEncoding = "cl100k_base"

// ParseKind validates a configured tokenizer name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAuto, KindHuggingFace, KindTiktoken, KindEstimate:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("unsupported tokenizer: %s", s)
	}
}

// New builds the Counter for kind. modelDir is the local checkpoint directory
// holding tokenizer.json; it is only read for KindHuggingFace and KindAuto.
//
// KindAuto prefers the checkpoint tokenizer, then tiktoken, then the estimate,
// logging each fallback.
func New(kind Kind, modelDir string) (Counter, error) {
	switch kind {
	case KindHuggingFace:
		return NewHuggingFace(filepath.Join(modelDir, HFTokenizerFile))
	case KindTiktoken:
		return NewTiktoken(DefaultTiktokenEncoding)
	case KindEstimate:
		return Estimator{}, nil
	case KindAuto, "":
		path := filepath.Join(modelDir, HFTokenizerFile)
		if _, err := os.Stat(path); err == nil {
			counter, err := NewHuggingFace(path)
			if err == nil {
				return counter, nil
			}
			slog.Warn("failed to load checkpoint tokenizer, falling back", "path", path, "error", err)
		}
		counter, err := NewTiktoken(DefaultTiktokenEncoding)
		if err == nil {
			return counter, nil
		}
		slog.Warn("tiktoken unavailable, falling back to estimate", "error", err)
		return Estimator{}, nil
	default:
		return nil, fmt.Errorf("unsupported tokenizer: %s", kind)
	}
}
