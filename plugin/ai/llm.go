package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrEngineUnavailable is returned when a backend is not compiled in or not reachable.
var ErrEngineUnavailable = errors.New("inference engine unavailable")

// GenerateRequest is a single completion request.
type GenerateRequest struct {
	// Prompt ends with the assistant marker.
	Prompt string
	// PromptTokens is the counted prompt size, used to derive the generation length.
	PromptTokens int
}

// Engine is the inference engine interface.
// Generate returns the raw decoded text, which may or may not repeat the prompt.
type Engine interface {
	// Generate blocks until the completion is done or ctx ends.
	Generate(ctx context.Context, req *GenerateRequest) (string, error)

	// Name identifies the backend in logs and health output.
	Name() string

	// Close releases the backend.
	Close() error
}

// NewEngine creates the Engine selected by cfg.Engine.Backend.
func NewEngine(cfg *Config) (Engine, error) {
	switch cfg.Engine.Backend {
	case "openai":
		return NewOpenAIEngine(cfg)
	case "llama":
		return NewLlamaEngine(cfg)
	default:
		return nil, fmt.Errorf("unsupported inference backend: %s", cfg.Engine.Backend)
	}
}
