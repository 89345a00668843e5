//go:build !llama || no_llama

package ai

import "fmt"

// NewLlamaEngine reports that this build has no in-process backend.
// Build with -tags llama to enable it.
func NewLlamaEngine(cfg *Config) (Engine, error) {
	return nil, fmt.Errorf("%w: llama.cpp not available in this build", ErrEngineUnavailable)
}
