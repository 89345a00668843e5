//go:build llama && !no_llama

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/go-skynet/go-llama.cpp"

	"github.com/hrygo/localchat/plugin/ai/tokenizer"
)

// llamaEngine runs a GGUF checkpoint in process.
type llamaEngine struct {
	mu      sync.Mutex
	model   *llama.LLama
	gen     GenerationConfig
	threads int
	timeout time.Duration
	logger  *slog.Logger
}

// NewLlamaEngine loads the first *.gguf file found in the model directory.
func NewLlamaEngine(cfg *Config) (Engine, error) {
	matches, err := filepath.Glob(filepath.Join(cfg.Model.Dir, "*.gguf"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no .gguf file in %s", ErrEngineUnavailable, cfg.Model.Dir)
	}
	modelPath := matches[0]

	options := []llama.ModelOption{
		llama.SetContext(cfg.Generation.MaxLength),
		llama.SetGPULayers(cfg.Model.GPULayers()),
	}
	if cfg.Model.UseFloat16 {
		options = append(options, llama.EnableF16Memory)
	}

	model, err := llama.New(modelPath, options...)
	if err != nil {
		return nil, fmt.Errorf("llama.New failed: %w", err)
	}

	logger := slog.Default().With("component", "llama", "model_path", modelPath)
	logger.Info("model loaded", "device", cfg.Model.ResolveDevice())
	if cfg.Generation.NoRepeatNgramSize > 0 {
		logger.Debug("no_repeat_ngram_size is not supported by llama.cpp", "value", cfg.Generation.NoRepeatNgramSize)
	}

	return &llamaEngine{
		model:   model,
		gen:     cfg.Generation,
		threads: runtime.NumCPU(),
		timeout: cfg.Engine.Timeout,
		logger:  logger,
	}, nil
}

func (e *llamaEngine) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	// Predict cannot be interrupted. The caller is released when ctx ends and
	// the lock stays held until the model is free again.
	e.mu.Lock()
	go func() {
		defer e.mu.Unlock()
		text, err := e.model.Predict(req.Prompt,
			llama.SetTokens(e.gen.NewTokens(req.PromptTokens)),
			llama.SetTemperature(e.gen.Temperature),
			llama.SetTopP(e.gen.TopP),
			llama.SetTopK(e.gen.TopK),
			llama.SetPenalty(e.gen.RepetitionPenalty),
			llama.SetStopWords(e.gen.Stop...),
			llama.SetThreads(e.threads),
		)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("prediction failed: %w", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		e.logger.Warn("generation abandoned, model busy until it finishes", "error", ctx.Err())
		return "", ctx.Err()
	}
}

// TokenCount counts with the model's own vocabulary.
func (e *llamaEngine) TokenCount(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, _, err := e.model.TokenizeString(text)
	if err != nil {
		e.logger.Warn("tokenize failed, estimating", "error", err)
		return tokenizer.EstimateTokens(text)
	}
	return int(n)
}

func (e *llamaEngine) Name() string {
	return "llama"
}

func (e *llamaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}
