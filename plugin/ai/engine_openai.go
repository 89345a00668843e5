package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// openAIEngine talks to an OpenAI-compatible completions server
// (llama.cpp server, vLLM, TGI) hosting the checkpoint.
type openAIEngine struct {
	client *openai.Client
	model  string
	gen    GenerationConfig
	cfg    EngineConfig
}

// NewOpenAIEngine creates an Engine backed by the /completions endpoint.
func NewOpenAIEngine(cfg *Config) (Engine, error) {
	if cfg.Engine.BaseURL == "" {
		return nil, errors.New("inference base URL is required")
	}

	clientConfig := openai.DefaultConfig(cfg.Engine.APIKey)
	clientConfig.BaseURL = cfg.Engine.BaseURL

	gen := cfg.Generation
	if gen.TopK > 0 || gen.NoRepeatNgramSize > 0 || gen.RepetitionPenalty > 0 {
		slog.Debug("sampling parameters not expressible over the completions API",
			"top_k", gen.TopK,
			"no_repeat_ngram_size", gen.NoRepeatNgramSize,
			"repetition_penalty", gen.RepetitionPenalty)
	}

	return &openAIEngine{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model.Name,
		gen:    gen,
		cfg:    cfg.Engine,
	}, nil
}

func (e *openAIEngine) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// Echo keeps the prompt in the output like a local decoder would.
	resp, err := e.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       e.model,
		Prompt:      req.Prompt,
		MaxTokens:   e.gen.NewTokens(req.PromptTokens),
		Temperature: e.gen.Temperature,
		TopP:        e.gen.TopP,
		Stop:        e.gen.Stop,
		Echo:        true,
	})
	if err != nil {
		return "", fmt.Errorf("create completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	return resp.Choices[0].Text, nil
}

func (e *openAIEngine) Name() string {
	return "openai"
}

func (e *openAIEngine) Close() error {
	return nil
}
