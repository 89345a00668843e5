package ai

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/hrygo/localchat/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Model      ModelConfig
	Engine     EngineConfig
	Generation GenerationConfig
	Context    ContextConfig
}

// ModelConfig describes the checkpoint and where it is cached.
type ModelConfig struct {
	Name       string // croissantllm/CroissantLLMChat-v0.1
	Dir        string // <models>/model_local
	CacheDir   string // <models>/hub
	Files      []string
	HFToken    string
	Device     string // auto, cpu, cuda
	UseFloat16 bool
}

// EngineConfig selects and configures the inference backend.
type EngineConfig struct {
	Backend       string // openai, llama
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxConcurrent int
}

// GenerationConfig holds the pass-through sampling parameters.
type GenerationConfig struct {
	MaxLength         int
	MinLength         int
	MaxNewTokens      int // 0 derives the cap from MaxLength
	Temperature       float32
	TopP              float32
	TopK              int
	RepetitionPenalty float32
	NoRepeatNgramSize int
	Stop              []string
}

// ContextConfig configures history and prompt assembly.
type ContextConfig struct {
	MaxHistoryLength int // 0 disables history
	TokenBudget      int // 0 disables the token budget
	UserLabel        string
	AssistantLabel   string
	Tokenizer        string
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Model: ModelConfig{
			Name:       p.ModelName,
			Dir:        filepath.Join(p.ModelsDir, "model_local"),
			CacheDir:   filepath.Join(p.ModelsDir, "hub"),
			Files:      p.ModelFiles,
			HFToken:    p.HFToken,
			Device:     p.Device,
			UseFloat16: p.UseFloat16,
		},
		Engine: EngineConfig{
			Backend:       p.InferenceBackend,
			BaseURL:       p.InferenceBaseURL,
			APIKey:        p.InferenceAPIKey,
			Timeout:       p.InferenceTimeout,
			MaxConcurrent: p.MaxConcurrentGenerations,
		},
		Generation: GenerationConfig{
			MaxLength:         p.MaxLength,
			MinLength:         p.MinLength,
			MaxNewTokens:      p.MaxNewTokens,
			Temperature:       p.Temperature,
			TopP:              p.TopP,
			TopK:              p.TopK,
			RepetitionPenalty: p.RepetitionPenalty,
			NoRepeatNgramSize: p.NoRepeatNgramSize,
		},
		Context: ContextConfig{
			MaxHistoryLength: p.MaxHistoryLength,
			TokenBudget:      p.MaxInputTokenBudget,
			UserLabel:        p.UserLabel,
			AssistantLabel:   p.AssistantLabel,
			Tokenizer:        p.Tokenizer,
		},
	}

	// Stop before the model starts writing the user's next line.
	if p.UserLabel != "" {
		cfg.Generation.Stop = []string{"\n" + p.UserLabel + ":"}
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return errors.New("model name is required")
	}

	switch c.Engine.Backend {
	case "openai":
		if c.Engine.BaseURL == "" {
			return errors.New("inference base URL is required for the openai backend")
		}
	case "llama":
	default:
		return errors.New("unsupported inference backend: " + c.Engine.Backend)
	}

	if c.Generation.MaxLength <= 0 && c.Generation.MaxNewTokens <= 0 {
		return errors.New("either max length or max new tokens must be positive")
	}

	if c.Generation.Temperature < 0 {
		return errors.New("temperature must not be negative")
	}

	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return errors.New("top_p must be within [0, 1]")
	}

	return nil
}

// NewTokens returns how many tokens to generate for a prompt of promptTokens.
// MaxNewTokens wins when set; otherwise the remainder of MaxLength, never
// below MinLength.
func (g GenerationConfig) NewTokens(promptTokens int) int {
	if g.MaxNewTokens > 0 {
		return g.MaxNewTokens
	}
	n := g.MaxLength - promptTokens
	if n < g.MinLength {
		n = g.MinLength
	}
	if n < 1 {
		n = 1
	}
	return n
}

// nvidiaDevice is present when an NVIDIA driver exposes a GPU.
var nvidiaDevice = "/dev/nvidia0"

// ResolveDevice turns "auto" into a concrete device.
func (m ModelConfig) ResolveDevice() string {
	switch m.Device {
	case "cpu", "cuda":
		return m.Device
	}
	if _, err := os.Stat(nvidiaDevice); err == nil {
		return "cuda"
	}
	return "cpu"
}

// GPULayers returns how many layers to offload for the resolved device.
func (m ModelConfig) GPULayers() int {
	if m.ResolveDevice() == "cuda" {
		return 999
	}
	return 0
}
