package profile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where localchat stores sessions
	DSN string
	// Driver is the session store driver (sqlite, postgres or memory)
	Driver string
	// Version is the current version of server
	Version string
	// SecretKey signs the session cookie
	SecretKey string

	// Model configuration
	ModelName  string   // MODEL_NAME (default: croissantllm/CroissantLLMChat-v0.1)
	ModelsDir  string   // MODELS_DIR (default: <data>/models)
	ModelFiles []string // MODEL_FILES, comma separated
	Device     string   // DEVICE (default: auto)
	UseFloat16 bool     // USE_FLOAT16 (default: true)
	HFToken    string   // HF_TOKEN

	// Conversation configuration
	MaxHistoryLength    int    // MAX_HISTORY_LENGTH (default: 5)
	MaxInputTokenBudget int    // MAX_INPUT_TOKEN_BUDGET (default: 384)
	UserLabel           string // CHAT_USER_LABEL (default: Human)
	AssistantLabel      string // CHAT_ASSISTANT_LABEL (default: Assistant)
	Tokenizer           string // TOKENIZER (default: auto)

	// Generation configuration
	MaxLength         int     // MAX_LENGTH (default: 512)
	MinLength         int     // MIN_LENGTH (default: 20)
	MaxNewTokens      int     // MAX_NEW_TOKENS (default: 0, derived from MAX_LENGTH)
	Temperature       float32 // TEMPERATURE (default: 0.7)
	TopP              float32 // TOP_P (default: 0.9)
	TopK              int     // TOP_K (default: 50)
	RepetitionPenalty float32 // REPETITION_PENALTY (default: 1.2)
	NoRepeatNgramSize int     // NO_REPEAT_NGRAM_SIZE (default: 3)

	// Inference backend configuration
	InferenceBackend         string        // INFERENCE_BACKEND (default: openai)
	InferenceBaseURL         string        // INFERENCE_BASE_URL (default: http://localhost:8080/v1)
	InferenceAPIKey          string        // INFERENCE_API_KEY
	InferenceTimeout         time.Duration // INFERENCE_TIMEOUT (default: 120s)
	MaxConcurrentGenerations int           // MAX_CONCURRENT_GENERATIONS (default: 1)

	// Session configuration
	SessionTTL     time.Duration // SESSION_TTL (default: 24h)
	RateLimitRPS   float64       // RATE_LIMIT_RPS (default: 2)
	RateLimitBurst int           // RATE_LIMIT_BURST (default: 5)
}

// DefaultModelFiles are fetched into the model cache when MODEL_FILES is unset.
var DefaultModelFiles = []string{
	"config.json",
	"generation_config.json",
	"tokenizer.json",
	"tokenizer_config.json",
	"special_tokens_map.json",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Supports both LOCALCHAT_* and the bare names used by container deployments.
func (p *Profile) FromEnv() {
	// Skips empty values to allow defaults to take effect
	getEnvWithDefault := func(name, defaultValue string) string {
		if val := os.Getenv("LOCALCHAT_" + name); val != "" {
			return val
		}
		return getEnvOrDefault(name, defaultValue)
	}

	getInt := func(name string, defaultValue int) int {
		v, err := strconv.Atoi(getEnvWithDefault(name, ""))
		if err != nil {
			return defaultValue
		}
		return v
	}

	getFloat := func(name string, defaultValue float64) float64 {
		v, err := strconv.ParseFloat(getEnvWithDefault(name, ""), 64)
		if err != nil {
			return defaultValue
		}
		return v
	}

	getBool := func(name string, defaultValue bool) bool {
		v, err := strconv.ParseBool(getEnvWithDefault(name, ""))
		if err != nil {
			return defaultValue
		}
		return v
	}

	getDuration := func(name string, defaultValue time.Duration) time.Duration {
		raw := getEnvWithDefault(name, "")
		if raw == "" {
			return defaultValue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if secs, err := strconv.Atoi(raw); err == nil {
			return time.Duration(secs) * time.Second
		}
		return defaultValue
	}

	p.SecretKey = getEnvWithDefault("SECRET_KEY", p.SecretKey)

	p.ModelName = getEnvWithDefault("MODEL_NAME", "croissantllm/CroissantLLMChat-v0.1")
	p.ModelsDir = getEnvWithDefault("MODELS_DIR", "")
	p.ModelFiles = splitList(getEnvWithDefault("MODEL_FILES", strings.Join(DefaultModelFiles, ",")))
	p.Device = strings.ToLower(getEnvWithDefault("DEVICE", "auto"))
	p.UseFloat16 = getBool("USE_FLOAT16", true)
	p.HFToken = getEnvWithDefault("HF_TOKEN", "")

	p.MaxHistoryLength = getInt("MAX_HISTORY_LENGTH", 5)
	p.MaxInputTokenBudget = getInt("MAX_INPUT_TOKEN_BUDGET", 384)
	p.UserLabel = getEnvWithDefault("CHAT_USER_LABEL", "Human")
	p.AssistantLabel = getEnvWithDefault("CHAT_ASSISTANT_LABEL", "Assistant")
	p.Tokenizer = strings.ToLower(getEnvWithDefault("TOKENIZER", "auto"))

	p.MaxLength = getInt("MAX_LENGTH", 512)
	p.MinLength = getInt("MIN_LENGTH", 20)
	p.MaxNewTokens = getInt("MAX_NEW_TOKENS", 0)
	p.Temperature = float32(getFloat("TEMPERATURE", 0.7))
	p.TopP = float32(getFloat("TOP_P", 0.9))
	p.TopK = getInt("TOP_K", 50)
	p.RepetitionPenalty = float32(getFloat("REPETITION_PENALTY", 1.2))
	p.NoRepeatNgramSize = getInt("NO_REPEAT_NGRAM_SIZE", 3)

	p.InferenceBackend = strings.ToLower(getEnvWithDefault("INFERENCE_BACKEND", "openai"))
	p.InferenceBaseURL = getEnvWithDefault("INFERENCE_BASE_URL", "http://localhost:8080/v1")
	p.InferenceAPIKey = getEnvWithDefault("INFERENCE_API_KEY", "")
	p.InferenceTimeout = getDuration("INFERENCE_TIMEOUT", 120*time.Second)
	p.MaxConcurrentGenerations = getInt("MAX_CONCURRENT_GENERATIONS", 1)

	p.SessionTTL = getDuration("SESSION_TTL", 24*time.Hour)
	p.RateLimitRPS = getFloat("RATE_LIMIT_RPS", 2)
	p.RateLimitBurst = getInt("RATE_LIMIT_BURST", 5)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "localchat")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/localchat"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("localchat_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.ModelsDir == "" {
		p.ModelsDir = filepath.Join(dataDir, "models")
	}

	if p.SecretKey == "" {
		if p.Mode == "prod" {
			return errors.New("SECRET_KEY is required in prod mode")
		}
		key, err := randomKey()
		if err != nil {
			return errors.Wrap(err, "failed to generate secret key")
		}
		p.SecretKey = key
		slog.Warn("SECRET_KEY not set, sessions will not survive a restart")
	}

	switch p.InferenceBackend {
	case "openai", "llama":
	default:
		return errors.Errorf("unsupported inference backend %q", p.InferenceBackend)
	}

	switch p.Tokenizer {
	case "", "auto", "hf", "tiktoken", "estimate":
	default:
		return errors.Errorf("unsupported tokenizer %q", p.Tokenizer)
	}

	switch p.Device {
	case "auto", "cpu", "cuda":
	default:
		return errors.Errorf("unsupported device %q", p.Device)
	}

	if p.MaxConcurrentGenerations < 1 {
		p.MaxConcurrentGenerations = 1
	}

	return nil
}

func randomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
