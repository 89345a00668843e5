package context

import (
	"strings"
	"sync/atomic"

	"github.com/hrygo/localchat/plugin/ai/memory"
	"github.com/hrygo/localchat/plugin/ai/tokenizer"
)

// Service implements ContextBuilder.
//
// With a positive budget it walks history from the newest turn backwards and
// keeps turns while the running total stays strictly below the budget,
// stopping at the first turn that does not fit. The kept turns are therefore
// always a contiguous, chronologically ordered suffix of history. The new
// message is included even when it alone exceeds the budget.
//
// With a budget of zero or less every turn is included.
type Service struct {
	counter tokenizer.Counter
	format  PromptFormat
	budget  int

	stats serviceStats
}

type serviceStats struct {
	totalBuilds  atomic.Int64
	totalTokens  atomic.Int64
	totalTurns   atomic.Int64
	droppedTurns atomic.Int64
}

// Config configures the context builder service.
type Config struct {
	Format    PromptFormat
	MaxTokens int // Token budget for the whole prompt; <= 0 disables it
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Format:    DefaultPromptFormat(),
		MaxTokens: 384,
	}
}

// NewService creates a new context builder counting tokens with counter.
func NewService(counter tokenizer.Counter, cfg Config) *Service {
	if counter == nil {
		counter = tokenizer.Estimator{}
	}
	return &Service{
		counter: counter,
		format:  cfg.Format.withDefaults(),
		budget:  cfg.MaxTokens,
	}
}

// Format returns the prompt format in use.
func (s *Service) Format() PromptFormat {
	return s.format
}

// Budget returns the token budget; zero or less means unbounded.
func (s *Service) Budget() int {
	return s.budget
}

// Build constructs the prompt for message.
func (s *Service) Build(history []memory.Turn, message string) *Prompt {
	tail := s.format.Message(message) + s.format.Marker()

	var start, tokens int
	if s.budget > 0 {
		start, tokens = s.fitHistory(history, s.counter.TokenCount(tail))
	}

	var sb strings.Builder
	for _, t := range history[start:] {
		sb.WriteString(s.format.Turn(t))
	}
	sb.WriteString(tail)

	prompt := &Prompt{
		Text:    sb.String(),
		Turns:   len(history) - start,
		Dropped: start,
		Tokens:  tokens,
	}
	if s.budget <= 0 {
		prompt.Tokens = s.counter.TokenCount(prompt.Text)
	}

	s.stats.totalBuilds.Add(1)
	s.stats.totalTokens.Add(int64(prompt.Tokens))
	s.stats.totalTurns.Add(int64(prompt.Turns))
	s.stats.droppedTurns.Add(int64(prompt.Dropped))

	return prompt
}

// fitHistory returns the index of the oldest turn to keep and the running
// token total, starting from reserved tokens for the message and marker.
func (s *Service) fitHistory(history []memory.Turn, reserved int) (int, int) {
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		entry := s.counter.TokenCount(s.format.Turn(history[i]))
		if reserved+entry >= s.budget {
			break
		}
		reserved += entry
		start = i
	}
	return start, reserved
}

// GetStats returns prompt building statistics.
func (s *Service) GetStats() *ContextStats {
	builds := s.stats.totalBuilds.Load()
	if builds == 0 {
		return &ContextStats{}
	}

	return &ContextStats{
		TotalBuilds:   builds,
		AverageTokens: float64(s.stats.totalTokens.Load()) / float64(builds),
		AverageTurns:  float64(s.stats.totalTurns.Load()) / float64(builds),
		DroppedTurns:  s.stats.droppedTurns.Load(),
	}
}

// Ensure Service implements ContextBuilder
var _ ContextBuilder = (*Service)(nil)
