// Package context assembles the prompt handed to the language model.
// It packs as much recent conversation history as fits a token budget in
// front of the new user message, and cleans the text the model returns.
package context

import (
	"github.com/hrygo/localchat/plugin/ai/memory"
)

// ContextBuilder builds a bounded prompt from history plus the new message.
type ContextBuilder interface {
	// Build assembles the prompt. history is ordered oldest first.
	Build(history []memory.Turn, message string) *Prompt

	// GetStats returns prompt building statistics.
	GetStats() *ContextStats
}

// Prompt is the text sent to the generator for a single request.
type Prompt struct {
	// Text always ends with the assistant marker.
	Text string
	// Turns is the number of history turns included.
	Turns int
	// Dropped is the number of older history turns left out.
	Dropped int
	// Tokens is the counted size of the included history plus the message and marker.
	Tokens int
}

// ContextStats tracks prompt building metrics.
type ContextStats struct {
	TotalBuilds   int64
	AverageTokens float64
	AverageTurns  float64
	DroppedTurns  int64
}
