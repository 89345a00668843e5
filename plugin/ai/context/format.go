package context

import (
	"regexp"
	"strings"

	"github.com/hrygo/localchat/plugin/ai/memory"
)

// Default role labels.
const (
	DefaultUserLabel      = "Human"
	DefaultAssistantLabel = "Assistant"
)

// PromptFormat renders turns with role labels, e.g.
//
//	Human: hi
//	Assistant: hello
//	Human: how are you?
//	Assistant:
type PromptFormat struct {
	UserLabel      string
	AssistantLabel string
}

// DefaultPromptFormat returns the Human/Assistant format.
func DefaultPromptFormat() PromptFormat {
	return PromptFormat{
		UserLabel:      DefaultUserLabel,
		AssistantLabel: DefaultAssistantLabel,
	}
}

func (f PromptFormat) withDefaults() PromptFormat {
	if strings.TrimSpace(f.UserLabel) == "" {
		f.UserLabel = DefaultUserLabel
	}
	if strings.TrimSpace(f.AssistantLabel) == "" {
		f.AssistantLabel = DefaultAssistantLabel
	}
	return f
}

// Turn renders a completed turn.
func (f PromptFormat) Turn(t memory.Turn) string {
	return f.UserLabel + ": " + t.User + "\n" + f.AssistantLabel + ": " + t.Bot + "\n"
}

// Message renders the new user message.
func (f PromptFormat) Message(message string) string {
	return f.UserLabel + ": " + message + "\n"
}

// Marker is the suffix where generation starts.
func (f PromptFormat) Marker() string {
	return f.AssistantLabel + ":"
}

// labelPattern matches any role label followed by optional whitespace and a colon.
// The default labels are always included so model output in the default
// format is cleaned under localized labels too.
func (f PromptFormat) labelPattern() *regexp.Regexp {
	seen := map[string]bool{}
	var alternatives []string
	for _, label := range []string{f.UserLabel, f.AssistantLabel, DefaultUserLabel, DefaultAssistantLabel} {
		key := strings.ToLower(strings.TrimSpace(label))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		label = strings.TrimSpace(label)
		alt := regexp.QuoteMeta(label)
		// \b only works next to ASCII word characters.
		if isASCIIWord(label[0]) {
			alt = `\b` + alt
		}
		alternatives = append(alternatives, alt)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alternatives, "|") + `)\s*:`)
}

func isASCIIWord(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
