package context

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ResponseCleaner turns raw generator output into the reply shown to the user.
type ResponseCleaner struct {
	labels *regexp.Regexp
}

// NewResponseCleaner creates a cleaner for the labels of format.
func NewResponseCleaner(format PromptFormat) *ResponseCleaner {
	return &ResponseCleaner{labels: format.withDefaults().labelPattern()}
}

var defaultCleaner = NewResponseCleaner(DefaultPromptFormat())

// CleanResponse cleans raw with the default Human/Assistant labels.
func CleanResponse(raw, prompt string) string {
	return defaultCleaner.Clean(raw, prompt)
}

// Clean removes the prompt when it is a literal prefix of raw, strips role
// labels anywhere in the remainder, collapses whitespace and trims.
// Clean(Clean(x, p), p) == Clean(x, p).
func (c *ResponseCleaner) Clean(raw, prompt string) string {
	text := raw
	if prompt != "" {
		text = strings.TrimPrefix(text, prompt)
	}

	// Removing one label can join its neighbours into another, so strip
	// until nothing matches.
	for {
		next := c.labels.ReplaceAllString(text, "")
		if next == text {
			break
		}
		text = next
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
