package tokenizer

// Estimator approximates token counts without a vocabulary.
// CJK characters count as ~2 tokens and ASCII as ~0.25 tokens per char.
type Estimator struct{}

// TokenCount estimates the token count for text.
func (Estimator) TokenCount(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens estimates the token count for a string.
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}

	wideCount := 0
	asciiCount := 0

	for _, r := range content {
		if r < 128 {
			asciiCount++
		} else {
			wideCount++
		}
	}

	tokens := wideCount*2 + asciiCount/4
	if tokens == 0 {
		tokens = 1
	}

	return tokens
}
