package chunker

import "strings"

// EstimateTokens gives a rough token count from the word count (~1.33 tokens per word).
// It only feeds the context-window warning, so precision does not matter.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
