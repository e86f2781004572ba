// Package tokens provides deterministic token estimation for conversation
// budgeting. Estimates are heuristic, not billing-accurate: the window only
// needs a stable, monotonic measure to enforce its budget against.
package tokens

import "strings"

// Estimate returns an approximate token count for text under the given
// model family. Identical input always yields the identical count.
// Unknown models fall back to the default heuristic rather than failing.
func Estimate(text, model string) int {
	if text == "" {
		return 0
	}
	// Characters-per-token expressed in tenths so the arithmetic stays
	// integer and deterministic across platforms.
	cpt := charsPerTokenTenths(model)
	charEstimate := (len(text)*10 + cpt - 1) / cpt
	words := len(strings.Fields(text))
	wordEstimate := int(float64(words) * 1.33)
	if wordEstimate > charEstimate {
		return wordEstimate
	}
	return charEstimate
}

// charsPerTokenTenths returns the average characters-per-token for a model
// family, in tenths. English text averages ~4 chars/token on the OpenAI
// tokenizers; Claude's tokenizer runs slightly denser.
func charsPerTokenTenths(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(model, "claude-"):
		return 35
	case strings.HasPrefix(model, "gemini-"):
		return 40
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return 40
	}
	return 40
}

// ContextLimit returns the context window size for a given model.
// Falls back to conservative defaults when the model is unknown.
func ContextLimit(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))

	switch model {
	case "gemini-2.5-flash", "gemini-2.5-pro", "gemini-1.5-flash", "gemini-1.5-pro":
		return 1_048_576
	case "claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229":
		return 200_000
	case "gpt-4o", "gpt-4o-mini", "o1", "o3-mini":
		return 128_000
	}

	switch {
	case strings.HasPrefix(model, "gemini-"):
		return 1_048_576
	case strings.HasPrefix(model, "claude-"):
		return 200_000
	case strings.HasPrefix(model, "gpt-4"):
		return 128_000
	}

	return 128_000
}
