package telemetry

import "regexp"

const redactedPlaceholder = "[REDACTED]"

// secretPatterns matches common secret-bearing patterns in log strings.
// Tool output flows through these logs, so previews of fetched pages or
// config dumps can carry live credentials.
var secretPatterns = []*regexp.Regexp{
	// API keys: long hex/base64 values after key-like prefixes.
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|auth[_-]?token)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{16,})"?`),
	// Bearer tokens in Authorization headers.
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{16,})`),
}

// redactStringValue replaces secret-bearing patterns in v, reporting
// whether anything changed.
func redactStringValue(v string) (string, bool) {
	if v == "" {
		return v, false
	}
	result := v
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			submatch := pat.FindStringSubmatch(match)
			if len(submatch) >= 3 {
				return submatch[1] + redactedPlaceholder
			}
			return redactedPlaceholder
		})
	}
	return result, result != v
}
