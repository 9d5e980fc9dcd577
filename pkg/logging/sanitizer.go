package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Bearer tokens, including JWTs (three base64url segments).
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.~+/]+=*`)

	// access_token/refresh_token values in query strings, form bodies or
	// JSON-ish error payloads returned by connector APIs.
	tokenFieldPattern = regexp.MustCompile(`(?i)(access_token|refresh_token|id_token|client_secret)["'=:\s]+[A-Za-z0-9\-_.~+/]+=*`)

	// API keys passed as key=value.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[A-Za-z0-9\-_]{16,}`)

	// Connection string credentials (user:pass@host).
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// password=... in DSN-style strings.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
)

// Sanitize removes credential material from a string before it is logged
// or appended to a connection event. Connector error bodies routinely echo
// the token that failed, so everything recorded about a connection passes
// through here first.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	out := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	out = tokenFieldPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = passwordPattern.ReplaceAllString(out, "${1}="+RedactedText)
	out = connStringPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
	return out
}

// SanitizeError sanitizes an error message for logging. Returns "" for nil.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}
