package errorbank

import "regexp"

// maxSanitizedLen bounds the error text stored against inbound records.
const maxSanitizedLen = 500

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z]:\\[^\s'"]+`),             // windows paths
	regexp.MustCompile(`/(?:home|etc|var|usr)/[^\s'"]+`),  // unix paths
	regexp.MustCompile(`(?i)server=[^;\s]+`),              // server names
	regexp.MustCompile(`(?i)password=[^;\s]+`),            // credentials
	regexp.MustCompile(`(?i)[a-z]+://[^@\s]+@[^\s'"]+`),   // DSNs with userinfo
}

// Sanitize renders an error safe for storage: the kind prefix is kept, file
// paths, server names and credentials are redacted, and the result is
// truncated to a bounded length.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}

	appErr := From(err)
	msg := appErr.Error()
	for _, pattern := range sensitivePatterns {
		msg = pattern.ReplaceAllString(msg, "[REDACTED]")
	}

	msg = string(appErr.Kind()) + ": " + msg
	if len(msg) > maxSanitizedLen {
		msg = msg[:maxSanitizedLen-3] + "..."
	}
	return msg
}
