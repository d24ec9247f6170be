package admission

import "regexp"

type pattern struct {
	category string
	re       *regexp.Regexp
}

var suspiciousPatterns = []pattern{
	{"sql injection", regexp.MustCompile(`(?i)(\bor\b|\band\b).*=.*['"]|union.*select|insert.*into|delete.*from|drop.*table`)},
	{"script injection", regexp.MustCompile(`(?i)<script|javascript:|onerror=|onload=`)},
	{"path traversal", regexp.MustCompile(`(?i)\.\./|\.\.\\|%2e%2e`)},
	{"command injection", regexp.MustCompile(";.*\\||&&|\\$\\(|`")},
	{"nosql injection", regexp.MustCompile(`(?i)\$where|\$ne|\$gt|\$lt`)},
}

// Inspect reports the first injection category s looks like, if any.
func Inspect(s string) (string, bool) {
	for _, p := range suspiciousPatterns {
		if p.re.MatchString(s) {
			return p.category, true
		}
	}
	return "", false
}
