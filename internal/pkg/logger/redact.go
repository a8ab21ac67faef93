package logger

import (
	"regexp"
	"strings"
)

// phiKeys are substrings of field names whose values identify a patient.
var phiKeys = []string{"patient", "member", "ssn", "dob"}

var ssnRegex = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

func redactPHIValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range phiKeys {
		if strings.Contains(key, k) {
			return RedactID(val)
		}
	}
	return ssnRegex.ReplaceAllString(val, "***-**-****")
}

// RedactID masks an identifier for safe logging, keeping the last two
// characters: "P00123" → "****23". Values of two characters or fewer are
// fully masked.
func RedactID(id string) string {
	if id == "" {
		return ""
	}
	r := []rune(id)
	if len(r) <= 2 {
		return "***"
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}
