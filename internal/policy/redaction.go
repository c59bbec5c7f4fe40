package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)

// RedactNumber masks a phone number for logs, keeping the last two digits
// so operators can still correlate events for the same call.
func RedactNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	n := utf8.RuneCountInString(number)
	if n <= 2 {
		return strings.Repeat("*", n)
	}
	runes := []rune(number)
	return strings.Repeat("*", n-2) + string(runes[n-2:])
}

// RedactText masks phone numbers embedded in free text such as transcripts.
func RedactText(input string) (redacted string, changed bool) {
	out := phonePattern.ReplaceAllString(input, "[REDACTED_PHONE]")
	return out, out != input
}
