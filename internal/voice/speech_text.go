package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	replyFencedCode  = regexp.MustCompile("(?s)```.*?```")
	replyInlineCode  = regexp.MustCompile("`[^`]*`")
	replyMarkdownURL = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	replyBareURL     = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	// Heading hashes and bullets at the start of a line.
	replyLineMarker = regexp.MustCompile(`^\s*(?:#{1,6}|[-*•+])\s+`)
)

// SpeechText turns an agent reply into something worth reading aloud: chat
// markdown, links and emoji go, numbers keep their signs (50%, #12, +20) and
// a lone ampersand is read as "و". Canned lines and user text do not pass
// through here.
func SpeechText(reply string) string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ""
	}
	reply = replyFencedCode.ReplaceAllString(reply, " ")
	reply = replyInlineCode.ReplaceAllString(reply, " ")
	reply = replyMarkdownURL.ReplaceAllString(reply, "$1")
	reply = replyBareURL.ReplaceAllString(reply, " ")

	lines := strings.Split(reply, "\n")
	for i, line := range lines {
		lines[i] = replyLineMarker.ReplaceAllString(line, "")
	}
	return spokenRunes([]rune(strings.Join(lines, "\n")))
}

func spokenRunes(rs []rune) string {
	var b strings.Builder
	b.Grow(len(rs))
	gap := true
	space := func() {
		if !gap {
			b.WriteByte(' ')
			gap = true
		}
	}

	for i, r := range rs {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
		case unicode.IsSpace(r):
			space()
		case unicode.IsControl(r):
		case numberSign(rs, i):
			b.WriteRune(r)
			gap = false
		case r == '&':
			space()
			b.WriteString("و ")
			gap = true
		case unicode.Is(unicode.So, r):
			// emoji
		case spokenPunctuation(r):
			b.WriteRune(r)
			gap = false
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			space()
		default:
			b.WriteRune(r)
			gap = false
		}
	}
	return strings.TrimSpace(b.String())
}

// numberSign reports whether rs[i] is a sign that belongs to an adjacent
// number: a percent after a digit, or a hash or plus before one.
func numberSign(rs []rune, i int) bool {
	switch rs[i] {
	case '%', '٪':
		return i > 0 && unicode.IsDigit(rs[i-1])
	case '#', '+':
		return i+1 < len(rs) && unicode.IsDigit(rs[i+1])
	}
	return false
}

func spokenPunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')', '/', '،', '؟', '؛':
		return true
	}
	return false
}
