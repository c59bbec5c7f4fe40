package agent

import "strings"

var dialectCues = []struct {
	label    string
	keywords []string
}{
	{"شامي", []string{"شو", "كيفك", "منيح"}},
	{"مغربي/جزائري", []string{"واش", "بزاف", "شحال"}},
	{"عراقي", []string{"شلونك", "خابرني"}},
	{"خليجي", []string{"ايش", "تمام"}},
	{"مصري", []string{"بتعمل", "دلوقتي", "عايز"}},
	{"سوداني/خليجي", []string{"شنو"}},
}

// DetectDialect guesses the Arabic dialect from keyword cues. First match
// wins; no match returns "".
func DetectDialect(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ""
	}
	for _, cue := range dialectCues {
		for _, kw := range cue.keywords {
			if strings.Contains(t, kw) {
				return cue.label
			}
		}
	}
	return ""
}
