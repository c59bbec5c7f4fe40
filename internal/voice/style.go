package voice

import "strings"

// Style is a symbolic voice persona.
type Style string

const (
	StyleChildBoy   Style = "child-boy"
	StyleChildGirl  Style = "child-girl"
	StyleYoungMan   Style = "young-man"
	StyleYoungWoman Style = "young-woman"
	StyleOldMan     Style = "old-man"
	StyleOldWoman   Style = "old-woman"
	StyleMenacing   Style = "menacing"
	StyleSarcastic  Style = "sarcastic"
	StyleDefault    Style = "default"
)

// Params are multipliers over the engine's neutral pitch and speaking rate.
type Params struct {
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// Neutral is used for unknown styles.
var Neutral = Params{Pitch: 1.0, Rate: 1.0}

var styleParams = map[Style]Params{
	StyleChildBoy:   {Pitch: 1.6, Rate: 1.15},
	StyleChildGirl:  {Pitch: 1.8, Rate: 1.2},
	StyleYoungMan:   {Pitch: 1.1, Rate: 1.05},
	StyleYoungWoman: {Pitch: 1.3, Rate: 1.1},
	StyleOldMan:     {Pitch: 0.8, Rate: 0.9},
	StyleOldWoman:   {Pitch: 0.9, Rate: 0.95},
	StyleMenacing:   {Pitch: 0.6, Rate: 0.9},
	StyleSarcastic:  Neutral,
}

// The phone UI sends the Arabic labels.
var arabicLabels = map[string]Style{
	"طفل":        StyleChildBoy,
	"طفلة":       StyleChildGirl,
	"شاب":        StyleYoungMan,
	"شابة":       StyleYoungWoman,
	"رجل عجوز":   StyleOldMan,
	"امرأة عجوز": StyleOldWoman,
	"مرعب وضخم":  StyleMenacing,
	"ساخر":       StyleSarcastic,
}

// ParseStyle resolves an English key or an Arabic label. Anything else maps
// to StyleDefault.
func ParseStyle(raw string) Style {
	raw = strings.TrimSpace(raw)
	if s, ok := arabicLabels[raw]; ok {
		return s
	}
	s := Style(strings.ToLower(raw))
	if _, ok := styleParams[s]; ok {
		return s
	}
	return StyleDefault
}

// ParamsFor is total: every input yields a pair.
func ParamsFor(raw string) Params {
	if p, ok := styleParams[ParseStyle(raw)]; ok {
		return p
	}
	return Neutral
}

// StyleInfo describes one selectable style.
type StyleInfo struct {
	Key    Style  `json:"key"`
	Label  string `json:"label"`
	Params Params `json:"params"`
}

// Styles lists the selectable styles in menu order.
func Styles() []StyleInfo {
	order := []struct {
		key   Style
		label string
	}{
		{StyleChildBoy, "طفل"},
		{StyleChildGirl, "طفلة"},
		{StyleYoungMan, "شاب"},
		{StyleYoungWoman, "شابة"},
		{StyleOldMan, "رجل عجوز"},
		{StyleOldWoman, "امرأة عجوز"},
		{StyleMenacing, "مرعب وضخم"},
		{StyleSarcastic, "ساخر"},
	}
	out := make([]StyleInfo, 0, len(order))
	for _, o := range order {
		out = append(out, StyleInfo{Key: o.key, Label: o.label, Params: styleParams[o.key]})
	}
	return out
}
