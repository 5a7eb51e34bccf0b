package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// English names people write in config files instead of codes.
var names = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"mandarin":   "zh",
	"cantonese":  "yue",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// Parse resolves a language code, BCP 47 tag (en-US, zh_Hant) or English
// language name to a base language. The boolean is false for empty or
// unrecognized input.
func Parse(value string) (language.Base, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return language.Base{}, false
	}
	if code, ok := names[value]; ok {
		value = code
	}
	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return language.Base{}, false
	}
	return base, true
}

// ToISO2 returns the ISO 639-1 code for value, or "" when the language is
// unknown or has no two-letter code.
func ToISO2(value string) string {
	base, ok := Parse(value)
	if !ok {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// DisplayName returns the English name of the language, or "" when unknown.
func DisplayName(value string) string {
	base, ok := Parse(value)
	if !ok {
		return ""
	}
	tag, err := language.Compose(base)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(tag)
}
