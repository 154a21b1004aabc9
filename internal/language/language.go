package language

import (
	"strings"

	xlang "golang.org/x/text/language"
)

type entry struct {
	code2   string
	display string
	aliases []string // ISO 639-2 codes (terminology and bibliographic) and English names
}

var languages = []entry{
	{"en", "English", []string{"eng", "english"}},
	{"es", "Spanish", []string{"spa", "spanish"}},
	{"fr", "French", []string{"fra", "fre", "french"}},
	{"de", "German", []string{"deu", "ger", "german"}},
	{"it", "Italian", []string{"ita", "italian"}},
	{"pt", "Portuguese", []string{"por", "portuguese"}},
	{"ja", "Japanese", []string{"jpn", "japanese"}},
	{"ko", "Korean", []string{"kor", "korean"}},
	{"zh", "Chinese", []string{"zho", "chi", "chinese"}},
	{"ru", "Russian", []string{"rus", "russian"}},
	{"ar", "Arabic", []string{"ara", "arabic"}},
	{"hi", "Hindi", []string{"hin", "hindi"}},
	{"nl", "Dutch", []string{"nld", "dut", "dutch"}},
	{"pl", "Polish", []string{"pol", "polish"}},
	{"sv", "Swedish", []string{"swe", "swedish"}},
	{"da", "Danish", []string{"dan", "danish"}},
	{"no", "Norwegian", []string{"nor", "norwegian"}},
	{"fi", "Finnish", []string{"fin", "finnish"}},
	{"vi", "Vietnamese", []string{"vie", "vietnamese"}},
	{"tr", "Turkish", []string{"tur", "turkish"}},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		for _, alias := range e.aliases {
			m[alias] = e
		}
	}
	return m
}()

// ToISO2 converts a language code, BCP 47 tag, or English name to its
// two-letter code. "auto" and blank input return "" so the backend detects
// the language itself. Unrecognized input also returns "".
func ToISO2(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" {
		return ""
	}
	if e, ok := index[value]; ok {
		return e.code2
	}
	if tag, err := xlang.Parse(value); err == nil {
		base, confidence := tag.Base()
		if confidence != xlang.No && len(base.String()) == 2 {
			return base.String()
		}
	}
	return ""
}

// DisplayName returns the English name for a recognized code, the
// uppercased input otherwise, and "Auto" for blank input.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "auto") {
		return "Auto"
	}
	if e, ok := index[ToISO2(trimmed)]; ok {
		return e.display
	}
	return strings.ToUpper(trimmed)
}
