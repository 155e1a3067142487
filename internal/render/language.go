package render

import "strings"

// Generic is the label used when no language cue is found.
const Generic = "generic"

var languageCues = []struct {
	lang string
	cues []string
}{
	{"html", []string{"html", "<!doctype"}},
	{"css", []string{"css", "@import"}},
	{"javascript", []string{"javascript", "js", "function"}},
	{"python", []string{"python"}},
	{"jsx", []string{"react", "jsx"}},
	{"vue", []string{"vue"}},
	{"php", []string{"php"}},
	{"sql", []string{"sql"}},
}

// SniffLanguage guesses a code block's language from substring cues on its
// first line. It is a heuristic; anything unrecognized is Generic.
func SniffLanguage(code string) string {
	first, _, _ := strings.Cut(code, "\n")
	first = strings.ToLower(first)
	for _, c := range languageCues {
		for _, cue := range c.cues {
			if strings.Contains(first, cue) {
				return c.lang
			}
		}
	}
	return Generic
}
