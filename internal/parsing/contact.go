package parsing

import "regexp"

var (
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
		regexp.MustCompile(`\b\d{10,15}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`),
	}
)

// ExtractEmail returns the first e-mail address in text.
func ExtractEmail(text string) (string, bool) {
	m := emailPattern.FindString(text)
	return m, m != ""
}

// ExtractPhone returns the first phone-number-like sequence in text.
func ExtractPhone(text string) (string, bool) {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}
