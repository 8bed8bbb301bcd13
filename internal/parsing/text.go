package parsing

import (
	"regexp"
	"strings"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

const notSpecified = types.NotSpecified

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	markupTag     = regexp.MustCompile(`<[^>]+>`)
	disallowed    = regexp.MustCompile(`[^\p{L}\p{N}_\s.,\-()@+:;!?]`)
)

// CleanText normalizes raw extracted text into a single line: whitespace collapsed, tags
// removed, unusual punctuation replaced by spaces and fragments of two characters or fewer
// dropped.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = markupTag.ReplaceAllString(text, "")
	text = disallowed.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")

	kept := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 2 {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// TruncateAtWord shortens text to at most max characters plus an ellipsis, cutting at the
// last space when it falls in the final fifth of the window.
func TruncateAtWord(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > 0 && float64(len([]rune(cut[:i]))) > float64(max)*0.8 {
		cut = cut[:i]
	}
	return cut + "..."
}
