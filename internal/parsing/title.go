package parsing

import "strings"

const titleScanLines = 15

var titleKeywords = []string{
	"engineer", "developer", "manager", "analyst", "specialist",
	"consultant", "architect", "designer", "scientist", "lead",
	"director", "coordinator", "administrator", "technician",
	"representative", "executive", "officer", "assistant",
}

var contactTokens = []string{"email", "phone", "address", "linkedin", "github"}

// ExtractTitle returns the first line near the top of a résumé that reads like a role
// title, or types.NotSpecified.
func ExtractTitle(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 5 || len(line) >= 100 {
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, titleKeywords) && !containsAny(lower, contactTokens) {
			return line
		}
	}
	return notSpecified
}
