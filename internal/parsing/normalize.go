// Package parsing turns raw résumé and listing text into the derived fields stored with
// candidate profiles and job postings. Every function here is pure: malformed or empty input
// yields empty or default output, never an error.
package parsing

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// MaxCandidateSkills caps the number of skills kept for a candidate.
const MaxCandidateSkills = 20

// MaxJobSkills caps the number of skills kept for a job posting.
const MaxJobSkills = 10

// candidateVocabulary is matched against résumé text in order.
var candidateVocabulary = []string{
	// languages
	"python", "java", "javascript", "typescript", "c++", "c#", "php", "ruby",
	"go", "rust", "kotlin", "swift", "scala", "r", "matlab", "sql",
	// web
	"html", "css", "react", "angular", "vue", "node.js", "express", "django",
	"flask", "spring", "laravel", "bootstrap", "jquery",
	// cloud and devops
	"aws", "azure", "gcp", "docker", "kubernetes", "jenkins", "git",
	"terraform", "ansible",
	// databases
	"mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle",
	// data science
	"machine learning", "deep learning", "tensorflow", "pytorch",
	"pandas", "numpy", "scikit-learn", "tableau", "power bi",
	// design and marketing
	"photoshop", "illustrator", "figma", "sketch", "adobe", "canva",
	"seo", "sem", "google analytics", "social media",
	// business
	"excel", "powerpoint", "salesforce", "crm", "erp", "sap",
	"accounting", "finance", "project management",
}

var candidatePatterns = compileVocabulary(candidateVocabulary)

// jobSkillPatterns are matched against listing text. Matches are kept as written.
var jobSkillPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(python|java|javascript|typescript|c\+\+|c#|php|ruby|go|kotlin|swift)\b`),
	regexp.MustCompile(`\b(html|css|react|angular|vue|node\.?js|express|django|flask)\b`),
	regexp.MustCompile(`\b(sql|mysql|postgresql|mongodb|redis|oracle)\b`),
	regexp.MustCompile(`\b(aws|azure|gcp|docker|kubernetes|jenkins|git)\b`),
	regexp.MustCompile(`\b(excel|power\s?bi|tableau|analytics|data)\b`),
}

// compileVocabulary builds one whole-token matcher per skill. Characters such as '+', '#'
// and '.' are part of the skill, so boundaries are any non-alphanumeric rune.
func compileVocabulary(vocab []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(vocab))
	for i, skill := range vocab {
		out[i] = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(skill) + `(?:$|[^\p{L}\p{N}_])`)
	}
	return out
}

// ExtractSkills returns the vocabulary skills mentioned in text, in canonical display form.
func ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	found := make([]string, 0)
	for i, re := range candidatePatterns {
		if re.MatchString(lower) {
			found = append(found, TitleCase(candidateVocabulary[i]))
			if len(found) == MaxCandidateSkills {
				break
			}
		}
	}
	return found
}

// ExtractJobSkills returns the distinct skills mentioned in a listing, lowercased.
func ExtractJobSkills(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	found := make([]string, 0)
	for _, re := range jobSkillPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			skill := m[1]
			if seen[skill] {
				continue
			}
			seen[skill] = true
			found = append(found, skill)
		}
	}
	if len(found) > MaxJobSkills {
		found = found[:MaxJobSkills]
	}
	return found
}

var (
	seniorKeywords = []string{"senior", "lead", "principal", "5+", "3+", "experienced", "expert"}
	juniorKeywords = []string{"junior", "entry", "graduate", "intern", "fresh", "0-2", "trainee"}
)

// ExtractExperienceLevel buckets a listing by seniority. Senior keywords take priority.
func ExtractExperienceLevel(text string) types.ExperienceLevel {
	lower := strings.ToLower(text)
	if containsAny(lower, seniorKeywords) {
		return types.ExperienceSenior
	}
	if containsAny(lower, juniorKeywords) {
		return types.ExperienceJunior
	}
	return types.ExperienceMid
}

// TitleCase upper-cases every letter that follows a non-letter and lower-cases the rest,
// so "node.js" becomes "Node.Js" and "aws" becomes "Aws".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
