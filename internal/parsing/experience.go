package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxPlausibleYears bounds values accepted as years of experience.
const maxPlausibleYears = 50

var experiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\+?\s*years?\s*(?:of\s*)?experience`),
	regexp.MustCompile(`experience\s*[:\-]?\s*(\d+)\+?\s*years?`),
	regexp.MustCompile(`(\d+)\+?\s*years?\s*in\s*\w+`),
	regexp.MustCompile(`(\d+)\+?\s*yrs?\s*(?:of\s*)?experience`),
	// "5 years of Python and AWS experience"
	regexp.MustCompile(`(\d+)\+?\s*(?:years?|yrs?)\s+of\s+[\p{L}\p{N} ,/+#.&-]{1,60}?\s*experience`),
}

// ExtractExperienceYears returns the largest plausible years-of-experience figure in text,
// or 0 when none is stated.
func ExtractExperienceYears(text string) int {
	lower := strings.ToLower(text)
	best := 0
	for _, re := range experiencePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 0 || n > maxPlausibleYears {
				continue
			}
			if n > best {
				best = n
			}
		}
	}
	return best
}

var dateRangePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})\s*[-–]\s*(\d{4}|present|current)`),
	regexp.MustCompile(`(\d{4})\s*to\s*(\d{4}|present|current)`),
}

// YearsFromDateRanges sums the spans of ranges such as "2019 - 2023" or "2020 to present".
// Open ranges end in now's year. The sum is capped like ExtractExperienceYears.
func YearsFromDateRanges(text string, now time.Time) int {
	lower := strings.ToLower(text)
	total := 0
	for _, re := range dateRangePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			start, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			end := now.Year()
			if m[2] != "present" && m[2] != "current" {
				if end, err = strconv.Atoi(m[2]); err != nil {
					continue
				}
			}
			if end > start {
				total += end - start
			}
		}
	}
	return min(total, maxPlausibleYears)
}
