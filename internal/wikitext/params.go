package wikitext

import (
	"regexp"
	"strings"
)

var separatorRunPattern = regexp.MustCompile(`[ _]+`)

// FuzzyParam returns the trimmed value of the first parameter of template whose
// key matches targetKey ignoring case, where spaces and underscores are
// interchangeable. It returns defaultValue when template is nil or no key matches.
func FuzzyParam(targetKey string, template *Template, defaultValue string) string {
	if template == nil {
		return defaultValue
	}
	keyPattern := fuzzyKeyPattern(targetKey)
	for _, parameter := range template.parameters {
		if keyPattern.MatchString(parameter.Key) {
			return strings.TrimSpace(parameter.Value)
		}
	}
	return defaultValue
}

func fuzzyKeyPattern(targetKey string) *regexp.Regexp {
	segments := separatorRunPattern.Split(targetKey, -1)
	quotedSegments := make([]string, len(segments))
	for index, segment := range segments {
		quotedSegments[index] = regexp.QuoteMeta(segment)
	}
	return regexp.MustCompile(`(?i)^` + strings.Join(quotedSegments, `[ _]+`) + `$`)
}
