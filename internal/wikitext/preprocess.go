// Package wikitext parses MediaWiki markup into documents of text spans and
// template invocations that can be rewritten in place and serialized again.
package wikitext

import "regexp"

// preprocessPatterns lists the constructs removed from raw page text before
// parsing. The passes run in order and each sees the previous result.
var preprocessPatterns = []*regexp.Regexp{
	// comments
	regexp.MustCompile(`(?s)<!--.*?-->`),
	// category links, together with the newline that precedes them
	regexp.MustCompile(`(?i)\n?\[\[Category:.+?\]\]`),
	// section headers
	regexp.MustCompile(`\n?==.*?==\n?`),
	// captions kept in simple wikitables
	regexp.MustCompile(`(?si)\{\|\s*?class\s*?=\s*?"wikitable.+?\|\}`),
}

// Preprocess strips comments, category links, section headers, and simple
// wikitables from source.
func Preprocess(source string) string {
	processed := source
	for _, pattern := range preprocessPatterns {
		processed = pattern.ReplaceAllString(processed, "")
	}
	return processed
}
