package wikitext

import (
	"regexp"
	"strings"
	"unicode"
)

// Namespace names used by the transfer rules.
const (
	NamespaceMain     = ""
	NamespaceFile     = "File"
	NamespaceCategory = "Category"
	NamespaceTemplate = "Template"
	NamespaceUser     = "User"
)

const namespaceSeparator = ":"

// standardNamespaces maps lower-cased namespace names and aliases to their canonical name.
var standardNamespaces = map[string]string{
	"talk":           "Talk",
	"user":           NamespaceUser,
	"user talk":      "User talk",
	"wikipedia":      "Wikipedia",
	"project":        "Wikipedia",
	"wp":             "Wikipedia",
	"wikipedia talk": "Wikipedia talk",
	"file":           NamespaceFile,
	"image":          NamespaceFile,
	"file talk":      "File talk",
	"mediawiki":      "MediaWiki",
	"mediawiki talk": "MediaWiki talk",
	"template":       NamespaceTemplate,
	"template talk":  "Template talk",
	"help":           "Help",
	"help talk":      "Help talk",
	"category":       NamespaceCategory,
	"category talk":  "Category talk",
	"portal":         "Portal",
	"portal talk":    "Portal talk",
	"draft":          "Draft",
	"draft talk":     "Draft talk",
	"module":         "Module",
	"module talk":    "Module talk",
	"special":        "Special",
	"media":          "Media",
}

var canonicalSpacesPattern = regexp.MustCompile(`[ _]+`)

// CanonicalTitle collapses underscores and repeated spaces, trims the title,
// canonicalizes a known namespace prefix, and upper-cases the first letter of the page name.
func CanonicalTitle(title string) string {
	namespace, pageName := SplitNamespace(title)
	pageName = upperFirst(pageName)
	if namespace == NamespaceMain {
		return pageName
	}
	return namespace + namespaceSeparator + pageName
}

// SplitNamespace separates a known namespace prefix from the page name.
// Titles without a known prefix belong to the main namespace.
func SplitNamespace(title string) (string, string) {
	normalized := strings.TrimSpace(canonicalSpacesPattern.ReplaceAllString(title, " "))
	separatorIndex := strings.Index(normalized, namespaceSeparator)
	if separatorIndex < 0 {
		return NamespaceMain, normalized
	}
	prefix := strings.ToLower(strings.TrimSpace(normalized[:separatorIndex]))
	namespace, known := standardNamespaces[prefix]
	if !known {
		return NamespaceMain, normalized
	}
	return namespace, strings.TrimSpace(normalized[separatorIndex+len(namespaceSeparator):])
}

// InNamespace reports whether title belongs to namespace.
func InNamespace(title string, namespace string) bool {
	titleNamespace, _ := SplitNamespace(title)
	return titleNamespace == namespace
}

// StripNamespace returns the page name of title without its namespace prefix.
func StripNamespace(title string) string {
	_, pageName := SplitNamespace(title)
	return pageName
}

// ConvertNamespace moves title into namespace, replacing any existing namespace prefix.
func ConvertNamespace(title string, namespace string) string {
	pageName := upperFirst(StripNamespace(title))
	if namespace == NamespaceMain {
		return pageName
	}
	return namespace + namespaceSeparator + pageName
}

func upperFirst(text string) string {
	if text == "" {
		return text
	}
	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
