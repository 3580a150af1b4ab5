package wikitext

import (
	"strconv"
	"strings"
)

const (
	templateOpen      = "{{"
	templateClose     = "}}"
	argumentOpen      = "{{{"
	argumentClose     = "}}}"
	parameterDivider  = "|"
	keyValueSeparator = "="
)

// Parameter is one key/value pair of a template invocation.
// Positional parameters carry the 1-based index assigned during parsing as their key.
type Parameter struct {
	Key        string
	Value      string
	Positional bool
}

// Template is a single {{Title|...}} invocation.
// Parameters preserve their insertion order.
type Template struct {
	title      string
	parameters []Parameter
	dropped    bool
	modified   bool
	source     string
}

// NewTemplate builds a template that has no source span and is always rendered from its fields.
func NewTemplate(title string, parameters ...Parameter) *Template {
	return &Template{
		title:      strings.TrimSpace(title),
		parameters: append([]Parameter(nil), parameters...),
		modified:   true,
	}
}

// Title returns the template title.
func (template *Template) Title() string {
	return template.title
}

// SetTitle renames the template.
func (template *Template) SetTitle(title string) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == template.title {
		return
	}
	template.title = trimmedTitle
	template.modified = true
}

// Parameters returns a copy of the parameter list in insertion order.
func (template *Template) Parameters() []Parameter {
	return append([]Parameter(nil), template.parameters...)
}

// Has reports whether a parameter with exactly this key exists.
func (template *Template) Has(key string) bool {
	_, found := template.lookup(key)
	return found
}

// Get returns the value stored under exactly this key.
func (template *Template) Get(key string) (string, bool) {
	index, found := template.lookup(key)
	if !found {
		return "", false
	}
	return template.parameters[index].Value, true
}

// Set replaces the value stored under key or appends a new named parameter.
func (template *Template) Set(key string, value string) {
	template.modified = true
	if index, found := template.lookup(key); found {
		template.parameters[index].Value = value
		return
	}
	template.parameters = append(template.parameters, Parameter{Key: key, Value: value})
}

// Drop removes the template from its document's output. Dropping twice is a no-op.
func (template *Template) Drop() {
	template.dropped = true
}

// Dropped reports whether Drop was called.
func (template *Template) Dropped() bool {
	return template.dropped
}

// String renders the template markup. An untouched parsed template returns
// its source span byte for byte.
func (template *Template) String() string {
	if !template.modified && template.source != "" {
		return template.source
	}
	var builder strings.Builder
	builder.WriteString(templateOpen)
	builder.WriteString(template.title)
	for _, parameter := range template.parameters {
		builder.WriteString(parameterDivider)
		if !parameter.Positional || strings.Contains(parameter.Value, keyValueSeparator) {
			builder.WriteString(parameter.Key)
			builder.WriteString(keyValueSeparator)
		}
		builder.WriteString(parameter.Value)
	}
	builder.WriteString(templateClose)
	return builder.String()
}

func (template *Template) lookup(key string) (int, bool) {
	for index, parameter := range template.parameters {
		if parameter.Key == key {
			return index, true
		}
	}
	return 0, false
}

// parseTemplate builds a template from the full source span including its braces.
func parseTemplate(source string) *Template {
	inner := source[len(templateOpen) : len(source)-len(templateClose)]
	segments := splitTopLevel(inner)
	template := &Template{title: strings.TrimSpace(segments[0]), source: source}
	positionalIndex := 0
	for _, segment := range segments[1:] {
		if separatorIndex := topLevelIndex(segment, keyValueSeparator); separatorIndex >= 0 {
			template.parameters = append(template.parameters, Parameter{
				Key:   strings.TrimSpace(segment[:separatorIndex]),
				Value: segment[separatorIndex+len(keyValueSeparator):],
			})
			continue
		}
		positionalIndex++
		template.parameters = append(template.parameters, Parameter{
			Key:        strconv.Itoa(positionalIndex),
			Value:      segment,
			Positional: true,
		})
	}
	return template
}

// splitTopLevel splits on pipes that are not nested inside {{...}} or [[...]].
func splitTopLevel(text string) []string {
	var segments []string
	segmentStart := 0
	scanner := nestingScanner{}
	for index := 0; index < len(text); {
		if scanner.atTopLevel() && strings.HasPrefix(text[index:], parameterDivider) {
			segments = append(segments, text[segmentStart:index])
			index += len(parameterDivider)
			segmentStart = index
			continue
		}
		index += scanner.advance(text, index)
	}
	return append(segments, text[segmentStart:])
}

// topLevelIndex finds the first occurrence of separator outside nested markup.
func topLevelIndex(text string, separator string) int {
	scanner := nestingScanner{}
	for index := 0; index < len(text); {
		if scanner.atTopLevel() && strings.HasPrefix(text[index:], separator) {
			return index
		}
		index += scanner.advance(text, index)
	}
	return -1
}

// nestingScanner tracks template and link depth while walking text.
type nestingScanner struct {
	templateDepth int
	argumentDepth int
	linkDepth     int
}

func (scanner *nestingScanner) atTopLevel() bool {
	return scanner.templateDepth == 0 && scanner.argumentDepth == 0 && scanner.linkDepth == 0
}

// advance consumes the token at index and returns its width.
func (scanner *nestingScanner) advance(text string, index int) int {
	remainder := text[index:]
	switch {
	case strings.HasPrefix(remainder, argumentOpen):
		scanner.argumentDepth++
		return 3
	case strings.HasPrefix(remainder, argumentClose) && scanner.argumentDepth > 0:
		scanner.argumentDepth--
		return 3
	case strings.HasPrefix(remainder, templateOpen):
		scanner.templateDepth++
		return 2
	case strings.HasPrefix(remainder, templateClose) && scanner.templateDepth > 0:
		scanner.templateDepth--
		return 2
	case strings.HasPrefix(remainder, "[["):
		scanner.linkDepth++
		return 2
	case strings.HasPrefix(remainder, "]]") && scanner.linkDepth > 0:
		scanner.linkDepth--
		return 2
	default:
		return 1
	}
}
