package wikitext

import "strings"

// NodeKind distinguishes text spans from template references.
type NodeKind int

const (
	// NodeText is a literal span of markup.
	NodeText NodeKind = iota
	// NodeTemplate refers to an entry of the document's template table.
	NodeTemplate
)

// Node is one element of a document in serialization order.
type Node struct {
	Kind          NodeKind
	Text          string
	TemplateIndex int
}

// Document is parsed markup: nodes in order plus the template table they index.
type Document struct {
	nodes     []Node
	templates []*Template
}

// Parse splits text into text spans and top-level templates. Templates nested
// inside parameter values stay part of the enclosing value. An unmatched
// opening brace pair is kept as literal text.
func Parse(text string) *Document {
	document := &Document{}
	var pendingText strings.Builder
	flushText := func() {
		if pendingText.Len() == 0 {
			return
		}
		document.nodes = append(document.nodes, Node{Kind: NodeText, Text: pendingText.String()})
		pendingText.Reset()
	}

	for index := 0; index < len(text); {
		openIndex := strings.Index(text[index:], templateOpen)
		if openIndex < 0 {
			pendingText.WriteString(text[index:])
			break
		}
		openIndex += index
		pendingText.WriteString(text[index:openIndex])

		if strings.HasPrefix(text[openIndex:], argumentOpen) {
			pendingText.WriteString(argumentOpen)
			index = openIndex + len(argumentOpen)
			continue
		}
		closeIndex := matchingClose(text, openIndex)
		if closeIndex < 0 {
			pendingText.WriteString(templateOpen)
			index = openIndex + len(templateOpen)
			continue
		}

		flushText()
		document.templates = append(document.templates, parseTemplate(text[openIndex:closeIndex]))
		document.nodes = append(document.nodes, Node{Kind: NodeTemplate, TemplateIndex: len(document.templates) - 1})
		index = closeIndex
	}
	flushText()
	return document
}

// matchingClose returns the index just past the }} that balances the {{ at openIndex, or -1.
func matchingClose(text string, openIndex int) int {
	depth := 0
	argumentDepth := 0
	for index := openIndex; index < len(text); {
		switch {
		case index > openIndex && strings.HasPrefix(text[index:], argumentOpen):
			argumentDepth++
			index += len(argumentOpen)
		case argumentDepth > 0 && strings.HasPrefix(text[index:], argumentClose):
			argumentDepth--
			index += len(argumentClose)
		case strings.HasPrefix(text[index:], templateOpen):
			depth++
			index += len(templateOpen)
		case strings.HasPrefix(text[index:], templateClose):
			depth--
			index += len(templateClose)
			if depth == 0 {
				return index
			}
		default:
			index++
		}
	}
	return -1
}

// Nodes returns the document nodes in serialization order.
func (document *Document) Nodes() []Node {
	return append([]Node(nil), document.nodes...)
}

// Template returns the template stored at index of the template table.
func (document *Document) Template(index int) *Template {
	if index < 0 || index >= len(document.templates) {
		return nil
	}
	return document.templates[index]
}

// Templates returns the templates that have not been dropped, in document order.
func (document *Document) Templates() []*Template {
	var liveTemplates []*Template
	for _, node := range document.nodes {
		if node.Kind != NodeTemplate {
			continue
		}
		template := document.templates[node.TemplateIndex]
		if template.Dropped() {
			continue
		}
		liveTemplates = append(liveTemplates, template)
	}
	return liveTemplates
}

// String serializes the document. Dropped templates contribute nothing.
func (document *Document) String() string {
	var builder strings.Builder
	for _, node := range document.nodes {
		if node.Kind == NodeText {
			builder.WriteString(node.Text)
			continue
		}
		template := document.templates[node.TemplateIndex]
		if template.Dropped() {
			continue
		}
		builder.WriteString(template.String())
	}
	return builder.String()
}
