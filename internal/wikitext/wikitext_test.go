package wikitext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestPreprocessRemovesIrrelevantMarkup verifies each preprocessing pass and their order.
func TestPreprocessRemovesIrrelevantMarkup(testingInstance *testing.T) {
	testCases := []struct {
		testName string
		input    string
		expected string
	}{
		{
			testName: "multi-line comment",
			input:    "before<!-- one\ntwo -->after",
			expected: "beforeafter",
		},
		{
			testName: "category link with preceding newline",
			input:    "text\n[[Category:Foo bar]]\n[[category:Baz]]",
			expected: "text",
		},
		{
			testName: "section header with trailing newline",
			input:    "lead\n== Summary ==\nbody",
			expected: "leadbody",
		},
		{
			testName: "caption wikitable",
			input:    "{{A}}\n{| CLASS = \"wikitable sortable\"\n|caption\n|}\n{{B}}",
			expected: "{{A}}\n\n{{B}}",
		},
		{
			testName: "all passes in order",
			input:    "Hello<!-- c -->\n== Summary ==\nText\n[[Category:Foo]]\n{| class=\"wikitable\"\n|cap\n|}",
			expected: "HelloText\n",
		},
		{
			testName: "nothing to strip",
			input:    "{{Information|description=plain}}",
			expected: "{{Information|description=plain}}",
		},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			if actual := Preprocess(testCase.input); actual != testCase.expected {
				subTest.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}

// TestParseRoundTrip verifies that serializing a freshly parsed document reproduces its input.
func TestParseRoundTrip(testingInstance *testing.T) {
	inputs := []string{
		"",
		"plain prose without templates",
		"{{Self|GFDL|cc-by-sa-3.0}}",
		"lead {{Information\n|description=See [[Foo|bar]] and {{w|X|y}}\n|date=2001\n}} tail",
		"{{a}}{{b|{{c|{{d}}}}}}",
		"a {{ b {{X}} c",
		"}} stray {{Y|1}} }}",
		"{{Outer|{{{1}}}|k = v}}",
		"{{{argument}}} at top level",
	}
	for _, input := range inputs {
		document := Parse(input)
		if actual := document.String(); actual != input {
			testingInstance.Errorf("round trip mismatch for %q: got %q", input, actual)
		}
	}
}

// TestParseNestedTemplatesStayInValues verifies that nested templates and links are captured in the outer value.
func TestParseNestedTemplatesStayInValues(testingInstance *testing.T) {
	document := Parse("x {{Information|description=See [[Foo|bar]] and {{w|X|y}}|date=2001|anonymous|another}} y")
	templates := document.Templates()
	if len(templates) != 1 {
		testingInstance.Fatalf("expected one top-level template, got %d", len(templates))
	}
	information := templates[0]
	if information.Title() != "Information" {
		testingInstance.Fatalf("unexpected title %q", information.Title())
	}
	expectedParameters := []Parameter{
		{Key: "description", Value: "See [[Foo|bar]] and {{w|X|y}}"},
		{Key: "date", Value: "2001"},
		{Key: "1", Value: "anonymous", Positional: true},
		{Key: "2", Value: "another", Positional: true},
	}
	if diff := cmp.Diff(expectedParameters, information.Parameters()); diff != "" {
		testingInstance.Fatalf("parameters mismatch (-want +got):\n%s", diff)
	}
}

// TestParseUnbalancedBracesAreText verifies the toleration policy for malformed nesting.
func TestParseUnbalancedBracesAreText(testingInstance *testing.T) {
	document := Parse("a {{ b {{X}} c")
	expectedNodes := []Node{
		{Kind: NodeText, Text: "a {{ b "},
		{Kind: NodeTemplate, TemplateIndex: 0},
		{Kind: NodeText, Text: " c"},
	}
	if diff := cmp.Diff(expectedNodes, document.Nodes()); diff != "" {
		testingInstance.Fatalf("nodes mismatch (-want +got):\n%s", diff)
	}
	if document.Template(0).Title() != "X" {
		testingInstance.Fatalf("expected template X, got %q", document.Template(0).Title())
	}
	if document.Template(1) != nil {
		testingInstance.Fatalf("expected no second template")
	}
}

// TestDropRemovesExactlyOwnSpan verifies that dropping leaves every other node untouched.
func TestDropRemovesExactlyOwnSpan(testingInstance *testing.T) {
	input := "Alpha {{Keep|1}}\n{{Drop me|x=y}}\nOmega {{Keep too}}"
	document := Parse(input)
	templates := document.Templates()
	if len(templates) != 3 {
		testingInstance.Fatalf("expected three templates, got %d", len(templates))
	}
	templates[1].Drop()
	templates[1].Drop()

	expected := "Alpha {{Keep|1}}\n\nOmega {{Keep too}}"
	if actual := document.String(); actual != expected {
		testingInstance.Fatalf("expected %q, got %q", expected, actual)
	}
	remaining := document.Templates()
	if len(remaining) != 2 || remaining[0].Title() != "Keep" || remaining[1].Title() != "Keep too" {
		testingInstance.Fatalf("unexpected remaining templates: %v", remaining)
	}
}

// TestTemplateMutationRendering verifies rendering after renames and parameter changes.
func TestTemplateMutationRendering(testingInstance *testing.T) {
	testCases := []struct {
		testName string
		input    string
		mutate   func(*Template)
		expected string
	}{
		{
			testName: "rename and set positional key",
			input:    "{{PD-self}}",
			mutate: func(template *Template) {
				template.SetTitle("PD-user-en")
				template.Set("1", "Alice")
			},
			expected: "{{PD-user-en|1=Alice}}",
		},
		{
			testName: "inject named parameter keeps positional ones",
			input:    "{{Self|GFDL|cc-by-sa-3.0}}",
			mutate: func(template *Template) {
				template.Set("author", "{{User at project|Alice|w|en}}")
			},
			expected: "{{Self|GFDL|cc-by-sa-3.0|author={{User at project|Alice|w|en}}}}",
		},
		{
			testName: "replace existing value",
			input:    "{{GFDL-self|author=Bob}}",
			mutate: func(template *Template) {
				template.SetTitle("GFDL-self-en")
				template.Set("author", "Carol")
			},
			expected: "{{GFDL-self-en|author=Carol}}",
		},
		{
			testName: "positional value containing equals sign",
			input:    "{{Foo|plain}}",
			mutate: func(template *Template) {
				template.Set("1", "a=b")
			},
			expected: "{{Foo|1=a=b}}",
		},
		{
			testName: "same title keeps source",
			input:    "{{ Self |x}}",
			mutate: func(template *Template) {
				template.SetTitle("Self")
			},
			expected: "{{ Self |x}}",
		},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			document := Parse(testCase.input)
			testCase.mutate(document.Templates()[0])
			if actual := document.String(); actual != testCase.expected {
				subTest.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}

// TestTemplatesReflectInPlaceMutation verifies that later scans observe earlier renames and drops.
func TestTemplatesReflectInPlaceMutation(testingInstance *testing.T) {
	document := Parse("{{GFDL-self}}{{Information|description=x}}{{Bots}}")
	for _, template := range document.Templates() {
		switch template.Title() {
		case "GFDL-self":
			template.SetTitle("GFDL-self-en")
		case "Bots":
			template.Drop()
		}
	}
	var titles []string
	for _, template := range document.Templates() {
		titles = append(titles, template.Title())
	}
	if diff := cmp.Diff([]string{"GFDL-self-en", "Information"}, titles); diff != "" {
		testingInstance.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
}

// TestFuzzyParam verifies case, space, and underscore insensitive lookups.
func TestFuzzyParam(testingInstance *testing.T) {
	testCases := []struct {
		testName     string
		targetKey    string
		template     *Template
		defaultValue string
		expected     string
	}{
		{
			testName:  "underscore target matches spaced key",
			targetKey: "Other_versions",
			template:  NewTemplate("Information", Parameter{Key: "other versions", Value: "X"}),
			expected:  "X",
		},
		{
			testName:  "underscore target matches upper-case key",
			targetKey: "Other_versions",
			template:  NewTemplate("Information", Parameter{Key: "OTHER VERSIONS", Value: " X "}),
			expected:  "X",
		},
		{
			testName:  "case-insensitive",
			targetKey: "Date",
			template:  NewTemplate("Information", Parameter{Key: "DATE", Value: "Y"}),
			expected:  "Y",
		},
		{
			testName:     "missing key returns default",
			targetKey:    "Foo",
			template:     NewTemplate("Information"),
			defaultValue: "fallback",
			expected:     "fallback",
		},
		{
			testName:     "nil template returns default",
			targetKey:    "Author",
			defaultValue: "[[User:Alice|Alice]]",
			expected:     "[[User:Alice|Alice]]",
		},
		{
			testName:  "anchored match does not accept longer keys",
			targetKey: "Author",
			template:  NewTemplate("Information", Parameter{Key: "Authority", Value: "no"}),
			expected:  "",
		},
		{
			testName:  "first match in insertion order wins",
			targetKey: "source",
			template: NewTemplate("Information",
				Parameter{Key: "Source", Value: "first"},
				Parameter{Key: "source", Value: "second"},
			),
			expected: "first",
		},
		{
			testName:  "regexp metacharacters are literal",
			targetKey: "a.b",
			template:  NewTemplate("T", Parameter{Key: "axb", Value: "wrong"}, Parameter{Key: "A.B", Value: "right"}),
			expected:  "right",
		},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			actual := FuzzyParam(testCase.targetKey, testCase.template, testCase.defaultValue)
			if actual != testCase.expected {
				subTest.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}

// TestNamespaceHelpers verifies namespace classification and conversion.
func TestNamespaceHelpers(testingInstance *testing.T) {
	if !InNamespace("Self", NamespaceMain) {
		testingInstance.Fatalf("expected Self in main namespace")
	}
	if !InNamespace("template:Self", NamespaceTemplate) {
		testingInstance.Fatalf("expected template:Self in template namespace")
	}
	if !InNamespace("Image:Foo.jpg", NamespaceFile) {
		testingInstance.Fatalf("expected Image alias to map to File")
	}
	if InNamespace("Foo: a subtitle", NamespaceTemplate) {
		testingInstance.Fatalf("unknown prefix must stay in main namespace")
	}
	if actual := ConvertNamespace("self", NamespaceTemplate); actual != "Template:Self" {
		testingInstance.Fatalf("unexpected conversion %q", actual)
	}
	if actual := StripNamespace("File:Foo_bar.jpg"); actual != "Foo bar.jpg" {
		testingInstance.Fatalf("unexpected stripped title %q", actual)
	}
	if actual := CanonicalTitle("category:  some_thing"); actual != "Category:Some thing" {
		testingInstance.Fatalf("unexpected canonical title %q", actual)
	}
}
