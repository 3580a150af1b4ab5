package rewrite

import "github.com/temirov/mtc/internal/wikitext"

const (
	authorParameter = "author"
	firstParameter  = "1"
)

// valueSource selects what a license rule writes into its parameter.
type valueSource int

const (
	uploaderValueSource valueSource = iota
	attributionValueSource
)

// licenseRule rewrites a self-licensing template into its destination equivalent.
type licenseRule struct {
	renameTo     string
	parameter    string
	valueSource  valueSource
	onlyIfAbsent bool
}

// licenseRules is keyed by exact canonical template title.
var licenseRules = map[string]licenseRule{
	"Self": {
		parameter:    authorParameter,
		valueSource:  attributionValueSource,
		onlyIfAbsent: true,
	},
	"GFDL-self": {
		renameTo:    "GFDL-self-en",
		parameter:   authorParameter,
		valueSource: attributionValueSource,
	},
	"PD-self": {
		renameTo:    "PD-user-en",
		parameter:   firstParameter,
		valueSource: uploaderValueSource,
	},
	"GFDL-self-with-disclaimers": {
		renameTo:    "GFDL-user-en-with-disclaimers",
		parameter:   firstParameter,
		valueSource: uploaderValueSource,
	},
}

func (engine *Engine) applyLicenseRules(document *wikitext.Document, uploader string) {
	for _, template := range document.Templates() {
		rule, found := licenseRules[template.Title()]
		if !found {
			continue
		}
		if rule.renameTo != "" {
			template.SetTitle(rule.renameTo)
		}
		if rule.onlyIfAbsent && template.Has(rule.parameter) {
			continue
		}
		value := uploader
		if rule.valueSource == attributionValueSource {
			value = engine.Attribution(uploader)
		}
		template.Set(rule.parameter, value)
	}
}
