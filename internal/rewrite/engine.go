package rewrite

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/utils"
	"github.com/temirov/mtc/internal/wikitext"
)

const (
	// InformationTemplateTitle names the template holding the structured file description.
	InformationTemplateTitle = "Information"
	// LicenseSectionHeading opens the synthesized license section.
	LicenseSectionHeading = "== {{int:license-header}} =="

	defaultAttributionProject  = "w"
	defaultAttributionLanguage = "en"
	attributionFormat          = "{{User at project|%s|%s|%s}}"

	resolveRedirectsErrorFormat = "resolve template redirects: %w: %w"
	filterMissingErrorFormat    = "filter templates missing on destination: %w: %w"
)

// DefaultExcludedTemplates lists templates that must never be transferred.
// Configured exclusions are added to this set.
var DefaultExcludedTemplates = []string{"Bots", "Copy to Wikimedia Commons"}

// Options configures an Engine.
type Options struct {
	ExcludedTemplates   []string
	AttributionProject  string
	AttributionLanguage string
}

// Result holds the parts produced by a rewrite.
type Result struct {
	// Body is the free-form description left after all templates were harvested.
	Body string
	// LicenseSection lists the retained templates under LicenseSectionHeading.
	LicenseSection string
	// Information is the extracted information template, or nil.
	Information *wikitext.Template
}

// Engine runs the rewrite pipeline against a parsed document.
type Engine struct {
	oracle              Oracle
	resolver            Resolver
	logger              *zap.Logger
	excludedTemplates   map[string]struct{}
	attributionProject  string
	attributionLanguage string
}

// NewEngine creates an Engine that consults oracle for destination existence and resolver for redirects.
func NewEngine(oracle Oracle, resolver Resolver, options Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	excludedTitles := append(append([]string{}, DefaultExcludedTemplates...), options.ExcludedTemplates...)
	excludedTemplates := make(map[string]struct{}, len(excludedTitles))
	for _, excludedTitle := range excludedTitles {
		excludedTemplates[wikitext.StripNamespace(wikitext.CanonicalTitle(excludedTitle))] = struct{}{}
	}
	engine := &Engine{
		oracle:              oracle,
		resolver:            resolver,
		logger:              logger,
		excludedTemplates:   excludedTemplates,
		attributionProject:  options.AttributionProject,
		attributionLanguage: options.AttributionLanguage,
	}
	if engine.attributionProject == "" {
		engine.attributionProject = defaultAttributionProject
	}
	if engine.attributionLanguage == "" {
		engine.attributionLanguage = defaultAttributionLanguage
	}
	return engine
}

// Attribution returns the project attribution markup for uploader.
func (engine *Engine) Attribution(uploader string) string {
	return fmt.Sprintf(attributionFormat, uploader, engine.attributionProject, engine.attributionLanguage)
}

// Rewrite mutates document in place and returns the residual body, the license
// section, and the extracted information template. A failed lookup aborts the
// rewrite without returning partial results.
func (engine *Engine) Rewrite(ctx context.Context, document *wikitext.Document, uploader string) (Result, error) {
	if err := engine.dropExcluded(ctx, document); err != nil {
		return Result{}, err
	}
	if err := engine.dropMissingOnDestination(ctx, document); err != nil {
		return Result{}, err
	}
	engine.applyLicenseRules(document, uploader)

	information := extractInformation(document)

	var licenseSection strings.Builder
	licenseSection.WriteString(LicenseSectionHeading)
	for _, template := range document.Templates() {
		licenseSection.WriteString("\n")
		licenseSection.WriteString(template.String())
		template.Drop()
	}

	return Result{
		Body:           document.String(),
		LicenseSection: licenseSection.String(),
		Information:    information,
	}, nil
}

// dropExcluded canonicalizes every template title through redirects and drops excluded templates.
func (engine *Engine) dropExcluded(ctx context.Context, document *wikitext.Document) error {
	templates := document.Templates()
	if len(templates) == 0 {
		return nil
	}
	lookupTitles := make([]string, len(templates))
	for index, template := range templates {
		lookupTitles[index] = templateLookupTitle(wikitext.CanonicalTitle(template.Title()))
	}
	redirects, resolveError := engine.resolver.ResolveRedirects(ctx, utils.DeduplicateStrings(lookupTitles))
	if resolveError != nil {
		return fmt.Errorf(resolveRedirectsErrorFormat, ErrOracleUnavailable, resolveError)
	}
	for index, template := range templates {
		canonicalTitle := lookupTitles[index]
		if target, redirected := redirects[canonicalTitle]; redirected && target != "" {
			canonicalTitle = target
		}
		if wikitext.InNamespace(canonicalTitle, wikitext.NamespaceTemplate) {
			canonicalTitle = wikitext.StripNamespace(canonicalTitle)
		}
		template.SetTitle(canonicalTitle)
		if _, excluded := engine.excludedTemplates[canonicalTitle]; excluded {
			engine.logger.Debug("dropping excluded template", zap.String("template", canonicalTitle))
			template.Drop()
		}
	}
	return nil
}

// dropMissingOnDestination drops templates whose lookup key does not exist on the destination.
func (engine *Engine) dropMissingOnDestination(ctx context.Context, document *wikitext.Document) error {
	templates := document.Templates()
	if len(templates) == 0 {
		return nil
	}
	lookupTitles := make([]string, len(templates))
	for index, template := range templates {
		lookupTitles[index] = templateLookupTitle(template.Title())
	}
	missingTitles, filterError := engine.oracle.Filter(ctx, utils.DeduplicateStrings(lookupTitles), false)
	if filterError != nil {
		return fmt.Errorf(filterMissingErrorFormat, ErrOracleUnavailable, filterError)
	}
	missing := make(map[string]struct{}, len(missingTitles))
	for _, missingTitle := range missingTitles {
		missing[missingTitle] = struct{}{}
	}
	for index, template := range templates {
		if _, absent := missing[lookupTitles[index]]; absent {
			engine.logger.Debug("dropping template missing on destination", zap.String("template", template.Title()))
			template.Drop()
		}
	}
	return nil
}

// templateLookupTitle maps a main-namespace title into the template namespace.
func templateLookupTitle(title string) string {
	if wikitext.InNamespace(title, wikitext.NamespaceMain) {
		return wikitext.ConvertNamespace(title, wikitext.NamespaceTemplate)
	}
	return title
}

func extractInformation(document *wikitext.Document) *wikitext.Template {
	for _, template := range document.Templates() {
		if template.Title() == InformationTemplateTitle {
			template.Drop()
			return template
		}
	}
	return nil
}
