// Package assemble renders rewritten description parts into destination markup.
package assemble

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/temirov/mtc/internal/rewrite"
	"github.com/temirov/mtc/internal/wikitext"
)

const (
	// FileDescriptionHeading opens the generated description.
	FileDescriptionHeading = "== {{int:filedesc}} =="
	// UploadLogHeading opens the upload log section.
	UploadLogHeading = "== {{Original upload log}} =="
	// ClosingMarker terminates every generated description.
	ClosingMarker = "{{Subst:Unc}}"
	// OwnWorkSource is the source used for own work without an explicit source.
	OwnWorkSource = "{{Own work by original uploader}}"

	defaultInterwikiPrefix = "w"
	defaultSourceSite      = "en.wikipedia"
	timestampLayout        = "2006-01-02 15:04:05"

	informationBlockFormat = "%s\n{{Information\n|description=%s%s\n|date=%s\n|source=%s\n|author=%s\n|permission=%s\n|other versions=%s\n}}\n\n"
	userLinkFormat         = "[[User:%s|%s]]"
	originalPageFormat     = "{{Original file page|%s|%s}}"
	uploadLogTableHeader   = "{| class=\"wikitable\"\n! {{int:filehist-datetime}} !! {{int:filehist-dimensions}} !! {{int:filehist-user}} !! {{int:filehist-comment}}"
	uploadLogRowFormat     = "\n|-\n| %s || %d × %d || [[%s:User:%s|%s]] || ''<nowiki>%s</nowiki>''"
	nowikiClose            = "</nowiki>"
	escapedNowikiClose     = "&lt;/nowiki>"
)

var excessiveNewlinesPattern = regexp.MustCompile(`\n{3,}`)

// Options configures an Assembler.
type Options struct {
	// InterwikiPrefix links back to the source wiki, for example "w".
	InterwikiPrefix string
	// SourceSite names the source wiki in the provenance template, for example "en.wikipedia".
	SourceSite string
}

// Input carries everything needed to render one description.
type Input struct {
	SourceTitle string
	IsOwnWork   bool
	Uploader    string
	Rewrite     rewrite.Result
	Revisions   []rewrite.ImageRevision
}

// Assembler renders descriptions.
type Assembler struct {
	interwikiPrefix string
	sourceSite      string
	linkPrefixer    *regexp2.Regexp
	prefixCollapser *regexp2.Regexp
}

// NewAssembler creates an Assembler with defaults applied.
func NewAssembler(options Options) *Assembler {
	interwikiPrefix := strings.Trim(strings.TrimSpace(options.InterwikiPrefix), ":")
	if interwikiPrefix == "" {
		interwikiPrefix = defaultInterwikiPrefix
	}
	sourceSite := options.SourceSite
	if sourceSite == "" {
		sourceSite = defaultSourceSite
	}
	quotedPrefix := regexp2.Escape(interwikiPrefix)
	return &Assembler{
		interwikiPrefix: interwikiPrefix,
		sourceSite:      sourceSite,
		linkPrefixer:    regexp2.MustCompile(`(?<=\[\[)(.+?\]\])`, regexp2.None),
		prefixCollapser: regexp2.MustCompile(`\[\[`+quotedPrefix+`:(?:(?:`+quotedPrefix+`)?:)+`, regexp2.IgnoreCase),
	}
}

// Assemble renders the full destination description.
func (assembler *Assembler) Assemble(input Input) string {
	information := input.Rewrite.Information
	ownWorkSource := ""
	ownWorkAuthor := ""
	if input.IsOwnWork {
		ownWorkSource = OwnWorkSource
		ownWorkAuthor = fmt.Sprintf(userLinkFormat, input.Uploader, input.Uploader)
	}

	description := fmt.Sprintf(informationBlockFormat,
		FileDescriptionHeading,
		wikitext.FuzzyParam("Description", information, ""),
		strings.TrimSpace(input.Rewrite.Body),
		wikitext.FuzzyParam("Date", information, ""),
		wikitext.FuzzyParam("Source", information, ownWorkSource),
		wikitext.FuzzyParam("Author", information, ownWorkAuthor),
		wikitext.FuzzyParam("Permission", information, ""),
		wikitext.FuzzyParam("Other_versions", information, ""),
	) + input.Rewrite.LicenseSection

	description = CollapseNewlines(assembler.NormalizeLinks(description))
	return description + assembler.UploadLog(input.SourceTitle, input.Revisions)
}

// NormalizeLinks prefixes every wikilink target with the interwiki prefix and
// collapses duplicated prefixes. Applying it twice yields the same text.
func (assembler *Assembler) NormalizeLinks(text string) string {
	return assembler.CollapsePrefixes(assembler.PrefixLinks(text))
}

// PrefixLinks inserts the interwiki prefix after every [[ that has a closing ]].
func (assembler *Assembler) PrefixLinks(text string) string {
	prefixed, replaceError := assembler.linkPrefixer.Replace(text, assembler.interwikiPrefix+":$1", -1, -1)
	if replaceError != nil {
		return text
	}
	return prefixed
}

// CollapsePrefixes reduces doubled prefixes such as [[w:w: or [[w:: to a single [[w:.
func (assembler *Assembler) CollapsePrefixes(text string) string {
	collapsed, replaceError := assembler.prefixCollapser.Replace(text, "[["+assembler.interwikiPrefix+":", -1, -1)
	if replaceError != nil {
		return text
	}
	return collapsed
}

// CollapseNewlines replaces every run of three or more newlines with a single newline.
func CollapseNewlines(text string) string {
	return excessiveNewlinesPattern.ReplaceAllString(text, "\n")
}

// UploadLog renders the provenance section listing revisions oldest first.
func (assembler *Assembler) UploadLog(sourceTitle string, revisions []rewrite.ImageRevision) string {
	var builder strings.Builder
	builder.WriteString("\n\n")
	builder.WriteString(UploadLogHeading)
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf(originalPageFormat, assembler.sourceSite, wikitext.StripNamespace(sourceTitle)))
	builder.WriteString("\n")
	builder.WriteString(uploadLogTableHeader)
	for _, revision := range revisions {
		builder.WriteString(fmt.Sprintf(uploadLogRowFormat,
			FormatTimestamp(revision.Timestamp),
			revision.Height,
			revision.Width,
			assembler.interwikiPrefix,
			revision.Uploader,
			revision.Uploader,
			normalizeSummary(revision.Summary),
		))
	}
	builder.WriteString("\n|}\n\n")
	builder.WriteString(ClosingMarker)
	return builder.String()
}

// normalizeSummary flattens an edit summary onto one line for a nowiki cell.
func normalizeSummary(summary string) string {
	flattened := strings.ReplaceAll(summary, "\n", " ")
	for strings.Contains(flattened, "  ") {
		flattened = strings.ReplaceAll(flattened, "  ", " ")
	}
	return strings.ReplaceAll(flattened, nowikiClose, escapedNowikiClose)
}

// FormatTimestamp renders a revision timestamp the way the upload log does.
func FormatTimestamp(timestamp time.Time) string {
	return timestamp.UTC().Format(timestampLayout)
}
