package mediawiki

import "time"

type apiResponse struct {
	Continue map[string]any `json:"continue"`
	Query    queryResult    `json:"query"`
	Error    *APIError      `json:"error"`
}

type queryResult struct {
	Normalized      []titleMapping `json:"normalized"`
	Redirects       []titleMapping `json:"redirects"`
	Pages           []page         `json:"pages"`
	CategoryMembers []listEntry    `json:"categorymembers"`
	EmbeddedIn      []listEntry    `json:"embeddedin"`
	AllImages       []listEntry    `json:"allimages"`
}

type titleMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type page struct {
	Title          string          `json:"title"`
	Missing        bool            `json:"missing"`
	Invalid        bool            `json:"invalid"`
	Revisions      []revision      `json:"revisions"`
	ImageInfo      []imageInfo     `json:"imageinfo"`
	Categories     []listEntry     `json:"categories"`
	DuplicateFiles []duplicateFile `json:"duplicatefiles"`
	Links          []listEntry     `json:"links"`
}

type revision struct {
	Slots map[string]revisionSlot `json:"slots"`
}

type revisionSlot struct {
	Content string `json:"content"`
}

type imageInfo struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Comment   string    `json:"comment"`
	URL       string    `json:"url"`
}

type duplicateFile struct {
	Name   string `json:"name"`
	Shared bool   `json:"shared"`
}

type listEntry struct {
	Title string `json:"title"`
}

// pageSet accumulates pages and title mappings across batches and continuations.
type pageSet struct {
	pages      map[string]*page
	normalized map[string]string
	redirects  map[string]string
}

func newPageSet() *pageSet {
	return &pageSet{
		pages:      map[string]*page{},
		normalized: map[string]string{},
		redirects:  map[string]string{},
	}
}

func (set *pageSet) add(result queryResult) {
	for _, mapping := range result.Normalized {
		set.normalized[mapping.From] = mapping.To
	}
	for _, mapping := range result.Redirects {
		set.redirects[mapping.From] = mapping.To
	}
	for _, incoming := range result.Pages {
		existing, found := set.pages[incoming.Title]
		if !found {
			incomingCopy := incoming
			set.pages[incoming.Title] = &incomingCopy
			continue
		}
		existing.Missing = existing.Missing || incoming.Missing
		existing.Invalid = existing.Invalid || incoming.Invalid
		existing.Revisions = append(existing.Revisions, incoming.Revisions...)
		existing.ImageInfo = append(existing.ImageInfo, incoming.ImageInfo...)
		existing.Categories = append(existing.Categories, incoming.Categories...)
		existing.DuplicateFiles = append(existing.DuplicateFiles, incoming.DuplicateFiles...)
		existing.Links = append(existing.Links, incoming.Links...)
	}
}

// normalize maps a requested title to the title the wiki reported it under.
func (set *pageSet) normalize(title string) string {
	if normalizedTitle, found := set.normalized[title]; found {
		return normalizedTitle
	}
	return title
}

// resolve follows normalization and then redirects.
func (set *pageSet) resolve(title string) string {
	resolvedTitle := set.normalize(title)
	if target, found := set.redirects[resolvedTitle]; found {
		return target
	}
	return resolvedTitle
}

func (set *pageSet) page(title string) (*page, bool) {
	foundPage, found := set.pages[set.normalize(title)]
	return foundPage, found
}

func (foundPage *page) exists() bool {
	return !foundPage.Missing && !foundPage.Invalid
}
