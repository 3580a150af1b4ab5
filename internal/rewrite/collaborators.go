// Package rewrite applies the fixed pipeline of template rules that turns a
// parsed source description into destination-compatible parts.
package rewrite

import (
	"context"
	"errors"
	"time"
)

// ErrOracleUnavailable reports that a batched existence or redirect lookup failed.
var ErrOracleUnavailable = errors.New("existence oracle unavailable")

// Oracle answers whether titles exist on the destination wiki.
type Oracle interface {
	// Filter returns, in query order, the titles whose existence equals exists.
	Filter(ctx context.Context, titles []string, exists bool) ([]string, error)
}

// Resolver follows redirects on the source wiki.
type Resolver interface {
	// ResolveRedirects maps each title to its redirect target. Titles that are
	// not redirects may be omitted from the result.
	ResolveRedirects(ctx context.Context, titles []string) (map[string]string, error)
}

// MetadataProvider returns the upload history of files.
type MetadataProvider interface {
	// ImageRevisions maps each title to its revisions ordered oldest to newest.
	ImageRevisions(ctx context.Context, titles []string) (map[string][]ImageRevision, error)
}

// TextProvider returns the current markup of a page.
type TextProvider interface {
	PageText(ctx context.Context, title string) (string, error)
}

// ImageRevision is one upload of a file.
type ImageRevision struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Uploader  string    `json:"user" yaml:"user"`
	Width     int       `json:"width" yaml:"width"`
	Height    int       `json:"height" yaml:"height"`
	Summary   string    `json:"comment" yaml:"comment"`
	URL       string    `json:"url" yaml:"url"`
}
