// Package transfer turns source file pages into destination descriptions, one
// title at a time or as a filtered concurrent batch.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/assemble"
	"github.com/temirov/mtc/internal/rewrite"
	"github.com/temirov/mtc/internal/wikitext"
)

var (
	// ErrMissingMetadata reports a file without upload history.
	ErrMissingMetadata = errors.New("no image metadata")
	// ErrUnresolvedTitle reports a file for which no free destination title was found.
	ErrUnresolvedTitle = errors.New("no free destination title")
	// ErrOracleUnavailable reports a failed existence or redirect lookup.
	ErrOracleUnavailable = rewrite.ErrOracleUnavailable
)

const (
	missingMetadataErrorFormat = "generate %s: %w"
	pageTextErrorFormat        = "generate %s: read source text: %w"
	rewriteErrorFormat         = "generate %s: %w"
)

// Generator produces the destination description of a single file.
type Generator struct {
	text      rewrite.TextProvider
	engine    *rewrite.Engine
	assembler *assemble.Assembler
	logger    *zap.Logger
}

func NewGenerator(text rewrite.TextProvider, engine *rewrite.Engine, assembler *assemble.Assembler, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{text: text, engine: engine, assembler: assembler, logger: logger}
}

// Generate builds the description of title from its current source text.
// The uploader of record is the uploader of the newest revision.
func (generator *Generator) Generate(ctx context.Context, title string, isOwnWork bool, revisions []rewrite.ImageRevision) (string, error) {
	if len(revisions) == 0 {
		return "", fmt.Errorf(missingMetadataErrorFormat, title, ErrMissingMetadata)
	}
	uploader := revisions[len(revisions)-1].Uploader

	sourceText, textErr := generator.text.PageText(ctx, title)
	if textErr != nil {
		return "", fmt.Errorf(pageTextErrorFormat, title, textErr)
	}
	document := wikitext.Parse(wikitext.Preprocess(sourceText))
	result, rewriteErr := generator.engine.Rewrite(ctx, document, uploader)
	if rewriteErr != nil {
		return "", fmt.Errorf(rewriteErrorFormat, title, rewriteErr)
	}
	generator.logger.Debug("rewrote description",
		zap.String("title", title),
		zap.String("uploader", uploader),
		zap.Bool("own_work", isOwnWork),
	)
	return generator.assembler.Assemble(assemble.Input{
		SourceTitle: title,
		IsOwnWork:   isOwnWork,
		Uploader:    uploader,
		Rewrite:     result,
		Revisions:   revisions,
	}), nil
}
