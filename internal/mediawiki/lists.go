package mediawiki

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/utils"
	"github.com/temirov/mtc/internal/wikitext"
)

const (
	parameterList = "list"

	listCategoryMembers = "categorymembers"
	listEmbeddedIn      = "embeddedin"
	listAllImages       = "allimages"

	parameterCategoryTitle     = "cmtitle"
	parameterCategoryNamespace = "cmnamespace"
	parameterCategoryMaxLimit  = "cmlimit"
	parameterEmbeddedTitle     = "eititle"
	parameterEmbeddedNamespace = "einamespace"
	parameterEmbeddedLimit     = "eilimit"
	parameterImagesUser        = "aiuser"
	parameterImagesSort        = "aisort"
	parameterImagesLimit       = "ailimit"

	fileNamespaceNumber = "6"
	sortByTimestamp     = "timestamp"

	expandInputErrorFormat = "expand %s: %w"
)

// CategoryMembers returns the files in category.
func (client Client) CategoryMembers(ctx context.Context, category string) ([]string, error) {
	return client.listTitles(ctx, url.Values{
		parameterList:              {listCategoryMembers},
		parameterCategoryTitle:     {wikitext.ConvertNamespace(category, wikitext.NamespaceCategory)},
		parameterCategoryNamespace: {fileNamespaceNumber},
		parameterCategoryMaxLimit:  {maximumLimit},
	}, func(result queryResult) []listEntry { return result.CategoryMembers })
}

// Transclusions returns the files that transclude template.
func (client Client) Transclusions(ctx context.Context, template string) ([]string, error) {
	return client.listTitles(ctx, url.Values{
		parameterList:              {listEmbeddedIn},
		parameterEmbeddedTitle:     {wikitext.ConvertNamespace(template, wikitext.NamespaceTemplate)},
		parameterEmbeddedNamespace: {fileNamespaceNumber},
		parameterEmbeddedLimit:     {maximumLimit},
	}, func(result queryResult) []listEntry { return result.EmbeddedIn })
}

// UserUploads returns the files uploaded by user.
func (client Client) UserUploads(ctx context.Context, user string) ([]string, error) {
	return client.listTitles(ctx, url.Values{
		parameterList:        {listAllImages},
		parameterImagesUser:  {wikitext.StripNamespace(user)},
		parameterImagesSort:  {sortByTimestamp},
		parameterImagesLimit: {maximumLimit},
	}, func(result queryResult) []listEntry { return result.AllImages })
}

// ExpandInputs turns command line inputs into file titles. Files are taken as
// they are, categories and templates expand to their file members, and anything
// else is treated as a username whose uploads are listed. The result keeps
// first-seen order without duplicates.
func (client Client) ExpandInputs(ctx context.Context, inputs []string) ([]string, error) {
	var files []string
	for _, input := range utils.NonEmptyTrimmed(inputs) {
		var expanded []string
		var expandErr error
		switch {
		case wikitext.InNamespace(input, wikitext.NamespaceFile):
			expanded = []string{wikitext.CanonicalTitle(input)}
		case wikitext.InNamespace(input, wikitext.NamespaceCategory):
			expanded, expandErr = client.CategoryMembers(ctx, input)
		case wikitext.InNamespace(input, wikitext.NamespaceTemplate):
			expanded, expandErr = client.Transclusions(ctx, input)
		default:
			expanded, expandErr = client.UserUploads(ctx, input)
		}
		if expandErr != nil {
			return nil, fmt.Errorf(expandInputErrorFormat, input, expandErr)
		}
		client.logger.Debug("expanded input", zap.String("input", input), zap.Int("files", len(expanded)))
		files = append(files, expanded...)
	}
	return utils.DeduplicateStrings(files), nil
}

func (client Client) listTitles(ctx context.Context, parameters url.Values, entries func(queryResult) []listEntry) ([]string, error) {
	var titles []string
	queryErr := client.queryAll(ctx, parameters, func(result queryResult) {
		for _, entry := range entries(result) {
			titles = append(titles, entry.Title)
		}
	})
	if queryErr != nil {
		return nil, queryErr
	}
	return titles, nil
}
