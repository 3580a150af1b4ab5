package mediawiki

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/temirov/mtc/internal/rewrite"
	"github.com/temirov/mtc/internal/utils"
)

const (
	parameterProperty          = "prop"
	parameterRedirects         = "redirects"
	parameterImageInfoProperty = "iiprop"
	parameterImageInfoLimit    = "iilimit"
	parameterRevisionProperty  = "rvprop"
	parameterRevisionSlots     = "rvslots"
	parameterCategoryLimit     = "cllimit"
	parameterDuplicateLimit    = "dflimit"
	parameterLinkLimit         = "pllimit"

	propertyImageInfo      = "imageinfo"
	propertyRevisions      = "revisions"
	propertyCategories     = "categories"
	propertyDuplicateFiles = "duplicatefiles"
	propertyLinks          = "links"
	imageInfoFields        = "timestamp|user|size|comment|url"
	revisionContent        = "content"
	mainSlot               = "main"
	enabledFlag            = "1"

	pageTextErrorFormat = "fetch text of %s: %w"
)

// pagesByTitle queries titles in batches and merges every response into one page set.
func (client Client) pagesByTitle(ctx context.Context, titles []string, parameters url.Values) (*pageSet, error) {
	set := newPageSet()
	for _, batch := range utils.ChunkStrings(utils.DeduplicateStrings(titles), client.batchSize) {
		batchParameters := url.Values{}
		for key, values := range parameters {
			batchParameters[key] = values
		}
		batchParameters.Set(parameterTitles, joinTitles(batch))
		if queryErr := client.queryAll(ctx, batchParameters, set.add); queryErr != nil {
			return nil, queryErr
		}
	}
	return set, nil
}

// Filter returns, in query order, the titles whose existence on this wiki equals exists.
func (client Client) Filter(ctx context.Context, titles []string, exists bool) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	set, queryErr := client.pagesByTitle(ctx, titles, url.Values{})
	if queryErr != nil {
		return nil, queryErr
	}
	var matching []string
	for _, title := range titles {
		foundPage, found := set.page(title)
		titleExists := found && foundPage.exists()
		if titleExists == exists {
			matching = append(matching, title)
		}
	}
	return matching, nil
}

// ResolveRedirects maps every title that is a redirect, or that the wiki
// normalizes to another spelling, to its final title.
func (client Client) ResolveRedirects(ctx context.Context, titles []string) (map[string]string, error) {
	resolved := map[string]string{}
	if len(titles) == 0 {
		return resolved, nil
	}
	set, queryErr := client.pagesByTitle(ctx, titles, url.Values{parameterRedirects: {enabledFlag}})
	if queryErr != nil {
		return nil, queryErr
	}
	for _, title := range titles {
		if target := set.resolve(title); target != title {
			resolved[title] = target
		}
	}
	return resolved, nil
}

// ImageRevisions returns the upload history of each file, oldest first.
// Titles without upload history are absent from the result.
func (client Client) ImageRevisions(ctx context.Context, titles []string) (map[string][]rewrite.ImageRevision, error) {
	revisionsByTitle := map[string][]rewrite.ImageRevision{}
	if len(titles) == 0 {
		return revisionsByTitle, nil
	}
	set, queryErr := client.pagesByTitle(ctx, titles, url.Values{
		parameterProperty:          {propertyImageInfo},
		parameterImageInfoProperty: {imageInfoFields},
		parameterImageInfoLimit:    {maximumLimit},
	})
	if queryErr != nil {
		return nil, queryErr
	}
	for _, title := range titles {
		foundPage, found := set.page(title)
		if !found || len(foundPage.ImageInfo) == 0 {
			continue
		}
		revisions := make([]rewrite.ImageRevision, 0, len(foundPage.ImageInfo))
		for _, info := range foundPage.ImageInfo {
			revisions = append(revisions, rewrite.ImageRevision{
				Timestamp: info.Timestamp,
				Uploader:  info.User,
				Width:     info.Width,
				Height:    info.Height,
				Summary:   info.Comment,
				URL:       info.URL,
			})
		}
		slices.SortStableFunc(revisions, func(left, right rewrite.ImageRevision) int {
			return left.Timestamp.Compare(right.Timestamp)
		})
		revisionsByTitle[title] = revisions
	}
	return revisionsByTitle, nil
}

// PageText returns the current wikitext of title.
func (client Client) PageText(ctx context.Context, title string) (string, error) {
	set, queryErr := client.pagesByTitle(ctx, []string{title}, url.Values{
		parameterProperty:         {propertyRevisions},
		parameterRevisionProperty: {revisionContent},
		parameterRevisionSlots:    {mainSlot},
	})
	if queryErr != nil {
		return "", fmt.Errorf(pageTextErrorFormat, title, queryErr)
	}
	foundPage, found := set.page(title)
	if !found || !foundPage.exists() || len(foundPage.Revisions) == 0 {
		return "", fmt.Errorf(pageTextErrorFormat, title, ErrPageNotFound)
	}
	return foundPage.Revisions[0].Slots[mainSlot].Content, nil
}

// Categories returns the categories of each title, keyed by the requested title.
func (client Client) Categories(ctx context.Context, titles []string) (map[string][]string, error) {
	categoriesByTitle := make(map[string][]string, len(titles))
	if len(titles) == 0 {
		return categoriesByTitle, nil
	}
	set, queryErr := client.pagesByTitle(ctx, titles, url.Values{
		parameterProperty:      {propertyCategories},
		parameterCategoryLimit: {maximumLimit},
	})
	if queryErr != nil {
		return nil, queryErr
	}
	for _, title := range titles {
		categories := []string{}
		if foundPage, found := set.page(title); found {
			for _, category := range foundPage.Categories {
				categories = append(categories, category.Title)
			}
		}
		categoriesByTitle[title] = categories
	}
	return categoriesByTitle, nil
}

// SharedDuplicates returns, per title, the names of identical files hosted on the shared repository.
func (client Client) SharedDuplicates(ctx context.Context, titles []string) (map[string][]string, error) {
	duplicatesByTitle := make(map[string][]string, len(titles))
	if len(titles) == 0 {
		return duplicatesByTitle, nil
	}
	set, queryErr := client.pagesByTitle(ctx, titles, url.Values{
		parameterProperty:       {propertyDuplicateFiles},
		parameterDuplicateLimit: {maximumLimit},
	})
	if queryErr != nil {
		return nil, queryErr
	}
	for _, title := range titles {
		duplicates := []string{}
		if foundPage, found := set.page(title); found {
			for _, duplicate := range foundPage.DuplicateFiles {
				if duplicate.Shared {
					duplicates = append(duplicates, duplicate.Name)
				}
			}
		}
		duplicatesByTitle[title] = duplicates
	}
	return duplicatesByTitle, nil
}

// LinksOnPage returns the titles linked from title.
func (client Client) LinksOnPage(ctx context.Context, title string) ([]string, error) {
	set, queryErr := client.pagesByTitle(ctx, []string{title}, url.Values{
		parameterProperty:  {propertyLinks},
		parameterLinkLimit: {maximumLimit},
	})
	if queryErr != nil {
		return nil, queryErr
	}
	foundPage, found := set.page(title)
	if !found || !foundPage.exists() {
		return nil, fmt.Errorf("links on %s: %w", title, ErrPageNotFound)
	}
	links := make([]string, 0, len(foundPage.Links))
	for _, link := range foundPage.Links {
		links = append(links, link.Title)
	}
	return links, nil
}
