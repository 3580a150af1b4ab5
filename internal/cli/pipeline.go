package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/assemble"
	"github.com/temirov/mtc/internal/config"
	"github.com/temirov/mtc/internal/ledger"
	"github.com/temirov/mtc/internal/mediawiki"
	"github.com/temirov/mtc/internal/rewrite"
	"github.com/temirov/mtc/internal/titles"
	"github.com/temirov/mtc/internal/transfer"
	"github.com/temirov/mtc/internal/utils"
)

const (
	filterPageErrorFormat  = "load category list from %s: %w"
	openLedgerErrorFormat  = "open ledger: %w"
	ledgerPathErrorMessage = "resolve ledger path: home directory is unknown"
)

// pipeline is the wired set of collaborators behind local generation.
type pipeline struct {
	source  mediawiki.Client
	service *transfer.Service
	ledger  *ledger.Ledger
}

func newWikiClient(wiki config.WikiConfiguration, defaultEndpoint string, logger *zap.Logger) mediawiki.Client {
	endpoint := wiki.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return mediawiki.NewClient(nil, endpoint).
		WithUserAgent(wiki.UserAgent).
		WithTimeout(wiki.Timeout).
		WithBatchSize(config.IntOrDefault(wiki.BatchSize, 0)).
		WithLogger(logger)
}

// newSourceClient returns the client for the wiki the files come from.
func newSourceClient(configuration config.ApplicationConfiguration, logger *zap.Logger) mediawiki.Client {
	return newWikiClient(configuration.Source, mediawiki.DefaultSourceEndpoint, logger.Named("source"))
}

// buildPipeline wires the source and destination wikis, the rewrite engine,
// the title deduplicator, and the ledger into a transfer service. Templates
// are resolved against the source wiki and checked for existence on the
// destination; destination titles are deduplicated on the destination.
func buildPipeline(ctx context.Context, configuration config.ApplicationConfiguration, logger *zap.Logger) (*pipeline, error) {
	source := newSourceClient(configuration, logger)
	destination := newWikiClient(configuration.Destination, mediawiki.DefaultDestinationEndpoint, logger.Named("destination"))
	transferConfiguration := configuration.Transfer

	blacklist, blacklistErr := loadCategoryList(ctx, source, transferConfiguration.BlacklistPage, transferConfiguration.Blacklist)
	if blacklistErr != nil {
		return nil, blacklistErr
	}
	whitelist, whitelistErr := loadCategoryList(ctx, source, transferConfiguration.WhitelistPage, transferConfiguration.Whitelist)
	if whitelistErr != nil {
		return nil, whitelistErr
	}

	var transferLedger *ledger.Ledger
	if configuration.Ledger.IsEnabled() {
		ledgerPath := configuration.Ledger.Path
		if ledgerPath == "" {
			ledgerPath = config.GlobalPath(utils.LedgerFileName)
			if ledgerPath == "" {
				return nil, errors.New(ledgerPathErrorMessage)
			}
		}
		openedLedger, openErr := ledger.Open(ledgerPath, logger.Named("ledger"))
		if openErr != nil {
			return nil, fmt.Errorf(openLedgerErrorFormat, openErr)
		}
		transferLedger = openedLedger
	}

	engine := rewrite.NewEngine(destination, source, rewrite.Options{
		ExcludedTemplates:   transferConfiguration.ExcludedTemplates,
		AttributionProject:  transferConfiguration.AttributionProject,
		AttributionLanguage: transferConfiguration.AttributionLanguage,
	}, logger.Named("rewrite"))
	assembler := assemble.NewAssembler(assemble.Options{
		InterwikiPrefix: transferConfiguration.InterwikiPrefix,
		SourceSite:      transferConfiguration.SourceSite,
	})
	generator := transfer.NewGenerator(source, engine, assembler, logger.Named("generator"))
	deduplicator := titles.NewDeduplicator(destination, nil, logger.Named("titles"))

	options := transfer.Options{
		Concurrency:     config.IntOrDefault(transferConfiguration.Concurrency, 0),
		Blacklist:       blacklist,
		Whitelist:       whitelist,
		OwnWorkCategory: transferConfiguration.OwnWorkCategory,
	}
	var serviceLedger transfer.Ledger
	if transferLedger != nil {
		serviceLedger = transferLedger
	}
	service := transfer.NewService(generator, source, deduplicator, serviceLedger, options, logger.Named("transfer"))
	return &pipeline{
		source:  source,
		service: service,
		ledger:  transferLedger,
	}, nil
}

// Close releases the ledger when one was opened.
func (wired *pipeline) Close() error {
	if wired == nil || wired.ledger == nil {
		return nil
	}
	return wired.ledger.Close()
}

// linkLister reads the links on a wiki page.
type linkLister interface {
	LinksOnPage(ctx context.Context, title string) ([]string, error)
}

// loadCategoryList combines configured categories with the ones linked from
// pageTitle. A missing page contributes nothing.
func loadCategoryList(ctx context.Context, lister linkLister, pageTitle string, configured []string) ([]string, error) {
	categories := append([]string{}, configured...)
	if pageTitle == "" {
		return utils.DeduplicateStrings(categories), nil
	}
	links, linksErr := lister.LinksOnPage(ctx, pageTitle)
	switch {
	case errors.Is(linksErr, mediawiki.ErrPageNotFound):
	case linksErr != nil:
		return nil, fmt.Errorf(filterPageErrorFormat, pageTitle, linksErr)
	default:
		categories = append(categories, links...)
	}
	return utils.DeduplicateStrings(utils.NonEmptyTrimmed(categories)), nil
}
