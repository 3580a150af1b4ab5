package transfer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/mtc/internal/ledger"
	"github.com/temirov/mtc/internal/rewrite"
	"github.com/temirov/mtc/internal/services/stream"
	"github.com/temirov/mtc/internal/titles"
	"github.com/temirov/mtc/internal/utils"
)

const (
	// DefaultOwnWorkCategory marks files the uploader created themselves.
	DefaultOwnWorkCategory = "Category:Self-published work"
	defaultConcurrency     = 4

	categoriesErrorFormat = "fetch categories: %w"
	duplicatesErrorFormat = "fetch duplicate files: %w"
	ledgerErrorFormat     = "read ledger: %w"
	titlesErrorFormat     = "resolve destination titles: %w"
	metadataErrorFormat   = "fetch image metadata: %w"
	unresolvedErrorFormat = "generate %s: %w"
	recordWarningFormat   = "%s was generated but not recorded in the ledger: %v"
)

// Site is the source wiki seen by the batch pipeline.
type Site interface {
	rewrite.MetadataProvider
	Categories(ctx context.Context, titles []string) (map[string][]string, error)
	SharedDuplicates(ctx context.Context, titles []string) (map[string][]string, error)
}

// TitleResolver picks destination titles.
type TitleResolver interface {
	Resolve(ctx context.Context, sourceTitles []string) ([]titles.Candidate, error)
}

// Ledger remembers generated titles between runs.
type Ledger interface {
	Seen(ctx context.Context, titles []string) (map[string]bool, error)
	Record(ctx context.Context, entry ledger.Entry) error
}

// Options configures a Service.
type Options struct {
	Concurrency     int
	Blacklist       []string
	Whitelist       []string
	OwnWorkCategory string
}

// Request is one batch of titles.
type Request struct {
	Titles []string
	Force  bool
	RunID  string
}

// Report collects the outcome of a batch, in input order.
type Report struct {
	RunID     string
	Generated []stream.GeneratedEvent
	Skipped   []stream.SkipEvent
	Failures  []stream.FailureEvent
}

// FailedTitles lists the titles that failed.
func (report Report) FailedTitles() []string {
	failedTitles := make([]string, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failedTitles = append(failedTitles, failure.Title)
	}
	return failedTitles
}

// Service runs the batch pipeline: filter, resolve titles, fetch metadata, and generate concurrently.
type Service struct {
	generator *Generator
	site      Site
	titles    TitleResolver
	ledger    Ledger
	options   Options
	logger    *zap.Logger
}

// NewService creates a Service. The ledger may be nil.
func NewService(generator *Generator, site Site, titleResolver TitleResolver, transferLedger Ledger, options Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaultConcurrency
	}
	if options.OwnWorkCategory == "" {
		options.OwnWorkCategory = DefaultOwnWorkCategory
	}
	return &Service{
		generator: generator,
		site:      site,
		titles:    titleResolver,
		ledger:    transferLedger,
		options:   options,
		logger:    logger,
	}
}

// Stream processes request and sends its events to out. Lookup failures,
// including an oracle failure while rewriting a single title, abort the batch
// with an error; other per-title failures are sent as failure events and
// processing continues.
func (service *Service) Stream(ctx context.Context, request Request, out chan<- stream.Event) error {
	if request.RunID == "" {
		request.RunID = ledger.NewRunID()
	}
	emitter := stream.NewEmitter(ctx, out, request.RunID)
	requestedTitles := utils.DeduplicateStrings(utils.NonEmptyTrimmed(request.Titles))
	if err := emitter.Send(stream.Event{Kind: stream.EventKindStart}); err != nil {
		return err
	}
	summary := stream.SummaryEvent{Requested: len(requestedTitles)}

	categories, categoriesErr := service.site.Categories(ctx, requestedTitles)
	if categoriesErr != nil {
		return fmt.Errorf(categoriesErrorFormat, categoriesErr)
	}

	remaining := requestedTitles
	if !request.Force {
		var skipped int
		var filterErr error
		remaining, skipped, filterErr = service.filter(ctx, emitter, remaining, categories)
		if filterErr != nil {
			return filterErr
		}
		summary.Skipped = skipped
	}

	if len(remaining) > 0 {
		generated, failed, generateErr := service.generate(ctx, emitter, request.RunID, remaining, categories)
		if generateErr != nil {
			return generateErr
		}
		summary.Generated = generated
		summary.Failed = failed
	}

	service.logger.Info("batch finished",
		zap.String("run_id", request.RunID),
		zap.Int("requested", summary.Requested),
		zap.Int("generated", summary.Generated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	if err := emitter.Send(stream.Event{Kind: stream.EventKindSummary, Summary: &summary}); err != nil {
		return err
	}
	return emitter.Send(stream.Event{Kind: stream.EventKindDone})
}

// Run processes request and collects its outcome.
func (service *Service) Run(ctx context.Context, request Request) (Report, error) {
	if request.RunID == "" {
		request.RunID = ledger.NewRunID()
	}
	report := Report{RunID: request.RunID}
	dispatchErr := stream.Dispatch(ctx, func(streamCtx context.Context, events chan<- stream.Event) error {
		return service.Stream(streamCtx, request, events)
	}, func(event stream.Event) error {
		switch event.Kind {
		case stream.EventKindGenerated:
			report.Generated = append(report.Generated, *event.Generated)
		case stream.EventKindSkipped:
			report.Skipped = append(report.Skipped, *event.Skipped)
		case stream.EventKindFailure:
			report.Failures = append(report.Failures, *event.Failure)
		}
		return nil
	})
	if dispatchErr != nil {
		return Report{}, dispatchErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Report{}, ctxErr
	}
	requestedTitles := utils.DeduplicateStrings(utils.NonEmptyTrimmed(request.Titles))
	position := make(map[string]int, len(requestedTitles))
	for index, title := range requestedTitles {
		position[title] = index
	}
	slices.SortStableFunc(report.Generated, func(left, right stream.GeneratedEvent) int {
		return position[left.SourceTitle] - position[right.SourceTitle]
	})
	slices.SortStableFunc(report.Failures, func(left, right stream.FailureEvent) int {
		return position[left.Title] - position[right.Title]
	})
	return report, nil
}

// filter drops titles that fail the category check, already exist on the
// shared repository, or were generated by an earlier run.
func (service *Service) filter(ctx context.Context, emitter *stream.Emitter, candidates []string, categories map[string][]string) ([]string, int, error) {
	skipped := 0
	var categoryPassed []string
	for _, title := range candidates {
		if !service.categoryAllowed(categories[title]) {
			skipped++
			if err := emitter.Skipped(title, stream.SkipReasonCategory); err != nil {
				return nil, skipped, err
			}
			continue
		}
		categoryPassed = append(categoryPassed, title)
	}
	if len(categoryPassed) == 0 {
		return nil, skipped, nil
	}

	duplicates, duplicatesErr := service.site.SharedDuplicates(ctx, categoryPassed)
	if duplicatesErr != nil {
		return nil, skipped, fmt.Errorf(duplicatesErrorFormat, duplicatesErr)
	}
	seen := map[string]bool{}
	if service.ledger != nil {
		var seenErr error
		seen, seenErr = service.ledger.Seen(ctx, categoryPassed)
		if seenErr != nil {
			return nil, skipped, fmt.Errorf(ledgerErrorFormat, seenErr)
		}
	}

	var remaining []string
	for _, title := range categoryPassed {
		reason := stream.SkipReason("")
		switch {
		case len(duplicates[title]) > 0:
			reason = stream.SkipReasonDuplicate
		case seen[title]:
			reason = stream.SkipReasonLedger
		}
		if reason == "" {
			remaining = append(remaining, title)
			continue
		}
		skipped++
		if err := emitter.Skipped(title, reason); err != nil {
			return nil, skipped, err
		}
	}
	return remaining, skipped, nil
}

// categoryAllowed requires no blacklisted category and, when a whitelist is
// configured, at least one whitelisted category.
func (service *Service) categoryAllowed(categories []string) bool {
	for _, category := range categories {
		if utils.ContainsString(service.options.Blacklist, category) {
			return false
		}
	}
	if len(service.options.Whitelist) == 0 {
		return true
	}
	for _, category := range categories {
		if utils.ContainsString(service.options.Whitelist, category) {
			return true
		}
	}
	return false
}

// generate resolves destination titles and metadata for the whole batch and
// then generates every description concurrently. An unavailable oracle on any
// title aborts the batch.
func (service *Service) generate(ctx context.Context, emitter *stream.Emitter, runID string, sourceTitles []string, categories map[string][]string) (int, int, error) {
	candidates, resolveErr := service.titles.Resolve(ctx, sourceTitles)
	if resolveErr != nil {
		return 0, 0, fmt.Errorf(titlesErrorFormat, resolveErr)
	}
	destinations := titles.Destinations(candidates)
	revisions, metadataErr := service.site.ImageRevisions(ctx, sourceTitles)
	if metadataErr != nil {
		return 0, 0, fmt.Errorf(metadataErrorFormat, metadataErr)
	}

	var countersMutex sync.Mutex
	generated, failed := 0, 0
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(service.options.Concurrency)
	for _, sourceTitle := range sourceTitles {
		group.Go(func() error {
			description, titleErr := service.generateOne(groupCtx, emitter, runID, sourceTitle, destinations[sourceTitle], categories[sourceTitle], revisions[sourceTitle])
			countersMutex.Lock()
			if titleErr != nil {
				failed++
			} else {
				generated++
			}
			countersMutex.Unlock()
			if errors.Is(titleErr, ErrOracleUnavailable) {
				return titleErr
			}
			if titleErr != nil {
				service.logger.Warn("title failed", zap.String("title", sourceTitle), zap.Error(titleErr))
				return emitter.Failure(sourceTitle, titleErr)
			}
			return emitter.Generated(stream.GeneratedEvent{
				SourceTitle:      sourceTitle,
				DestinationTitle: destinations[sourceTitle],
				Description:      description,
			})
		})
	}
	if waitErr := group.Wait(); waitErr != nil {
		return generated, failed, waitErr
	}
	return generated, failed, nil
}

func (service *Service) generateOne(ctx context.Context, emitter *stream.Emitter, runID string, sourceTitle string, destinationTitle string, categories []string, revisions []rewrite.ImageRevision) (string, error) {
	if destinationTitle == "" {
		return "", fmt.Errorf(unresolvedErrorFormat, sourceTitle, ErrUnresolvedTitle)
	}
	isOwnWork := utils.ContainsString(categories, service.options.OwnWorkCategory)
	description, generateErr := service.generator.Generate(ctx, sourceTitle, isOwnWork, revisions)
	if generateErr != nil {
		return "", generateErr
	}
	if service.ledger != nil {
		recordErr := service.ledger.Record(ctx, ledger.Entry{
			SourceTitle:      sourceTitle,
			DestinationTitle: destinationTitle,
			RunID:            runID,
			Description:      description,
		})
		if recordErr != nil && !errors.Is(recordErr, context.Canceled) {
			service.logger.Warn("could not record transfer", zap.String("title", sourceTitle), zap.Error(recordErr))
			if warnErr := emitter.Warn(sourceTitle, fmt.Sprintf(recordWarningFormat, sourceTitle, recordErr)); warnErr != nil {
				return "", warnErr
			}
		}
	}
	return description, nil
}
