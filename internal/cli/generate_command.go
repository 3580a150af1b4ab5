package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/config"
	"github.com/temirov/mtc/internal/output"
	"github.com/temirov/mtc/internal/services/api"
	"github.com/temirov/mtc/internal/services/stream"
	"github.com/temirov/mtc/internal/transfer"
)

const (
	generateUse              = "generate <file|category|template|user>..."
	generateAlias            = "g"
	generateShortDescription = "generate destination descriptions (" + generateAlias + ")"
	generateLongDescription  = `Generate destination descriptions for files on the source wiki.
Each argument is a file title, a category (its files), a template (the files
that transclude it), or a username (that user's uploads).
Unless --force is given, files outside the configured categories, files that
already have a duplicate on the shared repository, and files generated by an
earlier run are skipped.
Use --format to select raw, json, or yaml output and --api to delegate
generation to a running mtc server.`
	generateUsageExample = `  # Print the description of one file
  mtc generate "File:Example.jpg"

  # Generate every upload of a user as JSON, ignoring filters
  mtc generate --force --format json ExampleUser

  # Delegate to a remote server
  mtc generate --api http://localhost:8080 "Category:Images to move"`

	forceFlagName          = "force"
	formatFlagName         = "format"
	apiFlagName            = "api"
	ledgerFlagName         = "ledger"
	concurrencyFlagName    = "concurrency"
	sourceFlagName         = "source"
	destinationFlagName    = "destination"
	forceFlagDescription   = "skip category, duplicate, and ledger filters"
	formatFlagDescription  = "output format: raw, json, or yaml"
	apiFlagDescription     = "URL of an mtc server to generate on"
	ledgerFlagDescription  = "record generated titles and skip ones already recorded"
	concurrencyDescription = "number of files generated in parallel"
	sourceFlagDescription  = "Action API endpoint of the source wiki"
	destinationDescription = "Action API endpoint of the destination wiki"

	expandInputsErrorFormat = "expand inputs: %w"
	noFilesFoundMessage     = "no files found for the given inputs"
)

var errNoFiles = errors.New(noFilesFoundMessage)

// generateOptions holds flag values; they override configuration only when set.
type generateOptions struct {
	force               bool
	format              string
	apiEndpoint         string
	ledgerEnabled       bool
	concurrency         int
	sourceEndpoint      string
	destinationEndpoint string
}

// batchStreamer produces the events of one batch, locally or remotely.
type batchStreamer interface {
	Stream(ctx context.Context, request transfer.Request, out chan<- stream.Event) error
}

func (app *application) newGenerateCommand() *cobra.Command {
	var options generateOptions

	generateCommand := &cobra.Command{
		Use:     generateUse,
		Aliases: []string{generateAlias},
		Short:   generateShortDescription,
		Long:    generateLongDescription,
		Example: generateUsageExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, loadErr := app.loadConfiguration()
			if loadErr != nil {
				return loadErr
			}
			configuration = options.apply(command, configuration)
			return app.runGenerate(command.Context(), arguments, options.force, configuration)
		},
	}

	flags := generateCommand.Flags()
	registerBooleanFlag(flags, &options.force, forceFlagName, false, forceFlagDescription)
	registerBooleanFlag(flags, &options.ledgerEnabled, ledgerFlagName, true, ledgerFlagDescription)
	flags.StringVar(&options.format, formatFlagName, output.FormatRaw, formatFlagDescription)
	flags.StringVar(&options.apiEndpoint, apiFlagName, "", apiFlagDescription)
	flags.IntVar(&options.concurrency, concurrencyFlagName, 0, concurrencyDescription)
	flags.StringVar(&options.sourceEndpoint, sourceFlagName, "", sourceFlagDescription)
	flags.StringVar(&options.destinationEndpoint, destinationFlagName, "", destinationDescription)
	return generateCommand
}

// apply overlays the flags the user set explicitly onto configuration.
func (options generateOptions) apply(command *cobra.Command, configuration config.ApplicationConfiguration) config.ApplicationConfiguration {
	flags := command.Flags()
	if flags.Changed(formatFlagName) {
		configuration.Transfer.Format = options.format
	}
	if flags.Changed(apiFlagName) {
		configuration.Transfer.APIEndpoint = options.apiEndpoint
	}
	if flags.Changed(ledgerFlagName) {
		enabled := options.ledgerEnabled
		configuration.Ledger.Enabled = &enabled
	}
	if flags.Changed(concurrencyFlagName) {
		concurrency := options.concurrency
		configuration.Transfer.Concurrency = &concurrency
	}
	if flags.Changed(sourceFlagName) {
		configuration.Source.Endpoint = options.sourceEndpoint
	}
	if flags.Changed(destinationFlagName) {
		configuration.Destination.Endpoint = options.destinationEndpoint
	}
	return configuration
}

func (app *application) runGenerate(ctx context.Context, inputs []string, force bool, configuration config.ApplicationConfiguration) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	renderer, rendererErr := output.NewStreamRenderer(configuration.Transfer.Format, app.stdout, app.stderr)
	if rendererErr != nil {
		return rendererErr
	}
	logger, loggerErr := app.newLogger()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	source := newSourceClient(configuration, logger)
	sourceTitles, expandErr := source.ExpandInputs(ctx, inputs)
	if expandErr != nil {
		return fmt.Errorf(expandInputsErrorFormat, expandErr)
	}
	if len(sourceTitles) == 0 {
		return errNoFiles
	}

	var streamer batchStreamer
	if apiEndpoint := strings.TrimSpace(configuration.Transfer.APIEndpoint); apiEndpoint != "" {
		logger.Debug("delegating to remote server", zap.String("api", apiEndpoint))
		streamer = api.NewClient(nil, apiEndpoint).WithLogger(logger.Named("api"))
	} else {
		wired, buildErr := buildPipeline(ctx, configuration, logger)
		if buildErr != nil {
			return buildErr
		}
		defer func() {
			if closeErr := wired.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		streamer = wired.service
	}

	defer func() {
		if flushErr := renderer.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
	}()

	request := transfer.Request{Titles: sourceTitles, Force: force}
	return stream.Dispatch(ctx, func(streamCtx context.Context, events chan<- stream.Event) error {
		return streamer.Stream(streamCtx, request, events)
	}, renderer.Handle)
}
