package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/temirov/mtc/internal/config"
	"github.com/temirov/mtc/internal/services/api"
	"github.com/temirov/mtc/internal/utils"
)

const (
	serveUse              = "serve"
	serveShortDescription = "serve the generation API over HTTP"
	serveLongDescription  = `Serve POST /generate, GET /healthz, and GET /version.
POST /generate accepts {"titles": [...], "force": false} and returns the
generated descriptions and the titles that failed.`
	addressFlagName        = "address"
	addressFlagDescription = "listen address"
	defaultServeAddress    = "127.0.0.1:8080"
	listeningMessageFormat = "mtc api listening on http://%s\n"
)

func (app *application) newServeCommand() *cobra.Command {
	var address string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, loadErr := app.loadConfiguration()
			if loadErr != nil {
				return loadErr
			}
			if command.Flags().Changed(addressFlagName) || configuration.Server.Address == "" {
				configuration.Server.Address = address
			}
			ctx := command.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.runServe(signalCtx, configuration, nil)
		},
	}
	serveCommand.Flags().StringVar(&address, addressFlagName, defaultServeAddress, addressFlagDescription)
	return serveCommand
}

// runServe blocks until ctx is done. notify receives the bound address.
func (app *application) runServe(ctx context.Context, configuration config.ApplicationConfiguration, notify func(string)) error {
	logger, loggerErr := app.newLogger()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	wired, buildErr := buildPipeline(ctx, configuration, logger)
	if buildErr != nil {
		return buildErr
	}
	defer wired.Close()

	server := api.NewServer(api.Config{
		Address:   configuration.Server.Address,
		Version:   utils.GetApplicationVersion(),
		MaxTitles: config.IntOrDefault(configuration.Server.MaxTitles, 0),
	}, wired.service, logger.Named("api"))
	return server.Run(ctx, func(boundAddress string) {
		fmt.Fprintf(app.stderr, listeningMessageFormat, boundAddress)
		if notify != nil {
			notify(boundAddress)
		}
	})
}
