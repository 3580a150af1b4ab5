// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/config"
	"github.com/temirov/mtc/internal/utils"
)

const (
	versionFlagName      = "version"
	configFlagName       = "config"
	debugFlagName        = "debug"
	versionTemplate      = "mtc version: %s\n"
	rootUse              = "mtc"
	rootShortDescription = "transfer media descriptions between wikis"
	rootLongDescription  = `mtc rewrites the description page of a file hosted on a local wiki into
a description suitable for the shared media repository.
It drops templates the repository does not know, rewrites license and
authorship templates, renders the upload history, and picks a free
destination title.`

	versionFlagDescription = "display application version"
	configFlagDescription  = "configuration file (defaults to ./config.yaml)"
	debugFlagDescription   = "enable debug logging"

	loadConfigurationErrorFormat = "load configuration: %w"
	createLoggerErrorFormat      = "create logger: %w"
)

// errVersionPrinted stops command execution after --version without reporting a failure.
var errVersionPrinted = errors.New("version printed")

// application carries the process-level state shared by subcommands.
type application struct {
	stdout           io.Writer
	stderr           io.Writer
	workingDirectory string
	configPath       string
	debug            bool
	showVersion      bool
}

// Execute runs the mtc application.
func Execute() error {
	rootCommand := newRootCommand(os.Stdout, os.Stderr, "")
	return execute(context.Background(), rootCommand, os.Args[1:])
}

func execute(ctx context.Context, rootCommand *cobra.Command, arguments []string) error {
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, arguments))
	if err := rootCommand.ExecuteContext(ctx); err != nil && !errors.Is(err, errVersionPrinted) {
		return err
	}
	return nil
}

// newRootCommand builds the root Cobra command. An empty workingDirectory uses
// the process working directory.
func newRootCommand(stdout, stderr io.Writer, workingDirectory string) *cobra.Command {
	app := &application{stdout: stdout, stderr: stderr, workingDirectory: workingDirectory}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if app.showVersion {
				return app.printVersion()
			}
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if app.showVersion && command.HasParent() {
				return app.printVersion()
			}
			return nil
		},
	}
	rootCommand.SetOut(stdout)
	rootCommand.SetErr(stderr)
	registerBooleanFlag(rootCommand.PersistentFlags(), &app.showVersion, versionFlagName, false, versionFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &app.debug, debugFlagName, false, debugFlagDescription)
	rootCommand.PersistentFlags().StringVar(&app.configPath, configFlagName, "", configFlagDescription)
	rootCommand.AddCommand(
		app.newGenerateCommand(),
		app.newServeCommand(),
		app.newInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func (app *application) printVersion() error {
	_, err := fmt.Fprintf(app.stdout, versionTemplate, utils.GetApplicationVersion())
	if err != nil {
		return err
	}
	return errVersionPrinted
}

func (app *application) loadConfiguration() (config.ApplicationConfiguration, error) {
	configuration, err := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: app.workingDirectory,
		ExplicitFilePath: app.configPath,
	})
	if err != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(loadConfigurationErrorFormat, err)
	}
	return configuration, nil
}

func (app *application) newLogger() (*zap.Logger, error) {
	logger, err := utils.NewApplicationLogger(app.debug)
	if err != nil {
		return nil, fmt.Errorf(createLoggerErrorFormat, err)
	}
	return logger, nil
}
