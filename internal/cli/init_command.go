package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/mtc/internal/config"
)

const (
	initUse                  = "init"
	initShortDescription     = "write a default configuration file"
	initLongDescription      = "Write config.yaml with every setting at its default, in the working directory or with --global under ~/.mtc."
	globalFlagName           = "global"
	globalFlagDescription    = "write the global configuration instead of the local one"
	overwriteFlagDescription = "overwrite an existing configuration file"
	initSuccessFormat        = "configuration written to %s\n"
)

func (app *application) newInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, err := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: app.workingDirectory,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(app.stdout, initSuccessFormat, path)
			return err
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, overwriteFlagDescription)
	return initCommand
}
