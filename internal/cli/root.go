// Package cli wires up the root cobra command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratusio/stratus-cli/internal/appctx"
	"github.com/stratusio/stratus-cli/internal/commands"
	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "stratus",
		Short:         "Manage Stratus accounts and sessions",
		Long:          "stratus manages authenticated Stratus accounts on this machine: listing, switching, deleting, and login host configuration.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				ClientID: flags.ClientID,
				DataDir:  flags.DataDir,
			})
			if err != nil {
				return err
			}

			app, err := appctx.NewApp(cfg, flags.Verbose)
			if err != nil {
				return err
			}
			app.Flags = flags

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app := appctx.FromContext(cmd.Context()); app != nil {
				return app.Shutdown()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ClientID, "client-id", "", "OAuth client id override")
	cmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "Data directory (accounts, settings, keystore)")
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output")

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()

	cmd.AddCommand(
		commands.NewAccountsCmd(),
		commands.NewHostCmd(),
		commands.NewStatusCmd(),
	)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
