package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratusio/stratus-cli/internal/appctx"
)

// NewHostCmd creates the host command group.
func NewHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Manage the login host",
		Long:  "Show, set and reconcile the backend login host used to begin authentication.",
	}

	cmd.AddCommand(
		newHostGetCmd(),
		newHostSetCmd(),
		newHostUpdateCmd(),
	)

	return cmd
}

func newHostGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the active login host",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			fmt.Println(app.Accounts.LoginHost())
			return nil
		},
	}
}

func newHostSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <host>",
		Short: "Set the active login host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			if err := app.Accounts.SetLoginHost(args[0]); err != nil {
				return err
			}
			fmt.Printf("Login host: %s\n", app.Accounts.LoginHost())
			return nil
		},
	}
}

func newHostUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Adopt the app-settings login host if it changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			result, err := app.Accounts.UpdateLoginHost()
			if err != nil {
				return err
			}
			if result.Changed {
				fmt.Printf("Login host changed: %s -> %s\n", result.Original, result.Updated)
			} else {
				fmt.Printf("Login host unchanged: %s\n", result.Original)
			}
			return nil
		},
	}
}
