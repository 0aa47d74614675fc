// Package commands implements the CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratusio/stratus-cli/internal/appctx"
)

// NewAccountsCmd creates the accounts command group.
func NewAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored accounts",
		Long:  "List, switch and delete the authenticated accounts stored on this machine.",
	}

	cmd.AddCommand(
		newAccountsListCmd(),
		newAccountsSwitchCmd(),
		newAccountsDeleteCmd(),
	)

	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			accounts := app.Accounts.AllUserAccounts()
			if len(accounts) == 0 {
				fmt.Println("No accounts stored.")
				return nil
			}

			current := app.Accounts.CurrentAccount()
			for _, acct := range accounts {
				marker := " "
				if current != nil && current.Identifier == acct.Identifier {
					marker = "*"
				}
				fmt.Printf("%s %s  org=%s  domain=%s\n",
					marker, acct.UserID(), acct.Credential.OrganizationID, acct.Credential.Domain)
			}
			return nil
		},
	}
}

func newAccountsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <user-id>",
		Short: "Switch the active account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			acct := app.Accounts.Account(args[0])
			if acct == nil {
				return fmt.Errorf("no account for user id %q", args[0])
			}
			if err := app.Accounts.SetCurrentAccount(acct); err != nil {
				return err
			}
			fmt.Printf("Active account: %s\n", acct.UserID())
			return nil
		},
	}
}

func newAccountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a stored account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if err := app.Accounts.DeleteAccount(args[0]); err != nil {
				return err
			}
			if err := app.Accounts.SaveAccounts(); err != nil {
				return err
			}
			fmt.Printf("Deleted account %s\n", args[0])
			return nil
		},
	}
}
