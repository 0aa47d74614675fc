package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratusio/stratus-cli/internal/appctx"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show active account and host",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			fmt.Printf("Login host: %s\n", app.Accounts.LoginHost())

			acct := app.Accounts.CurrentAccount()
			if acct == nil {
				fmt.Println("Active account: none")
				return nil
			}
			fmt.Printf("Active account: %s\n", acct.UserID())
			fmt.Printf("Organization:   %s\n", acct.Credential.OrganizationID)
			if acct.Credential.InstanceURL != "" {
				fmt.Printf("Instance:       %s\n", acct.Credential.InstanceURL)
			}
			if acct.Credential.AccessToken != "" {
				fmt.Println("Session:        token present")
			} else {
				fmt.Println("Session:        no access token")
			}
			return nil
		},
	}
}
