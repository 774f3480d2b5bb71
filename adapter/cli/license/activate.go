package license

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
)

var activateRequester string

// activateCmd binds a license key to a tenant.
var activateCmd = &cobra.Command{
	Use:   "activate <tenant-id> <license-key>",
	Short: "Activate a license key for a tenant",
	Long: `Activate a license key for a tenant on behalf of its owner.

The requester must own the tenant. Keys are case-insensitive.

Example:
  premium license activate 81234567890 LYCE-MON-ABCD-EFGH --requester 11223344`,
	Args: cobra.ExactArgs(2),
	RunE: runActivate,
}

func init() {
	activateCmd.Flags().StringVarP(&activateRequester, "requester", "r", "", "user id of the requesting owner")
	_ = activateCmd.MarkFlagRequired("requester")
	Cmd.AddCommand(activateCmd)
}

func runActivate(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	activation, err := app.Licensing.Activate(cmd.Context(), licensingApp.ActivateRequest{
		TenantID:    args[0],
		Key:         args[1],
		RequesterID: activateRequester,
	})
	if err != nil {
		return failure(err)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), activation.View)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Premium activated!")
	fmt.Fprintln(cmd.OutOrStdout())
	printView(cmd.OutOrStdout(), activation.View)
	return nil
}
