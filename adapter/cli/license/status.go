package license

import (
	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
)

// statusCmd shows a tenant's premium status.
var statusCmd = &cobra.Command{
	Use:   "status <tenant-id>",
	Short: "Show a tenant's premium status",
	Long: `Display the tenant's current tier, expiry and enabled features.
Tenants without a live entitlement are reported as free tier.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	Cmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	view, err := app.Licensing.GetStatus(cmd.Context(), args[0])
	if err != nil {
		return failure(err)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), view)
	}
	printView(cmd.OutOrStdout(), view)
	return nil
}
