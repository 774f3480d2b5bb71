package license

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
)

var revokeForce bool

// revokeCmd ends a tenant's premium.
var revokeCmd = &cobra.Command{
	Use:   "revoke <tenant-id>",
	Short: "Revoke a tenant's premium",
	Long: `Revoke the tenant's entitlement and its active license.

The tenant drops to the free tier immediately. Revoking a tenant that is
not premium is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevoke,
}

// revokeKeyCmd ends a single license, bound or not.
var revokeKeyCmd = &cobra.Command{
	Use:   "revoke-key <license-key>",
	Short: "Revoke a license key",
	Long: `Revoke a license key. An unused key can no longer be activated; an
active key also ends its tenant's premium.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevokeKey,
}

func init() {
	revokeCmd.Flags().BoolVarP(&revokeForce, "force", "f", false, "Skip confirmation prompt")
	Cmd.AddCommand(revokeCmd)
	Cmd.AddCommand(revokeKeyCmd)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}
	tenantID := args[0]

	if !revokeForce {
		fmt.Fprintf(cmd.OutOrStdout(), "This will end premium for tenant %s.\n", tenantID)
		fmt.Fprint(cmd.OutOrStdout(), "Continue? [y/N]: ")

		var response string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil || (response != "y" && response != "Y") {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	rev, err := app.Licensing.Revoke(cmd.Context(), tenantID)
	if err != nil {
		return failure(err)
	}
	return reportRevocation(cmd, rev)
}

func runRevokeKey(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	rev, err := app.Licensing.RevokeKey(cmd.Context(), args[0])
	if err != nil {
		return failure(err)
	}
	return reportRevocation(cmd, rev)
}

func reportRevocation(cmd *cobra.Command, rev *licensingApp.Revocation) error {
	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), rev)
	}
	printRevocation(cmd.OutOrStdout(), rev)
	return nil
}
