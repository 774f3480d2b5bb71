package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Revoke every entitlement whose expiry has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireLicensing()
		if err != nil {
			return err
		}

		revoked, err := app.Licensing.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		if JSONOutput() {
			return PrintJSON(cmd.OutOrStdout(), map[string]int{"revoked": revoked})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d expired entitlement(s).\n", revoked)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
