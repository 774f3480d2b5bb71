package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List the premium tiers and what they unlock",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireLicensing()
		if err != nil {
			return err
		}

		plans := app.Licensing.Catalog().Plans()
		if JSONOutput() {
			return PrintJSON(cmd.OutOrStdout(), plans)
		}

		out := cmd.OutOrStdout()
		for _, p := range plans {
			duration := "never expires"
			if p.Expiring() {
				duration = fmt.Sprintf("%d days", p.DurationDays)
			}
			fmt.Fprintf(out, "%s (%s): %s %.2f, %s\n", p.Name, p.Tier, p.Currency, float64(p.PriceCents)/100, duration)
			fmt.Fprintf(out, "  %s\n", strings.Join(p.Features.Strings(), ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}
