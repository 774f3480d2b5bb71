package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database, cache and broker connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Health == nil {
			return ErrNotInitialized
		}

		health := app.Health.GetOverallHealth(cmd.Context())
		if JSONOutput() {
			if err := PrintJSON(cmd.OutOrStdout(), health); err != nil {
				return err
			}
		} else {
			for _, name := range app.Health.Components() {
				result, ok := health.Checks[name]
				if !ok {
					continue
				}
				line := fmt.Sprintf("%-10s %s", name, result.Status)
				if result.Message != "" {
					line += " (" + result.Message + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "overall    %s\n", health.Status)
		}

		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
