package license

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// errNotEntitled makes the command exit non-zero so scripts can branch on it.
var errNotEntitled = errors.New("not entitled")

var featureCmd = &cobra.Command{
	Use:   "feature <tenant-id> <feature>",
	Short: "Check whether a tenant may use a premium feature",
	Long: `Check whether a tenant may use a premium feature. Exits non-zero when
the tenant is not entitled.

Example:
  premium license feature 81234567890 web_dashboard_access`,
	Args: cobra.ExactArgs(2),
	RunE: runFeature,
}

func init() {
	Cmd.AddCommand(featureCmd)
}

func runFeature(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	feature, err := domain.ParseFeature(args[1])
	if err != nil {
		return failure(err)
	}

	allowed := app.Licensing.Gate().Allow(cmd.Context(), args[0], feature)
	if cli.JSONOutput() {
		if err := cli.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"tenant_id": args[0],
			"feature":   feature,
			"allowed":   allowed,
		}); err != nil {
			return err
		}
	} else if allowed {
		fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s has %s.\n", args[0], feature)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s does not have %s.\n", args[0], feature)
	}

	if !allowed {
		return errNotEntitled
	}
	return nil
}
