package license

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	"github.com/lycebot/premium/internal/licensing/domain"
)

var (
	listStatus    string
	listTenant    string
	listPurchaser string
	listLimit     int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List licenses",
	Long: `List licenses, newest first.

Examples:
  premium license list --status inactive
  premium license list --tenant 81234567890`,
	RunE: runList,
}

// infoCmd shows one license by key.
var infoCmd = &cobra.Command{
	Use:   "info <license-key>",
	Short: "Show a license",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (inactive, active, revoked, expired)")
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "filter by tenant id")
	listCmd.Flags().StringVar(&listPurchaser, "purchaser", "", "filter by purchaser id")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of licenses")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(infoCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	filter := domain.LicenseFilter{
		TenantID:    listTenant,
		PurchaserID: listPurchaser,
		Limit:       listLimit,
	}
	if listStatus != "" {
		status, err := domain.ParseLicenseStatus(listStatus)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	licenses, err := app.Licensing.ListLicenses(cmd.Context(), filter)
	if err != nil {
		return failure(err)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), licenses)
	}
	if len(licenses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No licenses found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTIER\tSTATUS\tTENANT\tEXPIRES")
	for _, l := range licenses {
		tenant := l.TenantID
		if tenant == "" {
			tenant = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Key, l.Tier, l.Status, tenant, formatDate(l.ExpiresAt))
	}
	return w.Flush()
}

func runInfo(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	license, err := app.Licensing.LicenseInfo(cmd.Context(), args[0])
	if err != nil {
		if tier, ok := domain.ParseKeyTier(args[0]); ok && errors.Is(err, domain.ErrLicenseNotFound) {
			return fmt.Errorf("%w (the key is tagged %s)", failure(err), tier)
		}
		return failure(err)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), license)
	}
	printLicense(cmd.OutOrStdout(), license)
	return nil
}
