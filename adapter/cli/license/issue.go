package license

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

var (
	issueTier      string
	issuePurchaser string
	issueNote      string
	issueExpires   string
	issueCount     int
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Generate new license keys",
	Long: `Generate inactive license keys for a tier.

Examples:
  premium license issue --tier monthly
  premium license issue --tier lifetime --purchaser 1234 --note "giveaway"
  premium license issue --tier yearly --count 5 --expires 2027-01-01`,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVarP(&issueTier, "tier", "t", "", "tier (monthly, yearly, lifetime)")
	issueCmd.Flags().StringVar(&issuePurchaser, "purchaser", "", "purchaser user id")
	issueCmd.Flags().StringVar(&issueNote, "note", "", "free-form note stored on the license")
	issueCmd.Flags().StringVar(&issueExpires, "expires", "", "preset expiry (YYYY-MM-DD or RFC 3339)")
	issueCmd.Flags().IntVarP(&issueCount, "count", "n", 1, "number of keys to generate")
	_ = issueCmd.MarkFlagRequired("tier")
	Cmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	app, err := cli.RequireLicensing()
	if err != nil {
		return err
	}

	tier, err := domain.ParseTier(strings.ToLower(strings.TrimSpace(issueTier)))
	if err != nil {
		return failure(err)
	}
	expiresAt, err := parseExpiry(issueExpires)
	if err != nil {
		return err
	}
	if issueCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	issued := make([]*licensingApp.IssuedLicense, 0, issueCount)
	for range issueCount {
		l, err := app.Licensing.IssueLicense(cmd.Context(), licensingApp.IssueRequest{
			Tier:        tier,
			PurchaserID: issuePurchaser,
			Note:        issueNote,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return failure(err)
		}
		issued = append(issued, l)
	}

	if cli.JSONOutput() {
		return cli.PrintJSON(cmd.OutOrStdout(), issued)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Issued %d %s key(s):\n", len(issued), issued[0].TierName)
	for _, l := range issued {
		fmt.Fprintf(out, "  %s\n", l.Key)
	}
	if expiresAt != nil {
		fmt.Fprintf(out, "Redeem by: %s\n", formatDate(expiresAt))
	}
	return nil
}
