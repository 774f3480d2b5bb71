package billing

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
	billingApp "github.com/lycebot/premium/internal/billing/application"
	"github.com/lycebot/premium/internal/billing/domain"
	licensing "github.com/lycebot/premium/internal/licensing/domain"
)

var (
	purchaseProvider  string
	purchasePaymentID string
	purchaseTenant    string
	purchaser         string
	purchaseTier      string
	purchaseAmount    int64
	purchaseCurrency  string
	cancelProvider    string
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Fulfil a completed payment",
	Long: `Issue a license for a completed payment and, when --tenant is given,
activate it there. Re-running with the same provider and payment id does
not issue a second key.

Examples:
  premium billing purchase --provider stripe --payment-id pi_123 --purchaser 1122 --tier monthly
  premium billing purchase --provider paypal --payment-id 9XY --purchaser 1122 --tier lifetime --tenant 8123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requirePurchases()
		if err != nil {
			return err
		}

		res, err := app.Purchases.HandlePurchase(cmd.Context(), domain.PurchaseCompleted{
			Provider:    purchaseProvider,
			PaymentID:   purchasePaymentID,
			TenantID:    purchaseTenant,
			PurchaserID: purchaser,
			Tier:        licensing.Tier(strings.ToLower(purchaseTier)),
			AmountCents: purchaseAmount,
			Currency:    purchaseCurrency,
		})
		if err != nil {
			return err
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), res)
		}
		printPurchase(cmd.OutOrStdout(), res)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <license-key>",
	Short: "Revoke the license behind a canceled subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requirePurchases()
		if err != nil {
			return err
		}

		err = app.Purchases.HandleSubscriptionCanceled(cmd.Context(), domain.SubscriptionCanceled{
			Provider:   cancelProvider,
			LicenseKey: args[0],
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Subscription canceled: %s\n", licensing.MaskKey(args[0]))
		return nil
	},
}

func init() {
	purchaseCmd.Flags().StringVar(&purchaseProvider, "provider", "", "payment provider")
	purchaseCmd.Flags().StringVar(&purchasePaymentID, "payment-id", "", "provider payment id")
	purchaseCmd.Flags().StringVar(&purchaseTenant, "tenant", "", "tenant to activate the license for")
	purchaseCmd.Flags().StringVar(&purchaser, "purchaser", "", "purchaser user id")
	purchaseCmd.Flags().StringVar(&purchaseTier, "tier", "", "tier (monthly, yearly, lifetime)")
	purchaseCmd.Flags().Int64Var(&purchaseAmount, "amount", 0, "amount paid in cents")
	purchaseCmd.Flags().StringVar(&purchaseCurrency, "currency", "USD", "currency of the amount")

	cancelCmd.Flags().StringVar(&cancelProvider, "provider", "", "payment provider")
}

func printPurchase(w io.Writer, res *billingApp.PurchaseResult) {
	if res.Duplicate {
		fmt.Fprintln(w, "Payment already fulfilled; no new key issued.")
		return
	}
	fmt.Fprintf(w, "Issued %s: %s\n", res.License.TierName, res.License.Key)
	switch {
	case res.Activated:
		fmt.Fprintf(w, "Activated for tenant %s.\n", res.Payment.TenantID)
	case res.ActivationReason != "":
		fmt.Fprintf(w, "Not activated (%s); the purchaser can redeem the key.\n", res.ActivationReason)
	}
}
