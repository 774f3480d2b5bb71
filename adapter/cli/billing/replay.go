package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	billingApp "github.com/lycebot/premium/internal/billing/application"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/internal/shared/infrastructure/security"
)

var replayEventPath string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a broker event from a file",
	Long: `Feed a saved broker envelope through the purchase consumer, as the
worker would. Useful for events that were dead-lettered.

Examples:
  premium billing replay --event ./purchase.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requirePurchases()
		if err != nil {
			return err
		}
		if replayEventPath == "" {
			return errors.New("event path is required")
		}

		payload, err := security.ReadEventFile(replayEventPath)
		if err != nil {
			return err
		}

		var event eventbus.ConsumedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("invalid event envelope: %w", err)
		}
		if event.RoutingKey == "" {
			return errors.New("event envelope has no routing_key")
		}

		if err := billingApp.NewPurchaseConsumer(app.Purchases).Handle(cmd.Context(), &event); err != nil {
			return fmt.Errorf("replay %s: %w", event.RoutingKey, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Replayed billing event: %s\n", event.RoutingKey)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayEventPath, "event", "", "path to the event envelope JSON")
}
