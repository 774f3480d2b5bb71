// Package billing holds the commands that feed payment provider facts into
// the license service by hand.
package billing

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/adapter/cli"
)

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Record purchases and subscription cancellations",
	Long: `Fulfil purchases and cancellations without the broker, for support
cases and replays of dead-lettered events.`,
}

var errNoPurchases = errors.New("purchase handling requires database connection")

func init() {
	Cmd.AddCommand(purchaseCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(replayCmd)
}

func requirePurchases() (*cli.App, error) {
	app := cli.GetApp()
	if app == nil || app.Purchases == nil {
		return nil, errNoPurchases
	}
	return app, nil
}
