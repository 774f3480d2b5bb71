package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/lycebot/premium/pkg/observability"
)

var (
	jsonOutput bool
	logger     = slog.Default()
)

type startedAtKey struct{}

var rootCmd = &cobra.Command{
	Use:   "premium",
	Short: "License keys and tenant entitlements",
	Long: `premium issues license keys, activates them for tenants and
answers which premium features a tenant is entitled to.

Without DATABASE_URL it runs against a local SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		// Every command gets its own correlation id, which the logger and
		// the events it raises carry.
		ctx = observability.WithOperation(observability.WithCorrelationID(ctx, ""), cmd.CommandPath())
		cmd.SetContext(context.WithValue(ctx, startedAtKey{}, time.Now()))
		logger.DebugContext(ctx, "command start")
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		if started, ok := ctx.Value(startedAtKey{}).(time.Time); ok {
			logger.DebugContext(ctx, "command end", "duration_ms", time.Since(started).Milliseconds())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// AddCommand registers a command group under the root.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger replaces the default logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// JSONOutput reports whether --json was given.
func JSONOutput() bool {
	return jsonOutput
}

// SetJSONOutput overrides --json, for tests.
func SetJSONOutput(v bool) {
	jsonOutput = v
}
