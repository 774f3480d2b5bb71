package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveWithSweeper bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted.

With --sweep the expiration sweeper runs in the same process, which is
convenient for single-node deployments on SQLite.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireLicensing()
		if err != nil {
			return err
		}
		if app.NewServer == nil {
			return errors.New("API server not configured")
		}

		server := app.NewServer()
		g, ctx := errgroup.WithContext(cmd.Context())

		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		if serveWithSweeper {
			g.Go(func() error {
				return app.Licensing.Sweeper().Run(ctx, app.SweepInterval)
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithSweeper, "sweep", false, "also run the expiration sweeper")
	rootCmd.AddCommand(serveCmd)
}
