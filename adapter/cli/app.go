package cli

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/lycebot/premium/adapter/api"
	billingApp "github.com/lycebot/premium/internal/billing/application"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/pkg/observability"
)

// ErrNotInitialized is returned when a command runs without a wired App.
var ErrNotInitialized = errors.New("premium service not available (database connection required)")

// App holds the CLI application dependencies.
type App struct {
	Licensing *licensingApp.Service
	Purchases *billingApp.PurchaseHandler
	Health    *observability.HealthRegistry

	// NewServer builds the HTTP API for the serve command.
	NewServer     func() *api.Server
	SweepInterval time.Duration
}

// NewApp creates a new CLI application.
func NewApp(licensing *licensingApp.Service, purchases *billingApp.PurchaseHandler, health *observability.HealthRegistry) *App {
	return &App{
		Licensing:     licensing,
		Purchases:     purchases,
		Health:        health,
		SweepInterval: licensingApp.DefaultSweepInterval,
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireLicensing returns the wired App or ErrNotInitialized.
func RequireLicensing() (*App, error) {
	if app == nil || app.Licensing == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
