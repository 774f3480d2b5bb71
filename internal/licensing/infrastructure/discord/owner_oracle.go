// Package discord resolves guild ownership through the Discord REST API.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// DefaultAPIURL is the Discord REST API base.
const DefaultAPIURL = "https://discord.com/api/v10"

// ErrUnavailable is returned while the breaker is open or Discord fails.
var ErrUnavailable = errors.New("discord api unavailable")

// Config configures the owner oracle.
type Config struct {
	APIURL   string
	BotToken string
	Timeout  time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

type guild struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// OwnerOracle looks guild owners up with GET /guilds/{id}.
type OwnerOracle struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	logger  *slog.Logger
}

// NewOwnerOracle creates an oracle.
func NewOwnerOracle(cfg Config) *OwnerOracle {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	o := &OwnerOracle{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.BotToken,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	o.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "discord-owner-lookup",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrTenantNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return o
}

// Owner returns the owner of guild tenantID.
func (o *OwnerOracle) Owner(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", domain.ErrTenantNotFound
	}

	owner, err := o.breaker.Execute(func() (string, error) {
		return o.fetchOwner(ctx, tenantID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return owner, err
}

// Ping reports ErrUnavailable while the breaker is open.
func (o *OwnerOracle) Ping(context.Context) error {
	if o.breaker.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

func (o *OwnerOracle) fetchOwner(ctx context.Context, tenantID string) (string, error) {
	endpoint := o.baseURL + "/guilds/" + url.PathEscape(tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bot "+o.token)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("guild %s: %w", tenantID, domain.ErrTenantNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var g guild
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return "", fmt.Errorf("decode guild %s: %w", tenantID, err)
	}
	if g.OwnerID == "" {
		return "", fmt.Errorf("guild %s has no owner: %w", tenantID, domain.ErrTenantNotFound)
	}
	return g.OwnerID, nil
}

// StaticOwnerOracle serves owners from a fixed map, for local runs and the CLI.
type StaticOwnerOracle map[string]string

// ParseStaticOwners parses "guild:owner,guild:owner".
func ParseStaticOwners(pairs string) (StaticOwnerOracle, error) {
	owners := StaticOwnerOracle{}
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		guildID, ownerID, ok := strings.Cut(pair, ":")
		if !ok || guildID == "" || ownerID == "" {
			return nil, fmt.Errorf("invalid guild owner pair %q", pair)
		}
		owners[strings.TrimSpace(guildID)] = strings.TrimSpace(ownerID)
	}
	return owners, nil
}

// Owner returns the configured owner.
func (s StaticOwnerOracle) Owner(_ context.Context, tenantID string) (string, error) {
	owner, ok := s[tenantID]
	if !ok {
		return "", fmt.Errorf("guild %s: %w", tenantID, domain.ErrTenantNotFound)
	}
	return owner, nil
}

var (
	_ application.OwnerOracle = (*OwnerOracle)(nil)
	_ application.OwnerOracle = StaticOwnerOracle(nil)
)
