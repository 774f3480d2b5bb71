package application

import (
	"context"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	sharedDomain "github.com/lycebot/premium/internal/shared/domain"
)

// OwnerOracle resolves the owner of a tenant. An unknown tenant returns
// domain.ErrTenantNotFound.
type OwnerOracle interface {
	Owner(ctx context.Context, tenantID string) (string, error)
}

// OwnerRefresher is implemented by oracles that may answer from a cache.
// Refresh bypasses it.
type OwnerRefresher interface {
	Refresh(ctx context.Context, tenantID string) (string, error)
}

// NotificationKind identifies the message sent to a user.
type NotificationKind string

const (
	NotificationActivated NotificationKind = "activated"
	NotificationRevoked   NotificationKind = "revoked"
	NotificationExpired   NotificationKind = "expired"
	NotificationPurchased NotificationKind = "purchased"
)

// Notification is a direct message to a single user.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID string           `json:"recipient_id"`
	TenantID    string           `json:"tenant_id,omitempty"`
	Tier        domain.Tier      `json:"tier,omitempty"`
	TierName    string           `json:"tier_name,omitempty"`
	LicenseKey  string           `json:"license_key,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	Activated   bool             `json:"activated,omitempty"`
}

// Notifier delivers notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventPublisher publishes license lifecycle events after commit.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events ...sharedDomain.DomainEvent) error
}

// EventRecorder stores events in the transaction carried by ctx so they
// commit or roll back with the state change that raised them.
type EventRecorder interface {
	Record(ctx context.Context, events ...sharedDomain.DomainEvent) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type noopEventPublisher struct{}

func (noopEventPublisher) PublishEvents(context.Context, ...sharedDomain.DomainEvent) error {
	return nil
}
