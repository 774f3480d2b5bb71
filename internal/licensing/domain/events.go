package domain

import (
	"time"

	sharedDomain "github.com/lycebot/premium/internal/shared/domain"
)

// AggregateType is the aggregate name carried by license events.
const AggregateType = "license"

// Routing keys for license lifecycle events.
const (
	RoutingKeyLicenseIssued    = "licensing.license.issued"
	RoutingKeyLicenseActivated = "licensing.license.activated"
	RoutingKeyLicenseRevoked   = "licensing.license.revoked"
	RoutingKeyLicenseExpired   = "licensing.license.expired"
)

// LicenseIssued is raised when a new inactive license is stored.
type LicenseIssued struct {
	sharedDomain.BaseEvent
	Tier        Tier   `json:"tier"`
	PurchaserID string `json:"purchaser_id,omitempty"`
}

// NewLicenseIssued builds the event for l.
func NewLicenseIssued(l *License) *LicenseIssued {
	return &LicenseIssued{
		BaseEvent:   sharedDomain.NewBaseEvent(l.ID, AggregateType, RoutingKeyLicenseIssued, l.CreatedAt),
		Tier:        l.Tier,
		PurchaserID: l.PurchaserID,
	}
}

// LicenseActivated is raised when a license is bound to a tenant.
type LicenseActivated struct {
	sharedDomain.BaseEvent
	TenantID    string     `json:"tenant_id"`
	Tier        Tier       `json:"tier"`
	RequesterID string     `json:"requester_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// NewLicenseActivated builds the event for an activated license.
func NewLicenseActivated(l *License, requesterID string) *LicenseActivated {
	return &LicenseActivated{
		BaseEvent:   sharedDomain.NewBaseEvent(l.ID, AggregateType, RoutingKeyLicenseActivated, at(l.ActivatedAt, l.CreatedAt)),
		TenantID:    l.TenantID,
		Tier:        l.Tier,
		RequesterID: requesterID,
		ExpiresAt:   l.ExpiresAt,
	}
}

// LicenseEnded is raised when a license reaches a terminal state.
type LicenseEnded struct {
	sharedDomain.BaseEvent
	TenantID string        `json:"tenant_id,omitempty"`
	Tier     Tier          `json:"tier"`
	Status   LicenseStatus `json:"status"`
}

// NewLicenseEnded builds the event for a revoked or expired license.
func NewLicenseEnded(l *License) *LicenseEnded {
	key := RoutingKeyLicenseRevoked
	if l.Status == LicenseStatusExpired {
		key = RoutingKeyLicenseExpired
	}
	return &LicenseEnded{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID, AggregateType, key, at(l.EndedAt, l.CreatedAt)),
		TenantID:  l.TenantID,
		Tier:      l.Tier,
		Status:    l.Status,
	}
}

func at(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
