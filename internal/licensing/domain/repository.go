package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LicenseFilter narrows ListLicenses. Zero values mean no filter.
type LicenseFilter struct {
	Status      LicenseStatus
	TenantID    string
	PurchaserID string
	Limit       int
}

// LicenseRepository stores licenses. Lookups return ErrLicenseNotFound when nothing matches.
type LicenseRepository interface {
	// Create inserts a new license; a key or id collision returns ErrDuplicateKey.
	Create(ctx context.Context, license *License) error
	FindByKey(ctx context.Context, key string) (*License, error)
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindActiveByTenant(ctx context.Context, tenantID string) (*License, error)
	// List returns licenses newest first.
	List(ctx context.Context, filter LicenseFilter) ([]*License, error)
	// Transition persists license's status, binding and timestamps only if the
	// stored status still equals from. A lost race returns ErrConcurrentUpdate;
	// a second active license for the tenant returns ErrAlreadyPremium.
	Transition(ctx context.Context, license *License, from LicenseStatus) error
}

// EntitlementRepository stores per-tenant entitlements.
type EntitlementRepository interface {
	// Get returns ErrEntitlementNotFound when the tenant has no row.
	Get(ctx context.Context, tenantID string) (*Entitlement, error)
	Upsert(ctx context.Context, entitlement *Entitlement) error
	// Clear flips a premium row to non-premium with expiry at. Non-premium and
	// missing rows are left untouched; the return reports whether a row changed.
	Clear(ctx context.Context, tenantID string, at time.Time) (bool, error)
	// ListExpired returns tenants flagged premium whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
