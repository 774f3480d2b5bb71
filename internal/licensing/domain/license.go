package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LicenseStatus is the lifecycle state of a license.
type LicenseStatus string

const (
	// LicenseStatusInactive is an issued license not yet bound to a tenant.
	LicenseStatusInactive LicenseStatus = "inactive"
	// LicenseStatusActive is bound to exactly one tenant.
	LicenseStatusActive LicenseStatus = "active"
	// LicenseStatusRevoked was ended by an admin or owner. Terminal.
	LicenseStatusRevoked LicenseStatus = "revoked"
	// LicenseStatusExpired ran past its expiry. Terminal.
	LicenseStatusExpired LicenseStatus = "expired"
)

// ParseLicenseStatus validates a status filter supplied at a boundary.
func ParseLicenseStatus(s string) (LicenseStatus, error) {
	switch st := LicenseStatus(s); st {
	case LicenseStatusInactive, LicenseStatusActive, LicenseStatusRevoked, LicenseStatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("unknown license status %q", s)
	}
}

// IsTerminal reports whether no further transition is possible.
func (s LicenseStatus) IsTerminal() bool {
	return s == LicenseStatusRevoked || s == LicenseStatusExpired
}

// License is an issued, keyed grant of a tier.
type License struct {
	ID          uuid.UUID
	Key         string
	Tier        Tier
	Status      LicenseStatus
	PurchaserID string
	TenantID    string
	ActivatedAt *time.Time
	ExpiresAt   *time.Time
	EndedAt     *time.Time
	Note        string
	CreatedAt   time.Time
}

// NewLicense creates an inactive license. A preset expiry is dropped for
// non-expiring tiers.
func NewLicense(key string, plan Plan, purchaserID, note string, presetExpiry *time.Time, now time.Time) *License {
	l := &License{
		ID:          uuid.New(),
		Key:         key,
		Tier:        plan.Tier,
		Status:      LicenseStatusInactive,
		PurchaserID: purchaserID,
		Note:        note,
		CreatedAt:   now.UTC(),
	}
	if plan.Expiring() && presetExpiry != nil {
		at := presetExpiry.UTC()
		l.ExpiresAt = &at
	}
	return l
}

// IsPastExpiry reports whether the license carries an expiry that is not
// after now.
func (l *License) IsPastExpiry(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Activate binds an inactive license to a tenant.
func (l *License) Activate(tenantID string, now time.Time, expiresAt *time.Time) error {
	if l.Status != LicenseStatusInactive {
		return l.transitionError(LicenseStatusActive)
	}
	if tenantID == "" {
		return fmt.Errorf("%w: activation requires a tenant", ErrInvalidTransition)
	}
	at := now.UTC()
	l.Status = LicenseStatusActive
	l.TenantID = tenantID
	l.ActivatedAt = &at
	l.ExpiresAt = nil
	if expiresAt != nil {
		exp := expiresAt.UTC()
		l.ExpiresAt = &exp
	}
	return nil
}

// Expire ends an inactive or active license because its time ran out.
func (l *License) Expire(now time.Time) error {
	return l.end(LicenseStatusExpired, now)
}

// Revoke ends an inactive or active license by explicit action.
func (l *License) Revoke(now time.Time) error {
	return l.end(LicenseStatusRevoked, now)
}

func (l *License) end(to LicenseStatus, now time.Time) error {
	if l.Status != LicenseStatusInactive && l.Status != LicenseStatusActive {
		return l.transitionError(to)
	}
	at := now.UTC()
	l.Status = to
	l.EndedAt = &at
	return nil
}

func (l *License) transitionError(to LicenseStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
}

// MaskedKey returns the key with its random part hidden.
func (l *License) MaskedKey() string {
	if l == nil {
		return ""
	}
	return MaskKey(l.Key)
}
