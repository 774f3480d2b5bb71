package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidOrUsedKey indicates the key is unknown or no longer inactive.
	ErrInvalidOrUsedKey = errors.New("invalid or already used license key")

	// ErrLicenseExpired indicates the license passed its preset expiry before activation.
	ErrLicenseExpired = errors.New("license expired")

	// ErrTenantNotFound indicates the ownership oracle could not resolve the tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrOwnerUnavailable indicates the ownership oracle failed transiently; the
	// activation may be retried.
	ErrOwnerUnavailable = errors.New("tenant owner lookup unavailable")

	// ErrNotAuthorized indicates the requester does not own the tenant.
	ErrNotAuthorized = errors.New("only the tenant owner may activate premium")

	// ErrAlreadyPremium indicates the tenant already holds a live entitlement.
	ErrAlreadyPremium = errors.New("tenant already has premium")

	// ErrActivationFailed indicates activation rolled back on an unexpected store failure.
	ErrActivationFailed = errors.New("license activation failed")

	// ErrStoreUnavailable indicates a transient store failure; the operation may be retried.
	ErrStoreUnavailable = errors.New("license store unavailable")

	// ErrDuplicateKey indicates a generated key or id collided with an existing license.
	ErrDuplicateKey = errors.New("duplicate license key")

	// ErrLicenseNotFound indicates no license matched the lookup.
	ErrLicenseNotFound = errors.New("license not found")

	// ErrEntitlementNotFound indicates the tenant has no entitlement row.
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrInvalidTransition indicates an illegal license state change.
	ErrInvalidTransition = errors.New("invalid license status transition")

	// ErrConcurrentUpdate indicates the license changed between read and write.
	ErrConcurrentUpdate = errors.New("license was modified concurrently")

	// ErrUnknownTier indicates a tier outside the catalog.
	ErrUnknownTier = errors.New("unknown tier")

	// ErrUnknownFeature indicates a feature name the product does not define.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrFeatureNotEntitled indicates the tenant's entitlement lacks the feature.
	ErrFeatureNotEntitled = errors.New("feature requires premium")
)

// AlreadyPremiumError carries the tenant's current entitlement so callers can display it.
type AlreadyPremiumError struct {
	Tier      Tier
	TierName  string
	ExpiresAt *time.Time
}

func (e *AlreadyPremiumError) Error() string {
	if e.ExpiresAt == nil {
		return fmt.Sprintf("%s: %s, never expires", ErrAlreadyPremium, e.Tier)
	}
	return fmt.Sprintf("%s: %s until %s", ErrAlreadyPremium, e.Tier, e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAlreadyPremium) match.
func (e *AlreadyPremiumError) Is(target error) bool {
	return target == ErrAlreadyPremium
}

// Reason is the machine-readable failure code returned to command handlers.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidOrUsedKey  Reason = "INVALID_OR_USED_KEY"
	ReasonLicenseExpired    Reason = "LICENSE_EXPIRED"
	ReasonTenantNotFound    Reason = "TENANT_NOT_FOUND"
	ReasonOwnerUnavailable  Reason = "OWNER_LOOKUP_UNAVAILABLE"
	ReasonNotAuthorized     Reason = "NOT_AUTHORIZED"
	ReasonAlreadyPremium    Reason = "ALREADY_PREMIUM"
	ReasonActivationFailed  Reason = "ACTIVATION_FAILED"
	ReasonStoreUnavailable  Reason = "STORE_UNAVAILABLE"
	ReasonDuplicateKey      Reason = "DUPLICATE_KEY"
	ReasonLicenseNotFound   Reason = "LICENSE_NOT_FOUND"
	ReasonUnknownTier       Reason = "UNKNOWN_TIER"
	ReasonUnknownFeature    Reason = "UNKNOWN_FEATURE"
	ReasonFeatureNotAllowed Reason = "FEATURE_NOT_ALLOWED"
	ReasonInternal          Reason = "INTERNAL"
)

var reasons = []struct {
	err     error
	reason  Reason
	message string
}{
	{ErrAlreadyPremium, ReasonAlreadyPremium, "This server already has an active premium subscription."},
	{ErrInvalidOrUsedKey, ReasonInvalidOrUsedKey, "Invalid or already used license key."},
	{ErrLicenseExpired, ReasonLicenseExpired, "This license key has expired."},
	{ErrTenantNotFound, ReasonTenantNotFound, "Server not found."},
	{ErrOwnerUnavailable, ReasonOwnerUnavailable, "Could not verify the server owner right now. Please try again."},
	{ErrNotAuthorized, ReasonNotAuthorized, "Only the server owner can activate premium."},
	{ErrStoreUnavailable, ReasonStoreUnavailable, "The license service is temporarily unavailable. Please try again."},
	{ErrActivationFailed, ReasonActivationFailed, "Failed to activate license. Please contact support."},
	{ErrDuplicateKey, ReasonDuplicateKey, "Could not generate a unique license key. Please try again."},
	{ErrLicenseNotFound, ReasonLicenseNotFound, "License not found."},
	{ErrUnknownTier, ReasonUnknownTier, "Unknown premium tier."},
	{ErrUnknownFeature, ReasonUnknownFeature, "Unknown premium feature."},
	{ErrFeatureNotEntitled, ReasonFeatureNotAllowed, "This feature requires premium."},
}

// ReasonFor maps an error to its reason code. Unrecognised errors map to ReasonInternal.
func ReasonFor(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// MessageFor returns the user-facing message for an error without leaking internals.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	var already *AlreadyPremiumError
	if errors.As(err, &already) {
		name := already.TierName
		if name == "" {
			name = string(already.Tier)
		}
		if already.ExpiresAt == nil {
			return fmt.Sprintf("This server already has %s (never expires).", name)
		}
		return fmt.Sprintf("This server already has %s until %s.", name, already.ExpiresAt.UTC().Format("2006-01-02"))
	}
	if errors.Is(err, ErrUnknownFeature) {
		names := make([]string, 0, len(knownFeatures))
		for _, f := range KnownFeatures() {
			names = append(names, string(f))
		}
		return "Unknown premium feature. Known features: " + strings.Join(names, ", ") + "."
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.message
		}
	}
	return "Something went wrong. Please try again later."
}
