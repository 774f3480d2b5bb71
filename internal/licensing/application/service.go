package application

import (
	"context"

	"github.com/lycebot/premium/internal/licensing/domain"
)

// Service is the entry point used by command handlers, the HTTP API and the
// CLI. It owns the licensing components and their background side effects.
type Service struct {
	core *core

	issuer    *Issuer
	activator *Activator
	revoker   *Revoker
	resolver  *Resolver
	sweeper   *Sweeper
	gate      *Gate
}

// NewService wires the licensing components from deps.
func NewService(deps Deps) (*Service, error) {
	c, err := newCore(deps)
	if err != nil {
		return nil, err
	}

	keys := deps.Keys
	if keys == nil {
		keys = domain.NewKeyGenerator(domain.WithKeyClock(c.now))
	}

	revoker := &Revoker{core: c}
	resolver := &Resolver{core: c, revoker: revoker}
	return &Service{
		core:      c,
		issuer:    &Issuer{core: c, keys: keys},
		activator: &Activator{core: c, revoker: revoker},
		revoker:   revoker,
		resolver:  resolver,
		sweeper:   &Sweeper{core: c, revoker: revoker},
		gate:      &Gate{core: c, resolver: resolver},
	}, nil
}

// IssueLicense creates a new inactive license.
func (s *Service) IssueLicense(ctx context.Context, req IssueRequest) (*IssuedLicense, error) {
	return s.issuer.Issue(ctx, req)
}

// Activate redeems a license key for a tenant.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (*Activation, error) {
	return s.activator.Activate(ctx, req)
}

// Revoke ends premium for a tenant.
func (s *Service) Revoke(ctx context.Context, tenantID string) (*Revocation, error) {
	return s.revoker.Revoke(ctx, tenantID, RevokeManual)
}

// RevokeKey ends the license identified by key.
func (s *Service) RevokeKey(ctx context.Context, key string) (*Revocation, error) {
	return s.revoker.RevokeKey(ctx, key)
}

// GetStatus resolves the tenant's current entitlement.
func (s *Service) GetStatus(ctx context.Context, tenantID string) (*domain.View, error) {
	return s.resolver.Resolve(ctx, tenantID)
}

// HasFeature reports whether the tenant may use feature. Errors deny.
func (s *Service) HasFeature(ctx context.Context, tenantID string, feature domain.Feature) bool {
	return s.gate.Allow(ctx, tenantID, feature)
}

// Sweep revokes expired entitlements once.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.sweeper.Sweep(ctx)
}

// LicenseInfo looks up a license by key.
func (s *Service) LicenseInfo(ctx context.Context, key string) (*domain.License, error) {
	return s.core.licenses.FindByKey(ctx, domain.NormalizeKey(key))
}

// ActiveLicense returns the tenant's active license.
func (s *Service) ActiveLicense(ctx context.Context, tenantID string) (*domain.License, error) {
	return s.core.licenses.FindActiveByTenant(ctx, tenantID)
}

// ListLicenses returns licenses matching filter, newest first.
func (s *Service) ListLicenses(ctx context.Context, filter domain.LicenseFilter) ([]*domain.License, error) {
	return s.core.licenses.List(ctx, filter)
}

// Catalog returns the tier catalog.
func (s *Service) Catalog() *domain.Catalog {
	return s.core.catalog
}

// Gate returns the feature gate.
func (s *Service) Gate() *Gate {
	return s.gate
}

// Sweeper returns the expiration sweeper.
func (s *Service) Sweeper() *Sweeper {
	return s.sweeper
}

// Notify sends a best-effort notification through the service's notifier.
func (s *Service) Notify(ctx context.Context, n Notification) {
	s.core.notify(ctx, n)
}

// Wait blocks until in-flight notifications and event publishes finish.
func (s *Service) Wait() {
	s.core.effects.Wait()
}

// Result is the structured outcome returned to command handlers.
type Result struct {
	Success bool          `json:"success"`
	Reason  domain.Reason `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Outcome converts an operation error into a Result.
func Outcome(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{
		Reason:  domain.ReasonFor(err),
		Message: domain.MessageFor(err),
	}
}
