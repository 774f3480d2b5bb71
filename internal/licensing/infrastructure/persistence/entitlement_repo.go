package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
)

// EntitlementRepository implements domain.EntitlementRepository.
type EntitlementRepository struct {
	store
}

// NewEntitlementRepository creates a repository on conn.
func NewEntitlementRepository(conn database.Connection) *EntitlementRepository {
	return &EntitlementRepository{store{conn: conn}}
}

// Get returns the tenant's entitlement row.
func (r *EntitlementRepository) Get(ctx context.Context, tenantID string) (*domain.Entitlement, error) {
	query := r.q(`
		SELECT tenant_id, is_premium, tier, features, expires_at, activated_at, updated_at
		FROM entitlements
		WHERE tenant_id = ?
	`)

	var (
		e           domain.Entitlement
		tier        sql.NullString
		features    string
		expiresAt   database.NullTime
		activatedAt database.NullTime
		updatedAt   database.NullTime
	)
	err := r.exec(ctx).QueryRow(ctx, query, tenantID).
		Scan(&e.TenantID, &e.IsPremium, &tier, &features, &expiresAt, &activatedAt, &updatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrEntitlementNotFound
		}
		return nil, storeError("get entitlement", err)
	}

	if err := json.Unmarshal([]byte(features), &e.Features); err != nil {
		return nil, fmt.Errorf("decode features for tenant %s: %w", tenantID, err)
	}
	if e.Features == nil {
		e.Features = domain.FeatureSet{}
	}
	e.Tier = domain.Tier(stringOf(tier))
	e.ExpiresAt = expiresAt.Ptr()
	e.ActivatedAt = activatedAt.Ptr()
	e.UpdatedAt = updatedAt.Time
	return &e, nil
}

// Upsert writes the full entitlement row for its tenant.
func (r *EntitlementRepository) Upsert(ctx context.Context, e *domain.Entitlement) error {
	features := e.Features
	if features == nil {
		features = domain.FeatureSet{}
	}
	encoded, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	query := r.q(`
		INSERT INTO entitlements (tenant_id, is_premium, tier, features, expires_at, activated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			is_premium = excluded.is_premium,
			tier = excluded.tier,
			features = excluded.features,
			expires_at = excluded.expires_at,
			activated_at = excluded.activated_at,
			updated_at = excluded.updated_at
	`)
	_, err = r.exec(ctx).Exec(ctx, query,
		e.TenantID,
		e.IsPremium,
		nullString(string(e.Tier)),
		string(encoded),
		r.nt(e.ExpiresAt),
		r.nt(e.ActivatedAt),
		r.t(e.UpdatedAt),
	)
	return storeError("upsert entitlement", err)
}

// Clear ends a premium entitlement at the given time.
func (r *EntitlementRepository) Clear(ctx context.Context, tenantID string, at time.Time) (bool, error) {
	query := r.q(`
		UPDATE entitlements
		SET is_premium = ?, expires_at = ?, updated_at = ?
		WHERE tenant_id = ? AND is_premium = ?
	`)
	result, err := r.exec(ctx).Exec(ctx, query, false, r.t(at), r.t(at), tenantID, true)
	if err != nil {
		return false, storeError("clear entitlement", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeError("clear entitlement", err)
	}
	return affected > 0, nil
}

// ListExpired returns premium tenants whose expiry is not after now, oldest
// first.
func (r *EntitlementRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT tenant_id
		FROM entitlements
		WHERE is_premium = ? AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at, tenant_id`
	args := []any{true, r.t(now)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, storeError("list expired entitlements", err)
	}
	defer rows.Close()

	tenants := make([]string, 0)
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, storeError("scan expired entitlement", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list expired entitlements", err)
	}
	return tenants, nil
}

var _ domain.EntitlementRepository = (*EntitlementRepository)(nil)
