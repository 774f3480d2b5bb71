package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
)

const licenseColumns = `id, license_key, tier, status, purchaser_id, bound_tenant_id,
	activated_at, expires_at, ended_at, admin_note, created_at`

// LicenseRepository implements domain.LicenseRepository.
type LicenseRepository struct {
	store
}

// NewLicenseRepository creates a repository on conn.
func NewLicenseRepository(conn database.Connection) *LicenseRepository {
	return &LicenseRepository{store{conn: conn}}
}

// Create inserts an inactive license.
func (r *LicenseRepository) Create(ctx context.Context, l *domain.License) error {
	query := r.q(`
		INSERT INTO licenses (` + licenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.exec(ctx).Exec(ctx, query,
		l.ID.String(),
		l.Key,
		string(l.Tier),
		string(l.Status),
		nullString(l.PurchaserID),
		nullString(l.TenantID),
		r.nt(l.ActivatedAt),
		r.nt(l.ExpiresAt),
		r.nt(l.EndedAt),
		l.Note,
		r.t(l.CreatedAt),
	)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("create license: %w", domain.ErrDuplicateKey)
	}
	return storeError("create license", err)
}

// FindByKey looks a license up by its exact key.
func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	query := r.q(`SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = ?`)
	return r.one(ctx, "find license by key", query, key)
}

// FindByID looks a license up by id.
func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.License, error) {
	query := r.q(`SELECT ` + licenseColumns + ` FROM licenses WHERE id = ?`)
	return r.one(ctx, "find license by id", query, id.String())
}

// FindActiveByTenant returns the tenant's single active license.
func (r *LicenseRepository) FindActiveByTenant(ctx context.Context, tenantID string) (*domain.License, error) {
	query := r.q(`SELECT ` + licenseColumns + ` FROM licenses WHERE bound_tenant_id = ? AND status = ?`)
	return r.one(ctx, "find active license", query, tenantID, string(domain.LicenseStatusActive))
}

// List returns licenses matching filter, newest first.
func (r *LicenseRepository) List(ctx context.Context, filter domain.LicenseFilter) ([]*domain.License, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TenantID != "" {
		where = append(where, "bound_tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.PurchaserID != "" {
		where = append(where, "purchaser_id = ?")
		args = append(args, filter.PurchaserID)
	}

	query := `SELECT ` + licenseColumns + ` FROM licenses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, storeError("list licenses", err)
	}
	defer rows.Close()

	licenses := make([]*domain.License, 0)
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, storeError("scan license", err)
		}
		licenses = append(licenses, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list licenses", err)
	}
	return licenses, nil
}

// Transition writes l's lifecycle fields if the stored status is still from.
func (r *LicenseRepository) Transition(ctx context.Context, l *domain.License, from domain.LicenseStatus) error {
	query := r.q(`
		UPDATE licenses
		SET status = ?, bound_tenant_id = ?, activated_at = ?, expires_at = ?, ended_at = ?
		WHERE id = ? AND status = ?
	`)
	result, err := r.exec(ctx).Exec(ctx, query,
		string(l.Status),
		nullString(l.TenantID),
		r.nt(l.ActivatedAt),
		r.nt(l.ExpiresAt),
		r.nt(l.EndedAt),
		l.ID.String(),
		string(from),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("transition license: %w", domain.ErrAlreadyPremium)
		}
		return storeError("transition license", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("transition license", err)
	}
	if affected == 0 {
		return fmt.Errorf("transition license %s from %s: %w", l.ID, from, domain.ErrConcurrentUpdate)
	}
	return nil
}

func (r *LicenseRepository) one(ctx context.Context, op, query string, args ...any) (*domain.License, error) {
	l, err := scanLicense(r.exec(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, storeError(op, err)
	}
	return l, nil
}

func scanLicense(row database.Row) (*domain.License, error) {
	var (
		id, key, tier, status string
		purchaser, tenant     sql.NullString
		activatedAt           database.NullTime
		expiresAt             database.NullTime
		endedAt               database.NullTime
		createdAt             database.NullTime
		l                     domain.License
	)
	if err := row.Scan(&id, &key, &tier, &status, &purchaser, &tenant,
		&activatedAt, &expiresAt, &endedAt, &l.Note, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("license id %q", id), err)
	}

	l.ID = parsed
	l.Key = key
	l.Tier = domain.Tier(tier)
	l.Status = domain.LicenseStatus(status)
	l.PurchaserID = stringOf(purchaser)
	l.TenantID = stringOf(tenant)
	l.ActivatedAt = activatedAt.Ptr()
	l.ExpiresAt = expiresAt.Ptr()
	l.EndedAt = endedAt.Ptr()
	l.CreatedAt = createdAt.Time
	return &l, nil
}

var _ domain.LicenseRepository = (*LicenseRepository)(nil)
