package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/billing/domain"
	licensing "github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
)

// PaymentRepository implements domain.PaymentRepository on the shared database layer.
type PaymentRepository struct {
	conn database.Connection
}

// NewPaymentRepository creates a repository on conn.
func NewPaymentRepository(conn database.Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

func (r *PaymentRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Record inserts a payment.
func (r *PaymentRepository) Record(ctx context.Context, p *domain.Payment) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO payments (
			id, provider, provider_payment_id, purchaser_id, tenant_id, license_id,
			tier, amount_cents, currency, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	var tenant, license any
	if p.TenantID != "" {
		tenant = p.TenantID
	}
	if p.LicenseID != uuid.Nil {
		license = p.LicenseID.String()
	}

	_, err := r.exec(ctx).Exec(ctx, query,
		p.ID.String(),
		p.Provider,
		p.ProviderPaymentID,
		p.PurchaserID,
		tenant,
		license,
		string(p.Tier),
		p.AmountCents,
		p.Currency,
		string(p.Status),
		database.TimeValue(r.conn.Driver(), p.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("record payment %s/%s: %w", p.Provider, p.ProviderPaymentID, domain.ErrDuplicatePayment)
		}
		return fmt.Errorf("record payment: %w", err)
	}
	return nil
}

// FindByProviderPaymentID returns the payment recorded for a provider payment.
func (r *PaymentRepository) FindByProviderPaymentID(ctx context.Context, provider, paymentID string) (*domain.Payment, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT id, provider, provider_payment_id, purchaser_id, tenant_id, license_id,
			tier, amount_cents, currency, status, created_at
		FROM payments
		WHERE provider = ? AND provider_payment_id = ?
	`)

	var (
		p                domain.Payment
		id, tier, status string
		tenant, license  sql.NullString
		createdAt        database.NullTime
	)
	err := r.exec(ctx).QueryRow(ctx, query, provider, paymentID).Scan(
		&id, &p.Provider, &p.ProviderPaymentID, &p.PurchaserID, &tenant, &license,
		&tier, &p.AmountCents, &p.Currency, &status, &createdAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("payment id %q: %w", id, err)
	}
	if license.Valid {
		if p.LicenseID, err = uuid.Parse(license.String); err != nil {
			return nil, fmt.Errorf("payment license id %q: %w", license.String, err)
		}
	}
	p.TenantID = tenant.String
	p.Tier = licensing.Tier(tier)
	p.Status = domain.PaymentStatus(status)
	p.CreatedAt = createdAt.Time
	return &p, nil
}

// MarkCanceled flags every completed payment of the license as canceled.
func (r *PaymentRepository) MarkCanceled(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	query := database.Rebind(r.conn.Driver(), `
		UPDATE payments SET status = ? WHERE license_id = ? AND status = ?
	`)
	result, err := r.exec(ctx).Exec(ctx, query,
		string(domain.PaymentCanceled), licenseID.String(), string(domain.PaymentCompleted))
	if err != nil {
		return 0, fmt.Errorf("cancel payments: %w", err)
	}
	return result.RowsAffected()
}

var _ domain.PaymentRepository = (*PaymentRepository)(nil)
