package domain

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository stores the payments ledger.
type PaymentRepository interface {
	// Record inserts a payment; a second record for the same provider payment
	// returns ErrDuplicatePayment.
	Record(ctx context.Context, payment *Payment) error
	FindByProviderPaymentID(ctx context.Context, provider, paymentID string) (*Payment, error)
	// MarkCanceled flags the payments of a license as canceled.
	MarkCanceled(ctx context.Context, licenseID uuid.UUID) (int64, error)
}
