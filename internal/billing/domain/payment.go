package domain

import (
	"time"

	"github.com/google/uuid"

	licensing "github.com/lycebot/premium/internal/licensing/domain"
)

// PaymentStatus represents the state of a recorded payment.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Payment is a completed purchase and the license it produced.
type Payment struct {
	ID                uuid.UUID
	Provider          string
	ProviderPaymentID string
	PurchaserID       string
	TenantID          string
	LicenseID         uuid.UUID
	Tier              licensing.Tier
	AmountCents       int64
	Currency          string
	Status            PaymentStatus
	CreatedAt         time.Time
}

// NewPayment records a completed purchase for the issued license.
func NewPayment(p PurchaseCompleted, licenseID uuid.UUID, now time.Time) *Payment {
	return &Payment{
		ID:                uuid.New(),
		Provider:          p.Provider,
		ProviderPaymentID: p.PaymentID,
		PurchaserID:       p.PurchaserID,
		TenantID:          p.TenantID,
		LicenseID:         licenseID,
		Tier:              p.Tier,
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		Status:            PaymentCompleted,
		CreatedAt:         now.UTC(),
	}
}
