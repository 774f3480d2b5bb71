package domain

import (
	"fmt"
	"strings"

	licensing "github.com/lycebot/premium/internal/licensing/domain"
)

// Routing keys of the payment provider facts consumed by the worker.
const (
	RoutingKeyPurchaseCompleted    = "billing.purchase.completed"
	RoutingKeySubscriptionCanceled = "billing.subscription.canceled"
)

// PurchaseCompleted is a verified checkout reported by the payment provider.
// TenantID is optional; without it the purchaser receives an unbound key.
type PurchaseCompleted struct {
	Provider    string         `json:"provider"`
	PaymentID   string         `json:"payment_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	PurchaserID string         `json:"purchaser_id"`
	Tier        licensing.Tier `json:"tier"`
	AmountCents int64          `json:"amount_cents"`
	Currency    string         `json:"currency"`
}

// Validate reports the first missing or malformed field.
func (p PurchaseCompleted) Validate() error {
	switch {
	case strings.TrimSpace(p.Provider) == "":
		return fmt.Errorf("%w: provider is required", ErrInvalidPurchase)
	case strings.TrimSpace(p.PaymentID) == "":
		return fmt.Errorf("%w: payment id is required", ErrInvalidPurchase)
	case strings.TrimSpace(p.PurchaserID) == "":
		return fmt.Errorf("%w: purchaser id is required", ErrInvalidPurchase)
	case p.AmountCents < 0:
		return fmt.Errorf("%w: negative amount", ErrInvalidPurchase)
	}
	if _, err := licensing.ParseTier(string(p.Tier)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPurchase, err)
	}
	return nil
}

// SubscriptionCanceled reports that the subscription behind a license ended.
type SubscriptionCanceled struct {
	Provider   string `json:"provider"`
	LicenseKey string `json:"license_key"`
}
