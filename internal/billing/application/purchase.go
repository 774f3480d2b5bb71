package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lycebot/premium/internal/billing/domain"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	licensing "github.com/lycebot/premium/internal/licensing/domain"
	"github.com/lycebot/premium/pkg/observability"
)

// Licensing is the part of the licensing service used to fulfil purchases.
type Licensing interface {
	IssueLicense(ctx context.Context, req licensingApp.IssueRequest) (*licensingApp.IssuedLicense, error)
	Activate(ctx context.Context, req licensingApp.ActivateRequest) (*licensingApp.Activation, error)
	RevokeKey(ctx context.Context, key string) (*licensingApp.Revocation, error)
	Notify(ctx context.Context, n licensingApp.Notification)
}

// PurchaseResult describes how a purchase was fulfilled.
type PurchaseResult struct {
	Payment *domain.Payment
	License *licensingApp.IssuedLicense
	// Duplicate is true when the payment had already been handled.
	Duplicate bool
	// Activated is true when the license was bound to the purchase's tenant.
	Activated bool
	// ActivationReason explains why a requested activation did not happen.
	ActivationReason licensing.Reason
}

// PurchaseHandler turns provider payment facts into licenses.
type PurchaseHandler struct {
	payments  domain.PaymentRepository
	licensing Licensing
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time
}

// NewPurchaseHandler creates a handler.
func NewPurchaseHandler(payments domain.PaymentRepository, licensing Licensing, logger *slog.Logger, metrics observability.Metrics) *PurchaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &PurchaseHandler{
		payments:  payments,
		licensing: licensing,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// HandlePurchase issues a license for a completed payment, records the
// payment, activates the license for the purchase's tenant when one is given
// and sends the key to the purchaser. Redelivered payments are acknowledged
// without issuing again.
func (h *PurchaseHandler) HandlePurchase(ctx context.Context, p domain.PurchaseCompleted) (*PurchaseResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	existing, err := h.payments.FindByProviderPaymentID(ctx, p.Provider, p.PaymentID)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "payment already handled", "provider", p.Provider, "payment_id", p.PaymentID)
		h.metrics.Counter(observability.MetricPurchasesHandled, 1, observability.T("result", "duplicate"))
		return &PurchaseResult{Payment: existing, Duplicate: true}, nil
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return nil, err
	}

	issued, err := h.licensing.IssueLicense(ctx, licensingApp.IssueRequest{
		Tier:        p.Tier,
		PurchaserID: p.PurchaserID,
		Note:        fmt.Sprintf("payment %s:%s", p.Provider, p.PaymentID),
	})
	if err != nil {
		return nil, fmt.Errorf("issue license for payment %s: %w", p.PaymentID, err)
	}

	payment := domain.NewPayment(p, issued.LicenseID, h.now())
	if err := h.payments.Record(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			return h.discardDuplicate(ctx, p, issued)
		}
		return nil, err
	}

	result := &PurchaseResult{Payment: payment, License: issued}
	if p.TenantID != "" {
		_, err := h.licensing.Activate(ctx, licensingApp.ActivateRequest{
			TenantID:    p.TenantID,
			Key:         issued.Key,
			RequesterID: p.PurchaserID,
		})
		if err != nil {
			result.ActivationReason = licensing.ReasonFor(err)
			h.logger.WarnContext(ctx, "purchased license not activated",
				"tenant_id", p.TenantID,
				"license_id", issued.LicenseID,
				"reason", result.ActivationReason,
			)
		} else {
			result.Activated = true
		}
	}

	h.licensing.Notify(ctx, licensingApp.Notification{
		Kind:        licensingApp.NotificationPurchased,
		RecipientID: p.PurchaserID,
		TenantID:    p.TenantID,
		Tier:        issued.Tier,
		TierName:    issued.TierName,
		LicenseKey:  issued.Key,
		ExpiresAt:   issued.ExpiresAt,
		Activated:   result.Activated,
	})

	h.metrics.Counter(observability.MetricPurchasesHandled, 1, observability.T("result", "fulfilled"))
	h.logger.InfoContext(ctx, "purchase fulfilled",
		"provider", p.Provider,
		"payment_id", p.PaymentID,
		"license_id", issued.LicenseID,
		"key", licensing.MaskKey(issued.Key),
		"tier", issued.Tier,
		"activated", result.Activated,
	)
	return result, nil
}

// discardDuplicate cancels the key issued by a delivery that lost the race to
// record the same payment.
func (h *PurchaseHandler) discardDuplicate(ctx context.Context, p domain.PurchaseCompleted, issued *licensingApp.IssuedLicense) (*PurchaseResult, error) {
	if _, err := h.licensing.RevokeKey(ctx, issued.Key); err != nil {
		h.logger.WarnContext(ctx, "failed to cancel duplicate license", "license_id", issued.LicenseID, "error", err)
	}
	existing, err := h.payments.FindByProviderPaymentID(ctx, p.Provider, p.PaymentID)
	if err != nil {
		return nil, err
	}
	h.metrics.Counter(observability.MetricPurchasesHandled, 1, observability.T("result", "duplicate"))
	return &PurchaseResult{Payment: existing, Duplicate: true}, nil
}

// HandleSubscriptionCanceled revokes the license behind a canceled
// subscription. Unknown keys are logged and acknowledged.
func (h *PurchaseHandler) HandleSubscriptionCanceled(ctx context.Context, c domain.SubscriptionCanceled) error {
	if c.LicenseKey == "" {
		return fmt.Errorf("%w: license key is required", domain.ErrInvalidPurchase)
	}

	rev, err := h.licensing.RevokeKey(ctx, c.LicenseKey)
	if errors.Is(err, licensing.ErrLicenseNotFound) {
		h.logger.WarnContext(ctx, "canceled subscription references unknown license", "key", licensing.MaskKey(c.LicenseKey))
		return nil
	}
	if err != nil {
		return err
	}

	if rev.License != nil {
		if _, err := h.payments.MarkCanceled(ctx, rev.License.ID); err != nil {
			return err
		}
	}
	h.metrics.Counter(observability.MetricPurchasesHandled, 1, observability.T("result", "canceled"))
	h.logger.InfoContext(ctx, "subscription canceled",
		"key", licensing.MaskKey(c.LicenseKey),
		"tenant_id", rev.TenantID,
		"revoked", rev.Revoked,
	)
	return nil
}
