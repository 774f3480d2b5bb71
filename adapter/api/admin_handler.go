package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

const defaultListLimit = 50

// AdminHandler serves license administration endpoints.
type AdminHandler struct {
	handler
	licensing Licensing
	purchases Purchases
}

// Issue handles POST /api/v1/admin/licenses
func (h *AdminHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueLicenseRequest
	if err := render.Bind(r, &req); err != nil {
		_ = render.Render(w, r, badRequest("%s", err.Error()))
		return
	}

	tier, err := domain.ParseTier(strings.ToLower(strings.TrimSpace(req.Tier)))
	if err != nil {
		h.renderError(w, r, "issue license", err)
		return
	}

	issued, err := h.licensing.IssueLicense(r.Context(), licensingApp.IssueRequest{
		Tier:        tier,
		PurchaserID: req.PurchaserID,
		Note:        req.Note,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.renderError(w, r, "issue license", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newIssuedLicenseResponse(issued))
}

// List handles GET /api/v1/admin/licenses?status=&tenant_id=&purchaser_id=&limit=
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LicenseFilter{
		TenantID:    q.Get("tenant_id"),
		PurchaserID: q.Get("purchaser_id"),
		Limit:       defaultListLimit,
	}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseLicenseStatus(s)
		if err != nil {
			_ = render.Render(w, r, badRequest("%s", err.Error()))
			return
		}
		filter.Status = status
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			_ = render.Render(w, r, badRequest("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	licenses, err := h.licensing.ListLicenses(r.Context(), filter)
	if err != nil {
		h.renderError(w, r, "list licenses", err)
		return
	}

	out := make([]*LicenseResponse, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, newLicenseResponse(l))
	}
	render.JSON(w, r, out)
}

// Info handles GET /api/v1/admin/licenses/{key}
func (h *AdminHandler) Info(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	license, err := h.licensing.LicenseInfo(r.Context(), key)
	if err != nil {
		apiErr := errorFor(err)
		if tier, ok := domain.ParseKeyTier(key); ok && errors.Is(err, domain.ErrLicenseNotFound) {
			apiErr.Message = fmt.Sprintf("%s The key is tagged %s.", apiErr.Message, tier)
		}
		h.renderError(w, r, "license info", apiErr)
		return
	}
	render.JSON(w, r, newLicenseResponse(license))
}

// RevokeKey handles DELETE /api/v1/admin/licenses/{key}
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	rev, err := h.licensing.RevokeKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.renderError(w, r, "revoke key", err)
		return
	}
	render.JSON(w, r, newRevocationResponse(rev))
}

// Revoke handles DELETE /api/v1/admin/tenants/{tenantID}/premium
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	rev, err := h.licensing.Revoke(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.renderError(w, r, "revoke", err)
		return
	}
	render.JSON(w, r, newRevocationResponse(rev))
}

// Sweep handles POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.licensing.Sweep(r.Context())
	if err != nil {
		h.renderError(w, r, "sweep", err)
		return
	}
	render.JSON(w, r, map[string]int{"revoked": revoked})
}

// Purchase handles POST /api/v1/admin/purchases
func (h *AdminHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := render.Bind(r, &req); err != nil {
		_ = render.Render(w, r, badRequest("%s", err.Error()))
		return
	}

	res, err := h.purchases.HandlePurchase(r.Context(), req.PurchaseCompleted)
	if err != nil {
		h.renderError(w, r, "purchase", err)
		return
	}

	if !res.Duplicate {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, newPurchaseResponse(res))
}

// CancelSubscription handles POST /api/v1/admin/cancellations
func (h *AdminHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req CancellationRequest
	if err := render.Bind(r, &req); err != nil {
		_ = render.Render(w, r, badRequest("%s", err.Error()))
		return
	}

	if err := h.purchases.HandleSubscriptionCanceled(r.Context(), req.SubscriptionCanceled); err != nil {
		h.renderError(w, r, "cancel subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminAuth requires "Authorization: Bearer <token>".
func adminAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				_ = render.Render(w, r, &APIError{
					Status:  http.StatusUnauthorized,
					Reason:  ReasonUnauthorized,
					Message: "Missing or invalid admin token.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
