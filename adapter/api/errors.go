package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	"github.com/lycebot/premium/internal/licensing/domain"
)

// Reasons produced by the HTTP layer itself.
const (
	ReasonBadRequest   domain.Reason = "BAD_REQUEST"
	ReasonRateLimited  domain.Reason = "RATE_LIMITED"
	ReasonUnauthorized domain.Reason = "UNAUTHORIZED"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Status  int           `json:"-"`
	Success bool          `json:"success"`
	Reason  domain.Reason `json:"reason"`
	Message string        `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

var reasonStatus = map[domain.Reason]int{
	domain.ReasonInvalidOrUsedKey:  http.StatusUnprocessableEntity,
	domain.ReasonLicenseExpired:    http.StatusGone,
	domain.ReasonTenantNotFound:    http.StatusNotFound,
	domain.ReasonOwnerUnavailable:  http.StatusServiceUnavailable,
	domain.ReasonNotAuthorized:     http.StatusForbidden,
	domain.ReasonAlreadyPremium:    http.StatusConflict,
	domain.ReasonActivationFailed:  http.StatusInternalServerError,
	domain.ReasonStoreUnavailable:  http.StatusServiceUnavailable,
	domain.ReasonDuplicateKey:      http.StatusServiceUnavailable,
	domain.ReasonLicenseNotFound:   http.StatusNotFound,
	domain.ReasonUnknownTier:       http.StatusBadRequest,
	domain.ReasonUnknownFeature:    http.StatusBadRequest,
	domain.ReasonFeatureNotAllowed: http.StatusPaymentRequired,
	ReasonBadRequest:               http.StatusBadRequest,
	ReasonRateLimited:              http.StatusTooManyRequests,
	ReasonUnauthorized:             http.StatusUnauthorized,
}

// errorFor converts a service error into an APIError without leaking internals.
func errorFor(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	outcome := licensingApp.Outcome(err)
	status, ok := reasonStatus[outcome.Reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &APIError{Status: status, Reason: outcome.Reason, Message: outcome.Message}
}

func badRequest(format string, args ...any) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Reason:  ReasonBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// renderError writes err and logs anything that is not a caller mistake.
func (h *handler) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	apiErr := errorFor(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "operation", op, "error", err)
	}
	_ = render.Render(w, r, apiErr)
}
