package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	correlationIDCtxKey contextKey = iota
	requestIDCtxKey
	tenantIDCtxKey
	operationCtxKey
)

// Log attribute keys. The logger copies each value it finds in the
// context under these names.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	TenantIDKey      = "tenant_id"
	OperationKey     = "operation"
)

// contextFields lists the values the logger lifts out of a context, in
// output order.
var contextFields = []struct {
	key  contextKey
	attr string
}{
	{correlationIDCtxKey, CorrelationIDKey},
	{requestIDCtxKey, RequestIDKey},
	{tenantIDCtxKey, TenantIDKey},
	{operationCtxKey, OperationKey},
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithCorrelationID tags ctx with the id that follows a purchase or request
// through events and notifications. An empty id gets a fresh UUID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, correlationIDCtxKey)
}

// WithRequestID tags ctx with an HTTP request id. An empty id gets a fresh
// UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDCtxKey)
}

// WithTenantID tags ctx with the tenant (guild) being worked on.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDCtxKey, tenantID)
}

// TenantIDFromContext returns the tenant id, or "".
func TenantIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, tenantIDCtxKey)
}

// WithOperation names the operation ctx belongs to.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationCtxKey, operation)
}

// OperationFromContext returns the operation name, or "".
func OperationFromContext(ctx context.Context) string {
	return stringFromContext(ctx, operationCtxKey)
}
