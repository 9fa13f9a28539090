// Package multitenancy scopes aggregates to tenants with composite
// aggregate ids and carries the tenant through the request context.
package multitenancy

import "context"

type contextKey struct{}

// WithTenantID returns a context carrying the tenant id.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// TenantID returns the tenant id from the context, if any.
func TenantID(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(contextKey{}).(string)
	return tenantID, ok && tenantID != ""
}
