package tenantctx

import (
	"context"
	"strings"
)

// TenantKeyContextKey is the request context key for the authenticated tenant.
type TenantKeyContextKey struct{}

// SubmitterContextKey is the request context key for the submitter identity.
type SubmitterContextKey struct{}

// WithTenantKey stores the authenticated tenant key in the context.
func WithTenantKey(ctx context.Context, tenantKey string) context.Context {
	return context.WithValue(ctx, TenantKeyContextKey{}, strings.TrimSpace(tenantKey))
}

// TenantKey returns the authenticated tenant key from context, if set.
func TenantKey(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(TenantKeyContextKey{}).(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// WithSubmitter stores the submitter identity in the context.
func WithSubmitter(ctx context.Context, submitter string) context.Context {
	return context.WithValue(ctx, SubmitterContextKey{}, strings.TrimSpace(submitter))
}

// Submitter returns the submitter identity from context, if set.
func Submitter(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(SubmitterContextKey{}).(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}
