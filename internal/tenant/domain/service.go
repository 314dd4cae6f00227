package domain

import (
	"context"
	"errors"
)

type Service interface {
	GetByKey(ctx context.Context, tenantKey string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

var (
	ErrInvalidTenantKey = errors.New("invalid_tenant_key")
	ErrTenantNotFound   = errors.New("tenant_not_found")
)
