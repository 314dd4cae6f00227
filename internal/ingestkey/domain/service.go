package domain

import (
	"context"
	"errors"
	"time"
)

const (
	ScopeLogsWrite = "logs:write"
	ScopeLogsRead  = "logs:read"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
}

type CreateRequest struct {
	Name      string `json:"name"`
	Submitter string `json:"submitter"`
}

type Response struct {
	KeyID      string     `json:"key_id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	Submitter  string     `json:"submitter,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// SecretResponse is the only place the plaintext key ever appears.
type SecretResponse struct {
	KeyID     string `json:"key_id"`
	IngestKey string `json:"ingest_key"`
}

var (
	ErrInvalidTenantKey = errors.New("invalid_tenant_key")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidKeyID     = errors.New("invalid_key_id")
	ErrNotFound         = errors.New("not_found")
)
