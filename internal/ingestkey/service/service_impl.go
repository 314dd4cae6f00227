package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lognest/internal/clock"
	ingestkeydomain "github.com/smallbiznis/lognest/internal/ingestkey/domain"
	"github.com/smallbiznis/lognest/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ingestKeyPrefix      = "ln_live_key_"
	ingestKeySecretBytes = 32
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  ingestkeydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  ingestkeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) ingestkeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ingestkey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context) ([]ingestkeydomain.Response, error) {
	tenantKey, err := tenantKeyFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, tenantKey)
	if err != nil {
		return nil, err
	}

	resp := make([]ingestkeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req ingestkeydomain.CreateRequest) (*ingestkeydomain.SecretResponse, error) {
	tenantKey, err := tenantKeyFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ingestkeydomain.ErrInvalidName
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateIngestKey(keyID)
	if err != nil {
		return nil, err
	}

	key := &ingestkeydomain.IngestKey{
		ID:        id,
		TenantKey: tenantKey,
		KeyID:     keyID,
		Name:      name,
		Scopes:    []string{ingestkeydomain.ScopeLogsWrite, ingestkeydomain.ScopeLogsRead},
		KeyHash:   hash,
		Submitter: strings.TrimSpace(req.Submitter),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	return &ingestkeydomain.SecretResponse{KeyID: key.KeyID, IngestKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	tenantKey, err := tenantKeyFromContext(ctx)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return ingestkeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, s.db, tenantKey, trimmed)
	if err != nil {
		return err
	}
	if key == nil {
		return ingestkeydomain.ErrNotFound
	}

	now := s.clock.Now()
	key.IsActive = false
	key.UpdatedAt = now
	if key.ExpiresAt == nil || key.ExpiresAt.After(now) {
		key.ExpiresAt = &now
	}
	return s.repo.Update(ctx, s.db, key)
}

func tenantKeyFromContext(ctx context.Context) (string, error) {
	tenantKey, ok := tenantctx.TenantKey(ctx)
	if !ok || strings.TrimSpace(tenantKey) == "" {
		return "", ingestkeydomain.ErrInvalidTenantKey
	}
	return tenantKey, nil
}

func toResponse(key *ingestkeydomain.IngestKey) ingestkeydomain.Response {
	return ingestkeydomain.Response{
		KeyID:      key.KeyID,
		Name:       key.Name,
		Scopes:     key.Scopes,
		Submitter:  key.Submitter,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
		ExpiresAt:  key.ExpiresAt,
	}
}

func generateIngestKey(keyID string) (string, string, error) {
	secret := make([]byte, ingestKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", ingestKeyPrefix, trimmed, secretPart)
	return plain, ingestkeydomain.HashIngestKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
