package service

import (
	"context"
	"strings"

	tenantdomain "github.com/smallbiznis/lognest/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo tenantdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tenantdomain.Repository
}

func New(p ServiceParam) tenantdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tenant.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByKey(ctx context.Context, tenantKey string) (*tenantdomain.Tenant, error) {
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey == "" {
		return nil, tenantdomain.ErrInvalidTenantKey
	}

	tenant, err := s.repo.FindByKey(ctx, s.db, tenantKey)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *Service) List(ctx context.Context) ([]tenantdomain.Tenant, error) {
	return s.repo.List(ctx, s.db)
}
