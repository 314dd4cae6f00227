package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/lognest/internal/clock"
	"github.com/smallbiznis/lognest/internal/config"
	plandomain "github.com/smallbiznis/lognest/internal/plan/domain"
	quotadomain "github.com/smallbiznis/lognest/internal/quota/domain"
	tenantdomain "github.com/smallbiznis/lognest/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Policy  *config.QuotaPolicyHolder
	Ledger  quotadomain.Ledger
	Tenants tenantdomain.Service
	Plans   plandomain.Service
}

// Service implements limit resolution, the admission gate, and the usage
// summary projection on top of the ledger.
type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	policy  *config.QuotaPolicyHolder
	ledger  quotadomain.Ledger
	tenants tenantdomain.Service
	plans   plandomain.Service
}

type ServiceResult struct {
	fx.Out

	Resolver quotadomain.LimitResolver
	Gate     quotadomain.Gate
	Reporter quotadomain.Reporter
}

func New(p ServiceParam) ServiceResult {
	svc := &Service{
		log:     p.Log.Named("quota.service"),
		clock:   p.Clock,
		policy:  p.Policy,
		ledger:  p.Ledger,
		tenants: p.Tenants,
		plans:   p.Plans,
	}
	return ServiceResult{
		Resolver: svc,
		Gate:     svc,
		Reporter: svc,
	}
}

// ResolveLimit resolves tenant override > plan limit > fallback constant.
// Side lookup failures degrade to the fallback instead of aborting: ingestion
// availability beats limit precision, as a matter of policy.
func (s *Service) ResolveLimit(ctx context.Context, tenantKey string) quotadomain.ResolvedLimit {
	policy := s.policy.Current()

	planCode := policy.DefaultPlanCode
	var override *int64

	tenant, err := s.tenants.GetByKey(ctx, tenantKey)
	switch {
	case err == nil && tenant != nil:
		if code := strings.ToLower(strings.TrimSpace(tenant.PlanCode)); code != "" {
			planCode = code
		}
		override = tenant.OverrideMonthlyLogLimit
	case errors.Is(err, tenantdomain.ErrTenantNotFound):
		// Unknown tenants resolve as the lowest tier.
	case err != nil:
		s.log.Warn("tenant lookup degraded to fallback limit",
			zap.String("tenant_key", tenantKey),
			zap.Error(err),
		)
	}

	limit := policy.FallbackMonthlyLimit
	planName := ""

	plan, err := s.plans.GetByCode(ctx, planCode)
	switch {
	case err == nil && plan != nil:
		limit = plan.MonthlyLogLimit
		planName = plan.Name
	case errors.Is(err, plandomain.ErrPlanNotFound):
		s.log.Warn("plan not found, using fallback limit",
			zap.String("plan_code", planCode),
			zap.Int64("fallback_limit", limit),
		)
	case err != nil:
		s.log.Warn("plan lookup degraded to fallback limit",
			zap.String("plan_code", planCode),
			zap.Error(err),
		)
	}

	if override != nil && *override >= 0 {
		limit = *override
	}
	if limit < 0 {
		limit = 0
	}

	return quotadomain.ResolvedLimit{
		Limit:    limit,
		PlanCode: planCode,
		PlanName: planName,
	}
}

// Admit makes the admission decision for one unit of ingestion. The decision
// itself is the atomic reserve; the counter read on denial is advisory and
// only enriches the error payload.
func (s *Service) Admit(ctx context.Context, tenantKey string, amount int64) (quotadomain.Decision, error) {
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey == "" {
		return quotadomain.Decision{}, quotadomain.ErrInvalidTenantKey
	}
	if amount <= 0 {
		amount = 1
	}

	resolved := s.ResolveLimit(ctx, tenantKey)
	period := quotadomain.PeriodOf(s.clock.Now())

	reserved, err := s.ledger.Reserve(ctx, tenantKey, period, resolved.Limit, amount)
	if err != nil {
		return quotadomain.Decision{}, err
	}
	if reserved {
		return quotadomain.Decision{
			Admitted: true,
			Period:   period,
			Limit:    resolved.Limit,
		}, nil
	}

	used, _, readErr := s.ledger.Usage(ctx, tenantKey, period)
	if readErr != nil {
		s.log.Warn("denial counter read failed",
			zap.String("tenant_key", tenantKey),
			zap.Error(readErr),
		)
		used = resolved.Limit
	}

	return quotadomain.Decision{
		Admitted: false,
		Period:   period,
		Limit:    resolved.Limit,
		Denial: &quotadomain.Denial{
			Period:    period,
			Used:      used,
			Limit:     resolved.Limit,
			Remaining: maxInt64(resolved.Limit-used, 0),
		},
	}, nil
}

// Summarize projects current-period usage for display.
func (s *Service) Summarize(ctx context.Context, tenantKey string) (quotadomain.Summary, error) {
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey == "" {
		return quotadomain.Summary{}, quotadomain.ErrInvalidTenantKey
	}

	resolved := s.ResolveLimit(ctx, tenantKey)
	now := s.clock.Now()
	period := quotadomain.PeriodOf(now)

	used, updatedAt, err := s.ledger.Usage(ctx, tenantKey, period)
	if err != nil {
		return quotadomain.Summary{}, err
	}

	usagePct := int64(0)
	if resolved.Limit > 0 {
		usagePct = (used*100 + resolved.Limit/2) / resolved.Limit
		if usagePct > 100 {
			usagePct = 100
		}
	}

	return quotadomain.Summary{
		TenantKey:    tenantKey,
		Plan:         resolved.PlanCode,
		PlanName:     resolved.PlanName,
		Period:       period,
		Limit:        resolved.Limit,
		Used:         used,
		Remaining:    maxInt64(resolved.Limit-used, 0),
		UsagePercent: usagePct,
		ResetsAt:     quotadomain.NextReset(now),
		UpdatedAt:    updatedAt,
	}, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
