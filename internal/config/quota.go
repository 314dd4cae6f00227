package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// QuotaPolicy carries the tunables of the quota admission protocol.
type QuotaPolicy struct {
	// FallbackMonthlyLimit applies when neither a tenant override nor a plan
	// limit can be resolved. Availability over precision: ingestion keeps
	// working on a degraded side lookup instead of going dark.
	FallbackMonthlyLimit int64 `mapstructure:"fallbackMonthlyLimit"`

	// DefaultPlanCode is assumed for tenants without an assigned plan.
	DefaultPlanCode string `mapstructure:"defaultPlanCode"`

	// ReserveMaxAttempts bounds the create-or-increment retry loop when
	// concurrent first-use reservations race on record creation.
	ReserveMaxAttempts int `mapstructure:"reserveMaxAttempts"`

	// ReserveRetryBackoffMS is the sleep between reservation attempts.
	ReserveRetryBackoffMS int `mapstructure:"reserveRetryBackoffMs"`
}

// DefaultQuotaPolicy returns the built-in policy used when no quota.yml exists.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		FallbackMonthlyLimit:  1000,
		DefaultPlanCode:       "free",
		ReserveMaxAttempts:    3,
		ReserveRetryBackoffMS: 25,
	}
}

// QuotaPolicyHolder exposes the current quota policy with hot reload.
type QuotaPolicyHolder struct {
	current atomic.Value // holds QuotaPolicy
}

// NewQuotaPolicyHolder loads quota.yml (if present) and watches it for changes.
func NewQuotaPolicyHolder() (*QuotaPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("quota")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lognest/config")
	v.AddConfigPath("/etc/lognest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOGNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	holder := &QuotaPolicyHolder{}
	holder.store(policyFromViper(v))

	if fileFound {
		v.OnConfigChange(func(_ fsnotify.Event) {
			if err := v.ReadInConfig(); err != nil {
				log.Printf("quota policy reload failed: %v", err)
				return
			}
			holder.store(policyFromViper(v))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticQuotaPolicyHolder pins the policy without file watching. Tests use
// this to exercise specific limits and retry budgets.
func NewStaticQuotaPolicyHolder(policy QuotaPolicy) *QuotaPolicyHolder {
	holder := &QuotaPolicyHolder{}
	holder.store(policy)
	return holder
}

// Current returns the active quota policy.
func (h *QuotaPolicyHolder) Current() QuotaPolicy {
	if h == nil {
		return DefaultQuotaPolicy()
	}
	value, ok := h.current.Load().(QuotaPolicy)
	if !ok {
		return DefaultQuotaPolicy()
	}
	return value
}

func (h *QuotaPolicyHolder) store(policy QuotaPolicy) {
	h.current.Store(normalizePolicy(policy))
}

func policyFromViper(v *viper.Viper) QuotaPolicy {
	policy := DefaultQuotaPolicy()
	if err := v.UnmarshalKey("quota", &policy); err != nil {
		log.Printf("quota policy unmarshal failed: %v", err)
		return DefaultQuotaPolicy()
	}
	return policy
}

func normalizePolicy(policy QuotaPolicy) QuotaPolicy {
	defaults := DefaultQuotaPolicy()
	if policy.FallbackMonthlyLimit < 0 {
		policy.FallbackMonthlyLimit = defaults.FallbackMonthlyLimit
	}
	if strings.TrimSpace(policy.DefaultPlanCode) == "" {
		policy.DefaultPlanCode = defaults.DefaultPlanCode
	}
	policy.DefaultPlanCode = strings.ToLower(strings.TrimSpace(policy.DefaultPlanCode))
	if policy.ReserveMaxAttempts < 1 {
		policy.ReserveMaxAttempts = defaults.ReserveMaxAttempts
	}
	if policy.ReserveRetryBackoffMS < 0 {
		policy.ReserveRetryBackoffMS = defaults.ReserveRetryBackoffMS
	}
	return policy
}
