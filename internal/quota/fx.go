package quota

import (
	"github.com/smallbiznis/lognest/internal/quota/ledger"
	"github.com/smallbiznis/lognest/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(ledger.New),
	fx.Provide(service.New),
)
