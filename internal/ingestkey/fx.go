package ingestkey

import (
	"github.com/smallbiznis/lognest/internal/ingestkey/repository"
	"github.com/smallbiznis/lognest/internal/ingestkey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ingestkey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
