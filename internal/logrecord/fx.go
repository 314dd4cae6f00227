package logrecord

import (
	logrepository "github.com/smallbiznis/lognest/internal/logrecord/repository"
	logservice "github.com/smallbiznis/lognest/internal/logrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("logrecord.service",
	fx.Provide(
		logrepository.Provide,
		logservice.NewService,
	),
)
