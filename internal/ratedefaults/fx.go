package ratedefaults

import (
	"github.com/smallbiznis/techwallet/internal/ratedefaults/repository"
	"github.com/smallbiznis/techwallet/internal/ratedefaults/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ratedefaults.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(service.RegisterConfigReload),
)
