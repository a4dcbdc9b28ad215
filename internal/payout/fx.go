package payout

import (
	"github.com/smallbiznis/techwallet/internal/payout/repository"
	"github.com/smallbiznis/techwallet/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
