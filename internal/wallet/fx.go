package wallet

import (
	"github.com/smallbiznis/techwallet/internal/wallet/lock"
	"github.com/smallbiznis/techwallet/internal/wallet/repository"
	"github.com/smallbiznis/techwallet/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(lock.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
