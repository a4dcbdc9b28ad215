package service

import (
	"context"
	"time"

	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const actorConfigFile = "config-file"

type ReloadParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *zap.Logger
	Holder    *config.CompensationConfigHolder
	Svc       domain.Service
}

// RegisterConfigReload seeds the snapshot table on start and turns every
// valid compensation.yml change into a new snapshot version.
func RegisterConfigReload(p ReloadParams) {
	log := p.Log.Named("ratedefaults.reload")

	p.Holder.OnChange(func(cfg config.CompensationConfig) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := ApplyConfig(ctx, p.Svc, cfg); err != nil {
			log.Error("failed to apply reloaded compensation config", zap.Error(err))
		}
	})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			snapshot, err := p.Svc.Current(ctx)
			if err != nil {
				return err
			}
			log.Info("rate defaults in force",
				zap.Int64("version", snapshot.Version),
				zap.String("contractor_rate", snapshot.ContractorRate.String()),
				zap.String("employee_rate", snapshot.EmployeeRate.String()),
			)
			return nil
		},
	})
}

// ApplyConfig writes cfg as a new snapshot unless it matches the current one.
func ApplyConfig(ctx context.Context, svc domain.Service, cfg config.CompensationConfig) (bool, error) {
	contractor, employee, err := cfg.Rates()
	if err != nil {
		return false, err
	}
	current, err := svc.Current(ctx)
	if err != nil {
		return false, err
	}
	if current.ContractorRate.Equal(contractor) && current.EmployeeRate.Equal(employee) {
		return false, nil
	}
	if _, err := svc.SetRateDefaults(ctx, contractor, employee, actorConfigFile); err != nil {
		return false, err
	}
	return true, nil
}
