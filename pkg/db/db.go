package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromAppConfig),
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	AppConfig config.Config
	Log       *zap.Logger
	GormLog   logger.GormLoggerConfig `optional:"true"`
}

func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormLog := p.GormLog
	if gormLog.SlowThreshold == 0 {
		gormLog = logger.DefaultGormLoggerConfig()
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(p.Log, gormLog),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.Name))); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}
	if IsPostgres(conn) {
		if err := conn.Use(gormprom.New(gormprom.Config{
			DBName:          p.Config.Name,
			RefreshInterval: 15,
			Labels:          map[string]string{"service": p.AppConfig.AppName},
		})); err != nil {
			return nil, fmt.Errorf("register gorm prometheus: %w", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if IsPostgres(conn) {
		if p.Config.MaxIdleConn > 0 {
			sqlDB.SetMaxIdleConns(p.Config.MaxIdleConn)
		}
		if p.Config.MaxOpenConn > 0 {
			sqlDB.SetMaxOpenConns(p.Config.MaxOpenConn)
		}
		if p.Config.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(p.Config.ConnMaxLifetime)
		}
		if p.Config.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(p.Config.ConnMaxIdleTime)
		}
	} else {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return sqlDB.Close()
		},
	})

	p.Log.Info("database connected",
		zap.String("dialect", conn.Dialector.Name()),
		zap.String("name", p.Config.Name),
	)
	return conn, nil
}
