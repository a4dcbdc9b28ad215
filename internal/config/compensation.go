package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultContractorRate = "0.05"
	DefaultEmployeeRate   = "0.00"
)

// CompensationConfig seeds the global rate defaults. The database snapshot is
// authoritative once it exists; the file only bootstraps and hot-reloads it.
type CompensationConfig struct {
	DefaultContractorRate string `mapstructure:"defaultContractorRate"`
	DefaultEmployeeRate   string `mapstructure:"defaultEmployeeRate"`
}

// Rates parses and validates both rates.
func (c CompensationConfig) Rates() (decimal.Decimal, decimal.Decimal, error) {
	contractor, err := parseRate("compensation.defaultContractorRate", c.DefaultContractorRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	employee, err := parseRate("compensation.defaultEmployeeRate", c.DefaultEmployeeRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return contractor, employee, nil
}

func DefaultCompensationConfig() CompensationConfig {
	return CompensationConfig{
		DefaultContractorRate: DefaultContractorRate,
		DefaultEmployeeRate:   DefaultEmployeeRate,
	}
}

type CompensationConfigHolder struct {
	current atomic.Value // holds CompensationConfig

	mu        sync.Mutex
	listeners []func(CompensationConfig)
}

func NewCompensationConfigHolder(appCfg Config, log *zap.Logger) (*CompensationConfigHolder, error) {
	log = log.Named("config.compensation")
	v := viper.New()

	if path := strings.TrimSpace(appCfg.CompensationConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("compensation")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/techwallet")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TECHWALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCompensationConfig()
	v.SetDefault("compensation.defaultContractorRate", defaults.DefaultContractorRate)
	v.SetDefault("compensation.defaultEmployeeRate", defaults.DefaultEmployeeRate)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CompensationConfig
	if err := v.UnmarshalKey("compensation", &cfg); err != nil {
		return nil, err
	}
	if _, _, err := cfg.Rates(); err != nil {
		return nil, err
	}

	holder := &CompensationConfigHolder{}
	holder.current.Store(cfg)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CompensationConfig
		if err := v.UnmarshalKey("compensation", &updated); err != nil {
			log.Warn("compensation config reload failed", zap.Error(err))
			return
		}
		if _, _, err := updated.Rates(); err != nil {
			log.Warn("invalid compensation config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("compensation config reloaded", zap.String("file", e.Name))
		_ = holder.Set(updated)
	})

	return holder, nil
}

// NewStaticCompensationConfigHolder returns a holder that never reloads.
func NewStaticCompensationConfigHolder(cfg CompensationConfig) *CompensationConfigHolder {
	holder := &CompensationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CompensationConfigHolder) Get() CompensationConfig {
	return h.current.Load().(CompensationConfig)
}

// Set validates and publishes cfg to every listener.
func (h *CompensationConfigHolder) Set(cfg CompensationConfig) error {
	if _, _, err := cfg.Rates(); err != nil {
		return err
	}
	h.current.Store(cfg)
	h.notify(cfg)
	return nil
}

// OnChange registers fn to run after every valid reload.
func (h *CompensationConfigHolder) OnChange(fn func(CompensationConfig)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *CompensationConfigHolder) notify(cfg CompensationConfig) {
	h.mu.Lock()
	listeners := append([]func(CompensationConfig){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

func parseRate(field, raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be within [0,1], got %s", field, rate.String())
	}
	return rate, nil
}
