// Package engine wires the full compensation stack over an in-memory
// database for cross-package tests.
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	auditrepo "github.com/smallbiznis/techwallet/internal/audit/repository"
	auditservice "github.com/smallbiznis/techwallet/internal/audit/service"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	earningrepo "github.com/smallbiznis/techwallet/internal/earning/repository"
	earningservice "github.com/smallbiznis/techwallet/internal/earning/service"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/techwallet/internal/payout/domain"
	payoutrepo "github.com/smallbiznis/techwallet/internal/payout/repository"
	payoutservice "github.com/smallbiznis/techwallet/internal/payout/service"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	ratedefaultsrepo "github.com/smallbiznis/techwallet/internal/ratedefaults/repository"
	ratedefaultsservice "github.com/smallbiznis/techwallet/internal/ratedefaults/service"
	reconciliationdomain "github.com/smallbiznis/techwallet/internal/reconciliation/domain"
	reconciliationrepo "github.com/smallbiznis/techwallet/internal/reconciliation/repository"
	reconciliationservice "github.com/smallbiznis/techwallet/internal/reconciliation/service"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
	technicianrepo "github.com/smallbiznis/techwallet/internal/technician/repository"
	technicianservice "github.com/smallbiznis/techwallet/internal/technician/service"
	"github.com/smallbiznis/techwallet/internal/testutil"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/internal/wallet/lock"
	walletrepo "github.com/smallbiznis/techwallet/internal/wallet/repository"
	walletservice "github.com/smallbiznis/techwallet/internal/wallet/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Engine struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock

	Wallets        walletdomain.Service
	Technicians    techniciandomain.Service
	RateDefaults   ratedefaultsdomain.Service
	Earnings       earningdomain.Service
	Payouts        payoutdomain.Service
	Reconciliation reconciliationdomain.Service
	Audit          auditdomain.Service
	SweepMetrics   *obsmetrics.SchedulerMetrics
	Locker         lock.Locker
}

type options struct {
	wrapLocker func(lock.Locker) lock.Locker
}

type Option func(*options)

// WithLocker wraps the wallet locker every balance mutation goes through.
func WithLocker(wrap func(lock.Locker) lock.Locker) Option {
	return func(o *options) {
		o.wrapLocker = wrap
	}
}

// New seeds rate defaults of 0.05 for contractors and 0 for employees.
func New(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{Currency: "USD", WalletLockTTL: 5 * time.Second}
	sweepMetrics := obsmetrics.NewSchedulerMetricsForTest(prometheus.NewRegistry())
	locker := lock.New(lock.Params{Config: cfg, Log: log, Metrics: sweepMetrics})
	if o.wrapLocker != nil {
		locker = o.wrapLocker(locker)
	}

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  auditrepo.Provide(),
	})
	wallets := walletservice.NewService(walletservice.Params{
		DB:     conn,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: cfg,
		Repo:   walletrepo.Provide(),
		Locker: locker,
	})
	technicians := technicianservice.NewService(technicianservice.Params{
		DB:        conn,
		Log:       log,
		Clock:     fake,
		Repo:      technicianrepo.Provide(),
		WalletSvc: wallets,
		AuditSvc:  audit,
	})
	defaults := ratedefaultsservice.NewService(ratedefaultsservice.Params{
		DB:       conn,
		Log:      log,
		Clock:    fake,
		Repo:     ratedefaultsrepo.Provide(),
		Seed:     config.NewStaticCompensationConfigHolder(config.DefaultCompensationConfig()),
		AuditSvc: audit,
	})
	earnings := earningservice.NewService(earningservice.Params{
		DB:            conn,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Repo:          earningrepo.Provide(),
		WalletSvc:     wallets,
		TechnicianSvc: technicians,
		RateDefaults:  defaults,
		AuditSvc:      audit,
		ObsMetrics:    obsmetrics.NewNoop(),
	})
	payouts := payoutservice.NewService(payoutservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       payoutrepo.Provide(),
		WalletSvc:  wallets,
		EarningSvc: earnings,
		AuditSvc:   audit,
		ObsMetrics: obsmetrics.NewNoop(),
	})
	reconciliation := reconciliationservice.NewService(reconciliationservice.Params{
		DB:        conn,
		Log:       log,
		Clock:     fake,
		Repo:      reconciliationrepo.Provide(),
		WalletSvc: wallets,
		Metrics:   sweepMetrics,
	})

	return &Engine{
		DB:             conn,
		Node:           node,
		Clock:          fake,
		Wallets:        wallets,
		Technicians:    technicians,
		RateDefaults:   defaults,
		Earnings:       earnings,
		Payouts:        payouts,
		Reconciliation: reconciliation,
		Audit:          audit,
		SweepMetrics:   sweepMetrics,
		Locker:         locker,
	}
}

// Technician registers a profile of the given type with no custom rate.
func (e *Engine) Technician(t testing.TB, technicianType string) snowflake.ID {
	t.Helper()
	id := e.Node.Generate()
	_, err := e.Technicians.UpsertProfile(context.Background(), techniciandomain.UpsertRequest{
		ID:   id,
		Type: technicianType,
	})
	if err != nil {
		t.Fatalf("upsert technician: %v", err)
	}
	return id
}

// Accrue verifies a payment for a fresh job and advances the clock so
// records keep a strict creation order.
func (e *Engine) Accrue(t testing.TB, technicianID snowflake.ID, amount int64) *earningdomain.EarningRecord {
	t.Helper()
	res, err := e.Earnings.OnPaymentVerified(context.Background(), earningdomain.PaymentVerified{
		JobID:        e.Node.Generate(),
		TechnicianID: technicianID,
		PaymentID:    e.Node.Generate(),
		Amount:       amount,
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	e.Clock.Advance(time.Second)
	return res.Record
}
