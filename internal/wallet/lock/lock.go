// Package lock serializes balance mutations per technician.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/config"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWalletLock = "techwallet:wallet:lock:%s"

// Locker grants exclusive access to one technician's wallet. Locks on
// different technicians never contend.
type Locker interface {
	Lock(ctx context.Context, technicianID snowflake.ID) (release func(), err error)
}

// KeyedMutex is an in-process Locker with one slot per technician. Slots
// are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[snowflake.ID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[snowflake.ID]*slot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, technicianID snowflake.ID) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[technicianID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[technicianID] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(technicianID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.unref(technicianID, s)
		})
	}, nil
}

func (k *KeyedMutex) unref(technicianID snowflake.ID, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, technicianID)
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// lease is a cross-process lock keyed by string, such as *ratelimit.Locker.
type lease interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// DistributedLocker takes the in-process slot first, then a Redis lease, so
// only one waiter per process polls Redis.
type DistributedLocker struct {
	local  *KeyedMutex
	remote lease
	ttl    time.Duration
	log    *zap.Logger
}

func (d *DistributedLocker) Lock(ctx context.Context, technicianID snowflake.ID) (func(), error) {
	releaseLocal, err := d.local.Lock(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(keyWalletLock, technicianID.String())
	token, err := d.remote.Lock(ctx, key, d.ttl)
	if err != nil {
		releaseLocal()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.remote.Release(releaseCtx, key, token); err != nil {
				d.log.Warn("failed to release wallet lease",
					zap.String("technician_id", technicianID.String()),
					zap.Error(err),
				)
			}
			releaseLocal()
		})
	}, nil
}

// timedLocker bounds acquisition by the lock TTL and records wait time.
type timedLocker struct {
	inner    Locker
	timeout  time.Duration
	resource string
	metrics  *obsmetrics.SchedulerMetrics
}

func (t *timedLocker) Lock(ctx context.Context, technicianID snowflake.ID) (func(), error) {
	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	release, err := t.inner.Lock(lockCtx, technicianID)
	t.metrics.ObserveLockWait(t.resource, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	return release, nil
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Remote  *ratelimit.Locker            `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
}

func New(p Params) Locker {
	ttl := p.Config.WalletLockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	local := NewKeyedMutex()

	if p.Remote == nil {
		return &timedLocker{
			inner:    local,
			timeout:  ttl,
			resource: obsmetrics.LockResourceWalletInProcess,
			metrics:  p.Metrics,
		}
	}
	return &timedLocker{
		inner: &DistributedLocker{
			local:  local,
			remote: p.Remote,
			ttl:    ttl,
			log:    p.Log.Named("wallet.lock"),
		},
		timeout:  ttl,
		resource: obsmetrics.LockResourceWalletRedis,
		metrics:  p.Metrics,
	}
}
