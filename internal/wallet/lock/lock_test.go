package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyedMutexSerializesSameTechnician(t *testing.T) {
	k := NewKeyedMutex()
	id := snowflake.ID(7)

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Lock(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutexDoesNotBlockOtherTechnicians(t *testing.T) {
	k := NewKeyedMutex()
	release, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	other, err := k.Lock(ctx, 2)
	require.NoError(t, err)
	other()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	release, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, k.size())
}

func TestNewWithoutRedisUsesInProcessLock(t *testing.T) {
	locker := New(Params{
		Config: config.Config{WalletLockTTL: 30 * time.Millisecond},
		Log:    zap.NewNop(),
	})

	release, err := locker.Lock(context.Background(), 9)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), 9)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	release()

	again, err := locker.Lock(context.Background(), 9)
	require.NoError(t, err)
	again()
}

type scriptedLease struct {
	mu         sync.Mutex
	lockErr    error
	releaseErr error
	locked     []string
	released   []string
	ttls       []time.Duration
}

func (l *scriptedLease) Lock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return "", l.lockErr
	}
	l.locked = append(l.locked, key)
	l.ttls = append(l.ttls, ttl)
	return "token-" + key, nil
}

func (l *scriptedLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, key+"="+token)
	return l.releaseErr
}

func newDistributed(remote lease) *DistributedLocker {
	return &DistributedLocker{
		local:  NewKeyedMutex(),
		remote: remote,
		ttl:    time.Second,
		log:    zap.NewNop(),
	}
}

func TestDistributedLockerTakesLeasePerTechnician(t *testing.T) {
	remote := &scriptedLease{}
	d := newDistributed(remote)

	release, err := d.Lock(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"techwallet:wallet:lock:42"}, remote.locked)
	assert.Equal(t, []time.Duration{time.Second}, remote.ttls)

	// A second waiter in this process queues on the local slot and never
	// reaches Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = d.Lock(ctx, 42)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, remote.locked, 1)

	release()
	release()
	assert.Equal(t, []string{"techwallet:wallet:lock:42=token-techwallet:wallet:lock:42"}, remote.released)
	assert.Equal(t, 0, d.local.size())

	again, err := d.Lock(context.Background(), 42)
	require.NoError(t, err)
	again()
}

func TestDistributedLockerFreesLocalSlotWhenLeaseFails(t *testing.T) {
	remote := &scriptedLease{lockErr: ratelimit.ErrLockTimeout}
	d := newDistributed(remote)

	_, err := d.Lock(context.Background(), 42)
	assert.ErrorIs(t, err, ratelimit.ErrLockTimeout)
	assert.Equal(t, 0, d.local.size())
	assert.Empty(t, remote.released)
}

func TestDistributedLockerReleasesLocallyWhenLeaseReleaseFails(t *testing.T) {
	remote := &scriptedLease{releaseErr: errors.New("connection reset")}
	d := newDistributed(remote)

	release, err := d.Lock(context.Background(), 42)
	require.NoError(t, err)
	release()
	assert.Len(t, remote.released, 1)
	assert.Equal(t, 0, d.local.size())
}

func TestNewWithUnreachableRedisFailsFast(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	locker := New(Params{
		Config: config.Config{WalletLockTTL: 2 * time.Second},
		Log:    zap.NewNop(),
		Remote: ratelimit.NewLocker(client),
	})

	_, err := locker.Lock(context.Background(), 9)
	require.Error(t, err)

	// The local slot was handed back, so the retry reaches Redis again
	// instead of waiting out the TTL.
	start := time.Now()
	_, err = locker.Lock(context.Background(), 9)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
