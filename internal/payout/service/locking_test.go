package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/payout/domain"
	"github.com/smallbiznis/techwallet/internal/testutil/engine"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/internal/wallet/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLocker struct {
	inner lock.Locker

	mu       sync.Mutex
	acquired []snowflake.ID
	held     int
	released int
}

func (c *countingLocker) Lock(ctx context.Context, technicianID snowflake.ID) (func(), error) {
	release, err := c.inner.Lock(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.acquired = append(c.acquired, technicianID)
	c.held++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.held--
			c.released++
			c.mu.Unlock()
			release()
		})
	}, nil
}

func (c *countingLocker) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquired = nil
	c.released = 0
}

func (c *countingLocker) snapshot() ([]snowflake.ID, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]snowflake.ID(nil), c.acquired...), c.held, c.released
}

func TestBalanceMutationsTakeTechnicianLock(t *testing.T) {
	counter := &countingLocker{}
	e := engine.New(t, engine.WithLocker(func(inner lock.Locker) lock.Locker {
		counter.inner = inner
		return counter
	}))
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	other := e.Technician(t, "CONTRACTOR")
	counter.reset()

	e.Accrue(t, tech, 10000)
	acquired, held, released := counter.snapshot()
	assert.Equal(t, []snowflake.ID{tech}, acquired)
	assert.Zero(t, held)
	assert.Equal(t, 1, released)

	// Requesting reads the balance without locking; approval is the
	// binding step.
	payout, err := e.Payouts.RequestPayout(ctx, request(tech, 200))
	require.NoError(t, err)
	acquired, _, _ = counter.snapshot()
	assert.Len(t, acquired, 1)

	paid, err := e.Payouts.Approve(ctx, payout.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	_, err = e.Wallets.Credit(ctx, other, 75, walletdomain.Source{
		Kind: walletdomain.SourceKindAccrual,
		ID:   e.Node.Generate(),
	})
	require.NoError(t, err)

	acquired, held, released = counter.snapshot()
	assert.Equal(t, []snowflake.ID{tech, tech, other}, acquired)
	assert.Zero(t, held)
	assert.Equal(t, 3, released)
}

func TestApprovalWaitsForHeldTechnicianLock(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 10000)
	payout, err := e.Payouts.RequestPayout(ctx, request(tech, 500))
	require.NoError(t, err)

	release, err := e.Locker.Lock(ctx, tech)
	require.NoError(t, err)

	type outcome struct {
		payout *domain.PayoutRequest
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := e.Payouts.Approve(ctx, payout.ID, approver)
		done <- outcome{payout: p, err: err}
	}()

	select {
	case <-done:
		t.Fatal("approval finished while another holder had the technician lock")
	case <-time.After(100 * time.Millisecond):
	}
	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.StatusPaid, res.payout.Status)

	balance, err = e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
