package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/techwallet/internal/config"
)

const keyPayoutRequest = "techwallet:payout:request:%s"

// PayoutRequestLimiter throttles payout requests per technician.
type PayoutRequestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPayoutRequestLimiter(cfg config.Config, client *redis.Client) *PayoutRequestLimiter {
	if client == nil || cfg.PayoutRequestRate <= 0 || cfg.PayoutRequestBurst <= 0 {
		return nil
	}
	return &PayoutRequestLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.PayoutRequestRate,
		burst:  cfg.PayoutRequestBurst,
	}
}

func (l *PayoutRequestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PayoutRequestLimiter) Allow(ctx context.Context, technicianID snowflake.ID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPayoutRequest, technicianID.String()), l.rate, l.burst)
}
