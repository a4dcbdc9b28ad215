package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/techwallet/internal/observability/logger"
	"github.com/smallbiznis/techwallet/internal/ratelimit"
	"go.uber.org/zap"
)

// payoutLimiter is satisfied by *ratelimit.PayoutRequestLimiter.
type payoutLimiter interface {
	Enabled() bool
	Allow(ctx context.Context, technicianID snowflake.ID) (*ratelimit.Result, error)
}

// PayoutRequestRateLimit throttles payout requests per technician. It is a
// no-op when the limiter is not configured.
func (s *Server) PayoutRequestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.payoutLimiter == nil || !s.payoutLimiter.Enabled() {
			c.Next()
			return
		}

		technicianID, err := technicianIDParam(c.Param("id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		result, err := s.payoutLimiter.Allow(ctx, technicianID)
		if err != nil {
			logger.FromContext(ctx).Warn("payout request rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			route := strings.TrimSpace(c.FullPath())
			logger.FromContext(ctx).Warn("payout request rate limit exceeded",
				zap.String("technician_id", technicianID.String()),
				zap.String("route", route),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, route)

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}
