package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenwell/aimeter/internal/config"
	"github.com/lumenwell/aimeter/internal/observability/metrics"
)

// Limiter throttles usage-record writes per user. When disabled, or when
// redis is unreachable, every request is allowed so that metering never
// blocks the calling application.
type Limiter struct {
	bucket  *TokenBucket
	cfg     config.RateLimitConfig
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

func NewLimiter(bucket *TokenBucket, cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Limiter {
	return &Limiter{
		bucket:  bucket,
		cfg:     cfg.RateLimit,
		log:     log.Named("ratelimit"),
		metrics: m,
	}
}

func (l *Limiter) AllowRecord(ctx context.Context, userID int64) Decision {
	if l == nil || !l.cfg.Enabled || l.bucket == nil {
		return Decision{Allowed: true}
	}

	key := fmt.Sprintf("aimeter:record:%d", userID)
	res, err := l.bucket.Allow(ctx, key, l.cfg.RecordRate, l.cfg.RecordBurst)
	if err != nil {
		// Redis being down must not stop metering.
		l.log.Warn("rate limit check failed, allowing request",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return Decision{Allowed: true}
	}

	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, "usage_record")
		return Decision{Allowed: true}
	}

	l.metrics.RecordRateLimitDenied(ctx, "usage_record", "bucket_exhausted")
	return Decision{Allowed: false, RetryAfter: res.RetryAfter}
}
