package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type stalePurchaseRejector interface {
	RejectStaleInitiations(ctx context.Context, cutoff time.Time) (int64, error)
}

type cacheSweeper interface {
	Sweep() int
}

// Job expires purchase initiations that were never paid and sweeps expired
// catalog cache entries. Each Run is one pass; RunLoop repeats on a ticker.
type Job struct {
	purchases stalePurchaseRejector
	cache     cacheSweeper
	tokenTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewJob(purchases stalePurchaseRejector, cache cacheSweeper, tokenTTL time.Duration, logger *zap.Logger) *Job {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purchases: purchases,
		cache:     cache,
		tokenTTL:  tokenTTL,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.purchases != nil {
		cutoff := j.now().Add(-j.tokenTTL)
		rejected, err := j.purchases.RejectStaleInitiations(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("reject stale initiations: %w", err)
		}
		if rejected > 0 {
			j.logger.Info("rejected stale purchase initiations", zap.Int64("rejected", rejected))
		}
	}

	if j.cache != nil {
		if swept := j.cache.Sweep(); swept > 0 {
			j.logger.Debug("swept expired cache entries", zap.Int("swept", swept))
		}
	}

	return nil
}

// RunLoop runs one pass immediately, then repeats on the interval until ctx
// is done. Pass failures are logged, not fatal.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	if err := j.Run(ctx); err != nil {
		j.logger.Warn("cleanup pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup pass failed", zap.Error(err))
			}
		}
	}
}
