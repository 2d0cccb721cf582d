package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/storefrontlab/storefront-backend/pkg/logger"
)

const defaultExpireBatch = 200

// SessionTTLJobParams configure the checkout expiration sweep.
type SessionTTLJobParams struct {
	Logger    *logger.Logger
	Checkout  sessionExpirer
	BatchSize int
}

type sessionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// NewSessionTTLJob builds the cron job that expires overdue checkout sessions.
// Expiry also happens lazily on read; the sweep catches sessions nobody
// touches again.
func NewSessionTTLJob(params SessionTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpireBatch
	}
	return &sessionTTLJob{
		logg:     params.Logger,
		checkout: params.Checkout,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type sessionTTLJob struct {
	logg     *logger.Logger
	checkout sessionExpirer
	batch    int
	now      func() time.Time
}

func (j *sessionTTLJob) Name() string { return "session-ttl" }

func (j *sessionTTLJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.checkout.ExpireDue(ctx, j.now().UTC(), j.batch)
		total += expired
		if err != nil {
			j.logExpired(ctx, total)
			return fmt.Errorf("expire due sessions: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	j.logExpired(ctx, total)
	return nil
}

func (j *sessionTTLJob) logExpired(ctx context.Context, total int) {
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "session expiration loop complete")
}
