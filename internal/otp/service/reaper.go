package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredDeleter removes records that expired at or before a time.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Reaper periodically deletes expired codes. Verify already ignores expired codes;
// the reaper keeps the table from growing.
type Reaper struct {
	store    ExpiredDeleter
	interval time.Duration
	nowF     func() time.Time
	log      zerolog.Logger
}

// NewReaper returns a Reaper that sweeps store every interval.
func NewReaper(store ExpiredDeleter, interval time.Duration, log zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{store: store, interval: interval, nowF: time.Now, log: log}
}

// Sweep runs a single pass and returns the number of rows removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpired(ctx, r.nowF().UTC())
	if err != nil {
		r.log.Error().Err(err).Msg("reaper: sweep failed")
		return 0, err
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Msg("reaper: removed expired codes")
	}
	return n, nil
}

// Run sweeps until ctx is canceled. Sweep errors are logged and do not stop the loop.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	_, _ = r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.Sweep(ctx)
		}
	}
}
