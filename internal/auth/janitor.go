package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor deletes dead sessions periodically.
type Janitor struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewJanitor(svc *Service, interval time.Duration, log *zap.Logger) *Janitor {
	return &Janitor{svc: svc, interval: interval, log: log.Named("session-janitor")}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		j.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.svc.CleanupSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.log.Error("session cleanup failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		j.log.Info("removed dead sessions", zap.Int64("count", n))
	}
}
