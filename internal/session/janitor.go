package session

import (
	"context"
	"time"

	"github.com/harshaverse/karmic/internal/platform/logger"
)

// Janitor periodically expires idle sessions so abandoned assets return
// their quota without an explicit cleanup call.
type Janitor struct {
	mgr    *Manager
	period time.Duration
	log    *logger.Logger
}

func NewJanitor(mgr *Manager, period time.Duration, log *logger.Logger) *Janitor {
	return &Janitor{
		mgr:    mgr,
		period: period,
		log:    log.With("component", "SessionJanitor"),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				j.log.Info("Janitor stopped")
				return
			case <-ticker.C:
				if n := j.mgr.Sweep(); n > 0 {
					j.log.Info("Expired idle sessions", "count", n)
				}
			}
		}
	}()
}
