// Package janitor sweeps aged uploads on a fixed interval. The sweeper is an
// explicitly owned task with a Start/Stop lifecycle tied to the process, not
// an untracked background timer.
package janitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes uploads older than the retention window.
type Sweeper interface {
	SweepOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

// Janitor runs the sweep on a ticker between Start and Stop.
type Janitor struct {
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// New constructs a Janitor.
func New(sweeper Sweeper, interval, retention time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		sweeper:   sweeper,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start launches the sweep loop. Calling Start twice without Stop is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.stop = cancel
	j.done = make(chan struct{})
	go j.run(runCtx, j.done)
	j.logger.Info("upload janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention))
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	stop, done := j.stop, j.done
	j.stop, j.done = nil, nil
	j.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (j *Janitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.sweeper.SweepOlderThan(ctx, j.retention)
			if err != nil {
				j.logger.Error("upload sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				j.logger.Info("swept aged uploads", zap.Int("removed", removed))
			}
		}
	}
}
