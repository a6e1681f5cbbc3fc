package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// AttemptPruner deletes attempt-log rows older than a cutoff
type AttemptPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepObserver is told how many rows each sweep removed
type SweepObserver interface {
	AttemptsSwept(n int64)
}

// CleanupManager periodically trims the login attempt log to the retention
// period. Retention has no effect on lockout decisions, which only look at
// the failure window.
type CleanupManager struct {
	pruner    AttemptPruner
	observer  SweepObserver
	logger    *slog.Logger
	clock     clock.Clock
	retention time.Duration
	interval  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewCleanupManager(
	pruner AttemptPruner,
	observer SweepObserver,
	logger *slog.Logger,
	clk clock.Clock,
	retention time.Duration,
	interval time.Duration,
) *CleanupManager {
	if clk == nil {
		clk = clock.New()
	}
	return &CleanupManager{
		pruner:    pruner,
		observer:  observer,
		logger:    logger,
		clock:     clk,
		retention: retention,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start sweeps once immediately and then every interval until ctx is done
// or Stop is called. It returns at once if retention or interval is zero.
func (cm *CleanupManager) Start(ctx context.Context) {
	if cm.retention <= 0 || cm.interval <= 0 {
		cm.logger.Info("attempt log retention disabled")
		return
	}

	ticker := cm.clock.Ticker(cm.interval)
	defer ticker.Stop()

	cm.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.sweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.clock.Now().Add(-cm.retention)
	rowsDeleted, err := cm.pruner.DeleteOlderThan(sweepCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to sweep login attempts", slog.Any("error", err))
		return
	}

	if cm.observer != nil {
		cm.observer.AttemptsSwept(rowsDeleted)
	}
	if rowsDeleted > 0 {
		cm.logger.Info("login attempt sweep completed",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff),
		)
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
