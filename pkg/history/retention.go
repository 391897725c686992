package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig contains configuration for the retention pruner.
type RetentionConfig struct {
	// RetentionDays is how many days of runs to keep. 0 disables pruning.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning, for example
	// "0 3 * * *" (daily at 3 AM). Empty disables the scheduler.
	PruneSchedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner deletes runs older than the retention window, either on demand or
// on a cron schedule.
type Pruner struct {
	storage Storage
	config  *RetentionConfig
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a retention pruner.
func NewPruner(storage Storage, config *RetentionConfig, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "history.retention"),
		cron:    cron.New(),
	}
}

// Prune deletes runs started before the retention cutoff and returns the
// number of runs deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.storage.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}

	p.logger.Info("pruned history runs",
		"deleted", deleted,
		"retention_days", p.config.RetentionDays,
	)
	return deleted, nil
}

// Start schedules automatic pruning per PruneSchedule. It returns
// immediately; the scheduler stops when the context is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.PruneSchedule == "" || p.config.RetentionDays <= 0 {
		p.logger.Info("retention scheduling disabled")
		return nil
	}
	if p.running {
		return fmt.Errorf("pruner already running")
	}

	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.PruneSchedule, err)
	}

	_, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop halts scheduled pruning.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cron.Stop()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}
