package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian-hq/veristat/pkg/engine"
)

// RecorderConfig contains configuration for the run recorder.
type RecorderConfig struct {
	// Enabled enables history recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel (default: 1000).
	AsyncBuffer int

	// WriteTimeout bounds each storage write (default: 5 seconds).
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists validation results for one run. Violation writes are
// batched through an async worker so validation throughput does not block on
// storage.
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	logger  *slog.Logger

	run     *Run
	mu      sync.Mutex
	writeCh chan []*StoredViolation
	wg      sync.WaitGroup
}

// NewRecorder starts a recorder for a new run against the given rule root.
// The run ID is a fresh UUID.
func NewRecorder(storage Storage, config *RecorderConfig, ruleRoot string, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "history.recorder"),
		run: &Run{
			ID:        uuid.NewString(),
			RuleRoot:  ruleRoot,
			StartedAt: time.Now().UTC(),
		},
		writeCh: make(chan []*StoredViolation, config.AsyncBuffer),
	}

	if config.Enabled {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

// RunID returns the run's identifier.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// Record enqueues one record's validation result.
func (r *Recorder) Record(result *engine.Result) {
	if !r.config.Enabled {
		return
	}

	r.mu.Lock()
	r.run.RecordCount++
	r.run.ViolationCount += len(result.Violations)
	r.mu.Unlock()

	if len(result.Violations) == 0 {
		return
	}

	now := time.Now().UTC()
	batch := make([]*StoredViolation, len(result.Violations))
	for i, v := range result.Violations {
		batch[i] = &StoredViolation{
			RunID:      r.run.ID,
			RecordID:   result.RecordID,
			Category:   result.Category,
			Instrument: result.Instrument,
			Field:      v.Field,
			Rule:       v.Rule,
			Message:    v.Message,
			RecordedAt: now,
		}
	}

	select {
	case r.writeCh <- batch:
	default:
		r.logger.Warn("history write buffer full, dropping violations",
			"record_id", result.RecordID,
			"count", len(batch),
		)
	}
}

// Complete finalizes the run: drains pending writes and persists the run
// summary.
func (r *Recorder) Complete(ctx context.Context) (*Run, error) {
	if r.config.Enabled {
		close(r.writeCh)
		r.wg.Wait()
	}

	r.mu.Lock()
	r.run.CompletedAt = time.Now().UTC()
	run := *r.run
	r.mu.Unlock()

	if r.config.Enabled {
		if err := r.storage.SaveRun(ctx, &run); err != nil {
			return &run, err
		}
	}
	return &run, nil
}

// worker drains the write channel into storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for batch := range r.writeCh {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		if err := r.storage.SaveViolations(ctx, batch); err != nil {
			r.logger.Error("failed to persist violations",
				"count", len(batch),
				"error", err,
			)
		}
		cancel()
	}
}
