// Package watcher invalidates resolver caches when rule files change on
// disk. Rule files are static configuration during a run; the watcher exists
// for long-lived deployments where an operator edits rules in place and
// expects the next batch to pick them up.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config contains configuration for the rule file watcher.
type Config struct {
	// Path is the rule root directory to watch.
	Path string

	// DebounceInterval is the quiet period before firing the change callback
	// after a burst of file events (default: 250ms).
	DebounceInterval time.Duration

	// Extensions is the list of file extensions to watch (default: ".yaml",
	// ".yml").
	Extensions []string
}

// DefaultConfig returns the default watcher configuration for a rule root.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:             path,
		DebounceInterval: 250 * time.Millisecond,
		Extensions:       []string{".yaml", ".yml"},
	}
}

// RuleWatcher watches a rule tree and fires a callback after debounced
// changes. The usual callback clears the resolver caches.
type RuleWatcher struct {
	watcher *fsnotify.Watcher
	config  *Config
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a rule watcher.
func New(config *Config, logger *slog.Logger) (*RuleWatcher, error) {
	if config == nil {
		return nil, fmt.Errorf("watcher config is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 250 * time.Millisecond
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".yaml", ".yml"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &RuleWatcher{
		watcher: fsw,
		config:  config,
		logger:  logger.With("component", "rules.watcher"),
	}, nil
}

// Watch blocks processing file events until the context is cancelled,
// invoking onChange after each debounced burst of rule file changes.
func (w *RuleWatcher) Watch(ctx context.Context, onChange func()) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.addTree(w.config.Path); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	w.logger.Info("rule watcher started",
		"path", w.config.Path,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("rule file event",
				"path", event.Name,
				"op", event.Op.String(),
			)
			// New directories must be added to the watch set.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
					continue
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceInterval)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.config.DebounceInterval)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.logger.Info("rule files changed, invalidating")
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *RuleWatcher) Close() error {
	return w.watcher.Close()
}

// addTree adds a directory and its subdirectories to the watch set.
func (w *RuleWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// relevant filters events to rule file writes, creates, removes and renames.
func (w *RuleWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return true
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, allowed := range w.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
