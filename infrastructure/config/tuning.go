package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Tuning is the runtime-changeable part of the configuration: layout
// defaults an operator may want to adjust without a restart.
type Tuning struct {
	Layout  LayoutTuning  `yaml:"layout"`
	Session SessionTuning `yaml:"session"`
}

// LayoutTuning adjusts the initial layout parameters of new sessions.
type LayoutTuning struct {
	DefaultSpread float64 `yaml:"default_spread"`
	DefaultWidth  float64 `yaml:"default_width"`
	DefaultHeight float64 `yaml:"default_height"`
}

// SessionTuning adjusts session loop parameters.
type SessionTuning struct {
	TickIntervalMS int `yaml:"tick_interval_ms"`
}

// DefaultTuning returns the built-in tuning values.
func DefaultTuning() *Tuning {
	return &Tuning{
		Layout:  LayoutTuning{DefaultSpread: 1.0, DefaultWidth: 960, DefaultHeight: 600},
		Session: SessionTuning{TickIntervalMS: 33},
	}
}

func (t *Tuning) validate() error {
	if t.Layout.DefaultSpread < 0.8 || t.Layout.DefaultSpread > 2.2 {
		return fmt.Errorf("layout.default_spread must be within [0.8, 2.2]")
	}
	if t.Layout.DefaultWidth <= 0 || t.Layout.DefaultHeight <= 0 {
		return fmt.Errorf("layout default dimensions must be positive")
	}
	if t.Session.TickIntervalMS <= 0 || t.Session.TickIntervalMS > 1000 {
		return fmt.Errorf("session.tick_interval_ms must be between 1 and 1000")
	}
	return nil
}

// TuningWatcher watches the tuning file and reloads it on change. An
// invalid file keeps the current values.
type TuningWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.RWMutex
	current  *Tuning
	onChange []func(*Tuning)

	stopCh chan struct{}
}

// NewTuningWatcher loads the tuning file and prepares a watcher for it.
func NewTuningWatcher(path string, logger *zap.Logger) (*TuningWatcher, error) {
	tuning, err := loadTuningFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tuning file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch tuning file: %w", err)
	}
	// Watch the directory too, for editors that replace via rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch tuning directory", zap.Error(err))
	}

	return &TuningWatcher{
		path:    path,
		watcher: watcher,
		logger:  logger.Named("tuning"),
		current: tuning,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (w *TuningWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("tuning watcher started", zap.String("path", w.path))
}

// Stop ends the watch loop.
func (w *TuningWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// Current returns the active tuning values.
func (w *TuningWatcher) Current() *Tuning {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *TuningWatcher) OnChange(handler func(*Tuning)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

func (w *TuningWatcher) watchLoop() {
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("tuning watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file, keeping the current values when the new
// content is unreadable or invalid.
func (w *TuningWatcher) reload() {
	tuning, err := loadTuningFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload tuning, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = tuning
	handlers := append(([]func(*Tuning))(nil), w.onChange...)
	w.mu.Unlock()

	w.logger.Info("tuning reloaded",
		zap.Float64("defaultSpread", tuning.Layout.DefaultSpread),
		zap.Int("tickIntervalMS", tuning.Session.TickIntervalMS),
	)
	for _, handler := range handlers {
		go handler(tuning)
	}
}

func loadTuningFile(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}

	tuning := DefaultTuning()
	if err := yaml.Unmarshal(data, tuning); err != nil {
		return nil, fmt.Errorf("parse tuning yaml: %w", err)
	}
	if err := tuning.validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}
