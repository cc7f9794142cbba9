// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher monitors configuration YAML for changes and triggers a full
// reload with debouncing. It runs in one of two modes: a directory of
// overlay files (LoadDir) or a single config file (Load).
type Watcher struct {
	dir      string
	file     string // base name; non-empty selects single-file mode
	onChange func(*Config, string)
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewWatcher watches a config directory. onChange receives the merged
// config and the name of the file that triggered the reload.
func NewWatcher(dir string, onChange func(*Config, string), logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// NewFileWatcher watches a single config file. The parent directory is
// watched so editors that replace the file by rename are still seen.
func NewFileWatcher(path string, onChange func(*Config, string), logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      filepath.Dir(path),
		file:     filepath.Base(path),
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching for changes.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	go w.loop(ctx)
	w.logger.Info("config watcher started",
		zap.String("dir", w.dir),
		zap.String("file", w.file),
	)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	var debounceTimer *time.Timer
	var lastFile string

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			lastFile = filepath.Base(event.Name)
			w.logger.Debug("config file changed", zap.String("file", lastFile))

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
				w.reload(lastFile)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// relevant filters watch events down to YAML changes we care about.
// Rename is included because editors commonly write-and-rename.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
		return false
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	if w.file != "" && filepath.Base(event.Name) != w.file {
		return false
	}
	return true
}

func (w *Watcher) reload(changedFile string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var cfg *Config
	var err error
	if w.file != "" {
		cfg, err = Load(filepath.Join(w.dir, w.file))
	} else {
		cfg, err = LoadDir(w.dir)
	}
	if err != nil {
		w.logger.Error("config reload failed", zap.String("file", changedFile), zap.Error(err))
		return
	}

	w.logger.Info("config reloaded", zap.String("trigger", changedFile))
	w.onChange(cfg, changedFile)
}
