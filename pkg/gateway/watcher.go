package gateway

import (
	"context"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events editors produce on save
const reloadDebounce = 200 * time.Millisecond

// ReloadFunc receives the unit list of a changed configuration file
type ReloadFunc func(configs []units.UnitConfig)

// ConfigWatcher reloads the units of a configuration file when it changes.
// Invalid edits are logged and ignored.
type ConfigWatcher struct {
	filename string
	onReload ReloadFunc
	logger   logging.Logger
	watcher  *fsnotify.Watcher
}

func NewConfigWatcher(filename string, onReload ReloadFunc, logger logging.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIOError("failed to create file watcher", err)
	}

	// watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(filename)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.NewIOError("failed to watch configuration directory", err).WithContext("dir", dir)
	}

	return &ConfigWatcher{
		filename: filepath.Clean(filename),
		onReload: onReload,
		logger:   logger,
		watcher:  watcher,
	}, nil
}

// Run blocks until ctx is done
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filename || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Configuration watcher error: %v", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	config, err := LoadConfigFromFile(w.filename)
	if err != nil {
		w.logger.Warnf("Ignoring configuration change, load failed: %v", err)
		return
	}
	if err := ValidateConfig(config); err != nil {
		w.logger.Warnf("Ignoring configuration change, validation failed: %v", err)
		return
	}

	w.logger.Infof("Configuration reloaded from %s, units: %d", w.filename, len(config.Units))
	w.onReload(config.Units)
}
