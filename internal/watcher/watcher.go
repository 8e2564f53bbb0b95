// Package watcher hot-reloads the configuration file. It watches the config
// directory through fsnotify, debounces rapid write events, and invokes the
// reload callback only when the file content actually changed.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/pulseboard/pulseboard/internal/config"
)

// configReloadDebounce absorbs editor save storms: write, chmod, rename
// events for one save collapse into a single reload.
const configReloadDebounce = 150 * time.Millisecond

// Watcher watches one configuration file for changes.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu          sync.Mutex
	reloadTimer *time.Timer
	lastHash    string
}

// NewWatcher creates a watcher over the given config file.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}
	if data, errRead := os.ReadFile(configPath); errRead == nil {
		w.lastHash = hashOf(data)
	}
	return w, nil
}

// Start watches until the context is canceled. The parent directory is
// watched rather than the file itself so atomic save-by-rename keeps working.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}
	log.Debugf("watching config file: %s", w.configPath)

	for {
		select {
		case <-ctx.Done():
			w.stopReloadTimer()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, w.reloadIfChanged)
}

func (w *Watcher) stopReloadTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
}

// reloadIfChanged re-reads the config file and fires the callback when the
// content hash differs from the last applied one.
func (w *Watcher) reloadIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for reload: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debug("ignoring empty config file write event")
		return
	}

	newHash := hashOf(data)
	w.mu.Lock()
	unchanged := w.lastHash == newHash
	if !unchanged {
		w.lastHash = newHash
	}
	w.mu.Unlock()
	if unchanged {
		log.Debug("config file content unchanged, skipping reload")
		return
	}

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	log.Infof("config file changed, reloading: %s", w.configPath)
	w.reloadCallback(cfg)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
