package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

const watchDebounce = 300 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands the
// result to a callback. Editors often emit bursts of write events, so
// reloads are debounced.
type Watcher struct {
	path    string
	onLoad  func(Config)
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
}

// NewWatcher watches path. onLoad runs on every successful reload;
// failed reloads are logged and the previous config stays in effect.
func NewWatcher(path string, onLoad func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory so we survive rename-replace saves.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: path, onLoad: onLoad, watcher: fw}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.pending != nil {
				w.pending.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("config watch: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(watchDebounce, w.reload)
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		glog.Warningf("config reload rejected: %v", err)
		return
	}
	glog.V(1).Infof("config reloaded from %s", w.path)
	w.onLoad(c)
}
