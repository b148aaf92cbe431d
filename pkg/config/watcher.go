package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// OnReload receives the result of each reload triggered by a file change.
// When the reload fails the previous good config is delivered with the
// error.
type OnReload func(cfg *Config, err error)

// Watch reloads the configuration whenever its file changes, until ctx is
// cancelled. Editors replace files rather than rewrite them, so the parent
// directory is watched and events are debounced.
func (l *Loader) Watch(ctx context.Context, onReload OnReload) error {
	target, _, err := readConfigPayload(l.path)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}

	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !sameFile(ev.Name, target) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				cfg, err := l.Reload()
				if onReload != nil {
					onReload(cfg, err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	if aa == bb {
		return true
	}
	ia, errA := os.Stat(aa)
	ib, errB := os.Stat(bb)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
