package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the configuration document for changes and invokes the
// supplied callback with a freshly loaded, validated, normalized Config
// whenever the file is rewritten. Stop must be called to release the
// underlying fsnotify watch.
//
// A reload swaps in a brand-new, independently immutable Config snapshot; it
// never mutates a Config already handed to a caller. A failed reload (read
// or parse error) is reported through onError and the previous snapshot
// keeps serving, matching the "config loaded once" contract's spirit: a
// request is always answered against some fully-valid snapshot.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		_ = w.watcher.Close()
		<-w.done
	})
}

// Watch starts watching the loader's configuration file for changes. It
// returns an error if the loader has no path configured (there is nothing
// to watch) or if the underlying filesystem watch cannot be established.
func (l *Loader) Watch(onReload func(*Config), onError func(error)) (*Watcher, error) {
	if l.path == "" {
		return nil, fmt.Errorf("config: watch requires a configuration file path")
	}
	if onReload == nil {
		return nil, fmt.Errorf("config: watch requires a reload callback")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w := &Watcher{watcher: fsw, done: make(chan struct{})}
	target := filepath.Clean(l.path)

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := l.Load()
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				onReload(cfg)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return w, nil
}
