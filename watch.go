// change notification: fsnotify watchers feeding a depth-1 debouncer.
//
// a burst of writes collapses into one callback: every event restarts the
// quiescence timer instead of queueing another rebuild.

package main

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer runs fn once the trigger stream has been quiet for window.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	return &debouncer{window: window, fn: fn}
}

// trigger (re)starts the timer.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped {
		d.fn()
	}
}

// stop cancels a pending run; later triggers are ignored.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// watchSpec describes what to watch for one session.
type watchSpec struct {
	dirs   []string               // directories to watch; missing ones are skipped
	match  func(path string) bool // does a change to path affect the session
	follow func(path string) bool // should a newly created directory be watched
}

// watchFiles subscribes to changes and returns the unsubscribe handle.
// at least one directory in spec.dirs must exist.
func watchFiles(spec watchSpec, onUpdate func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	added := 0
	var lastErr error
	for _, dir := range spec.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.Add(dir); err != nil {
			lastErr = err
			continue
		}
		added++
	}
	if added == 0 {
		w.Close()
		if lastErr == nil {
			lastErr = os.ErrNotExist
		}
		return nil, lastErr
	}

	deb := newDebouncer(debounceWindow, onUpdate)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) && spec.follow != nil && spec.follow(ev.Name) {
					addFollowed(w, ev.Name, spec.follow)
					// the new directory may already hold logs
					deb.trigger()
					continue
				}
				if ev.Op == fsnotify.Chmod {
					continue
				}
				if spec.match(ev.Name) {
					deb.trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watch: %v", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			deb.stop()
			w.Close()
		})
	}, nil
}

// addFollowed watches dir and every followed directory already below it.
// `mkdir -p a/b` creates b before a is watched, so b raises no event.
func addFollowed(w *fsnotify.Watcher, dir string, follow func(string) bool) {
	if err := w.Add(dir); err != nil {
		log.Printf("watch: add %s: %v", dir, err)
		return
	}
	children, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, c := range children {
		sub := filepath.Join(dir, c.Name())
		if c.IsDir() && follow(sub) {
			addFollowed(w, sub, follow)
		}
	}
}
