// Package watch turns filesystem events under a local tree into resync
// requests.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/bamsammich/treesync/internal/filter"
	"github.com/bamsammich/treesync/internal/transport"
)

// DefaultDebounce is how long the tree must be quiet before a request is sent.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Rules limits which directories are watched. Nil watches everything.
	Rules    *filter.Rules
	Debounce time.Duration
}

// Watcher watches a directory tree recursively. fsnotify watches single
// directories, so new subdirectories are added as they appear.
type Watcher struct {
	fs       afero.Fs
	watcher  *fsnotify.Watcher
	rules    *filter.Rules
	requests chan struct{}
	done     chan struct{}
	root     string
	wg       sync.WaitGroup
	debounce time.Duration
	once     sync.Once
}

// New starts watching root.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w := &Watcher{
		fs:       afero.NewOsFs(),
		watcher:  fw,
		rules:    opts.Rules,
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
		root:     abs,
		debounce: opts.Debounce,
	}
	if err := w.addTree(abs); err != nil {
		if cerr := fw.Close(); cerr != nil {
			slog.Warn("failed to close file watcher", "error", cerr)
		}
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Requests delivers resync requests. Requests that arrive while one is
// already pending are merged into it.
func (w *Watcher) Requests() <-chan struct{} {
	return w.requests
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

// addTree watches dir and every subdirectory the rules descend into.
func (w *Watcher) addTree(dir string) error {
	return afero.Walk(w.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			slog.Warn("cannot watch", "path", p, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if p != w.root && !w.descends(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			slog.Warn("cannot watch", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) descends(p string) bool {
	if w.rules == nil {
		return true
	}
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	return w.rules.Match(filepath.ToSlash(rel), true) == filter.Include
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addIfDir(ev.Name)
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", "error", err)
			// Events may have been dropped; resync to be safe.
			timer.Reset(w.debounce)
		case <-timer.C:
			select {
			case w.requests <- struct{}{}:
			default:
			}
		}
	}
}

// relevant filters out metadata-only events and our own temp files.
func (*Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return !transport.IsTempName(filepath.Base(ev.Name))
}

func (w *Watcher) addIfDir(p string) {
	info, err := w.fs.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("stat new entry", "path", p, "error", err)
		}
		return
	}
	if !info.IsDir() || !w.descends(p) {
		return
	}
	if err := w.addTree(p); err != nil {
		slog.Warn("cannot watch", "path", p, "error", err)
	}
}
