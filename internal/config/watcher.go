// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"hash"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a semantically meaningful configuration change identified by
// a Watcher.
type Change struct {
	Event  []fsnotify.Event
	Config *Animation
	Sum    Sum
	Err    error
}

// Op returns an aggregated fsnotify.Op for all elements of the receivers'
// Event field.
func (c Change) Op() fsnotify.Op {
	var op fsnotify.Op
	for _, e := range c.Event {
		op |= e.Op
	}
	return op
}

// Watcher collects raw fsnotify.Events for a configuration file and the
// image files it references and filters for semantically meaningful
// configuration changes.
type Watcher struct {
	path     string
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	hash     hash.Hash
	sum      Sum
	files    map[string]bool
	log      *slog.Logger
}

// NewWatcher starts an fsnotify.Watcher for the configuration file at path,
// sending change events on the changes channel when Watch is called. The
// debounce parameter specifies how long to wait after the last fsnotify.Event
// before reading the configuration to ensure that writes will be reflected
// in the semantic hash. If it is less than zero, FileDebounce is used.
//
// The configuration at path is read when the watcher is created; changes
// are only reported when the semantic hash of the configuration differs
// from the last valid configuration seen. Invalid configurations are always
// reported, and the first valid configuration after an invalid one is
// always reported.
func NewWatcher(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		dir:      filepath.Dir(path),
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		hash:     sha1.New(),
		files:    map[string]bool{path: true},
		log:      log.With(slog.String("component", "config_watcher")),
	}
	err = watcher.Add(w.dir)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	cfg, sum, err := w.read()
	if err != nil {
		watcher.Close()
		return nil, err
	}
	w.sum = sum
	w.watchImages(ctx, cfg)
	w.log.LogAttrs(ctx, slog.LevelDebug, "initial config", slog.Any("sum", sumValue{sum}))
	return w, nil
}

// Watch starts the watcher's event processing loop. It returns when the
// context is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending []fsnotify.Event
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(ev.Name)] {
				continue
			}
			w.log.LogAttrs(ctx, slog.LevelDebug, "event", slog.Any("event", eventValue{ev}))
			pending = append(pending, ev)
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reload(ctx, pending)
			pending = nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

// Close closes the underlying fsnotify.Watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload(ctx context.Context, events []fsnotify.Event) {
	cfg, sum, err := w.read()
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelWarn, "invalid config", slog.Any("error", err))
		// Forget the last valid state so that a return to it is reported.
		w.sum = Sum{}
		w.send(ctx, Change{Event: events, Err: err})
		return
	}
	if sum == w.sum {
		w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.Any("sum", sumValue{sum}))
		return
	}
	w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.Any("sum", sumValue{sum}), slog.Any("previous", sumValue{w.sum}))
	w.sum = sum
	w.watchImages(ctx, cfg)
	w.send(ctx, Change{Event: events, Config: cfg, Sum: sum})
}

func (w *Watcher) read() (*Animation, Sum, error) {
	cfg, err := Read(w.path)
	if err != nil {
		return nil, Sum{}, err
	}
	w.hash.Reset()
	sum, err := sumOf(w.hash, cfg, w.dir)
	if err != nil {
		return nil, Sum{}, err
	}
	return cfg, sum, nil
}

// watchImages adds watches for the image files referenced by cfg.
func (w *Watcher) watchImages(ctx context.Context, cfg *Animation) {
	refs := []string{cfg.Background.Colormap}
	for _, s := range cfg.Scenes.Scene {
		refs = append(refs, s.Image)
	}
	for _, ref := range refs {
		src, err := ParseSource(ref, w.dir)
		if err != nil || src.Path == "" {
			continue
		}
		path := filepath.Clean(src.Path)
		if w.files[path] {
			continue
		}
		w.files[path] = true
		err = w.watcher.Add(filepath.Dir(path))
		if err != nil {
			w.log.LogAttrs(ctx, slog.LevelWarn, "watch image", slog.String("path", path), slog.Any("error", err))
		}
	}
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
