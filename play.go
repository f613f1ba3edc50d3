// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gofrs/flock"

	"github.com/kortschak/macwall/internal/animation"
	"github.com/kortschak/macwall/internal/build"
	"github.com/kortschak/macwall/internal/config"
	"github.com/kortschak/macwall/internal/slogext"
	"github.com/kortschak/macwall/internal/state"
	"github.com/kortschak/macwall/internal/xdg"
)

const (
	// appDir is the name of the application's directory within XDG
	// base directories.
	appDir = "macwall"

	// cacheKeep is the number of bundles retained in the cache.
	cacheKeep = 16
)

func playCmd(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) int {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	bundlePath := fs.String("bundle", "", "animation bundle file")
	cfgPath := fs.String("config", "", "animation configuration file (default "+appDir+"/animation.toml in the XDG config directories)")
	fps := fs.Float64("fps", 30, "samples per second")
	dur := fs.Duration("for", 0, "play duration (zero plays until interrupted)")
	ticks := fs.Int("ticks", 0, "emit this many samples on a virtual clock without waiting (zero uses the wall clock)")
	seed := fs.Int64("seed", -1, "seed for initial scene selection when loading a bundle (negative is random)")
	aspect := fs.Float64("aspect", 16.0/9.0, "viewport aspect ratio")
	watch := fs.Bool("watch", false, "rebuild the animation when the configuration changes")
	useCache := fs.Bool("cache", false, "cache built configurations in the XDG cache directory")
	if status, ok := parseFlags(fs, args); !ok {
		return status
	}
	switch {
	case fs.NArg() != 0,
		*bundlePath != "" && *cfgPath != "",
		*bundlePath != "" && (*watch || *useCache),
		*fps <= 0, *aspect <= 0, *ticks < 0, *dur < 0:
		fs.Usage()
		return invocationError
	}
	if *bundlePath == "" && *cfgPath == "" {
		path, err := xdg.Config(filepath.Join(appDir, "animation.toml"), false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "no animation specified: %v\n", err)
			return invocationError
		}
		*cfgPath = path
	}

	release, err := lock()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	defer release()

	var rnd *rand.Rand
	if *seed >= 0 {
		rnd = rand.New(rand.NewPCG(uint64(*seed), 0))
	}

	var db *state.DB
	if *useCache {
		db, err = openCache(log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open bundle cache: %v\n", err)
			return internalError
		}
		defer db.Close()
	}

	var a *animation.Animation
	switch {
	case *bundlePath != "":
		a, err = load(ctx, *bundlePath, rnd, log)
	case db != nil:
		a, err = cached(ctx, db, *cfgPath, rnd, log)
	default:
		a, err = build.Load(ctx, *cfgPath, log)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load animation: %v\n", err)
		return internalError
	}

	var changes chan config.Change
	if *watch {
		changes = make(chan config.Change)
		w, err := config.NewWatcher(ctx, *cfgPath, changes, -1, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to watch configuration: %v\n", err)
			return internalError
		}
		defer w.Close()
		go func() {
			err := w.Watch(ctx)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "watch", slog.Any("error", err))
			}
		}()
	}

	p := &player{
		anim:   a,
		aspect: float32(*aspect),
		enc:    json.NewEncoder(stdout),
		dir:    filepath.Dir(*cfgPath),
		cache:  db,
		log:    log,
	}
	log.LogAttrs(ctx, slog.LevelInfo, "play", slog.Int("scenes", a.SceneCount()), slog.Int("initial_scene", p.scene()))
	if *ticks > 0 {
		err = p.runVirtual(ctx, *ticks, *fps, changes)
	} else {
		err = p.run(ctx, *fps, *dur, changes)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to play animation: %v\n", err)
		return internalError
	}
	return success
}

// player samples an animation and writes each sample as a JSON line.
type player struct {
	anim   *animation.Animation
	aspect float32
	enc    *json.Encoder

	// dir is the directory holding the
	// configuration for rebuilds.
	dir   string
	cache *state.DB

	log *slog.Logger
}

func (p *player) scene() int {
	i, _ := p.anim.Cursor()
	return i
}

// run samples the animation on the wall clock at fps samples per second
// until ctx is cancelled or dur has elapsed.
func (p *player) run(ctx context.Context, fps float64, dur time.Duration, changes <-chan config.Change) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()
	var deadline <-chan time.Time
	if dur > 0 {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		deadline = timer.C
	}
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case c := <-changes:
			if p.apply(ctx, c) {
				start = time.Now()
			}
		case now := <-ticker.C:
			err := p.emit(float32(now.Sub(start).Seconds()))
			if err != nil {
				return err
			}
		}
	}
}

// runVirtual emits n samples at intervals of 1/fps seconds without
// waiting between them. Configuration changes are applied between samples
// and restart the clock.
func (p *player) runVirtual(ctx context.Context, n int, fps float64, changes <-chan config.Change) error {
	var base int
	for i := range n {
		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			if p.apply(ctx, c) {
				base = i
			}
		default:
		}
		err := p.emit(float32(float64(i-base) / fps))
		if err != nil {
			return err
		}
	}
	return nil
}

// apply rebuilds the animation from a configuration change, returning
// whether the animation was replaced.
func (p *player) apply(ctx context.Context, c config.Change) bool {
	if c.Err != nil {
		p.log.LogAttrs(ctx, slog.LevelWarn, "configuration error", slog.Any("change", config.ChangeValue{Change: c}))
		return false
	}
	a, err := build.Build(ctx, c.Config, p.dir, p.log)
	if err != nil {
		p.log.LogAttrs(ctx, slog.LevelWarn, "rebuild", slog.Any("error", err))
		return false
	}
	if p.cache != nil {
		err = store(p.cache, c.Sum, a)
		if err != nil {
			p.log.LogAttrs(ctx, slog.LevelWarn, "cache bundle", slog.Any("error", err))
		}
	}
	p.log.LogAttrs(ctx, slog.LevelInfo, "reloaded", slog.Any("change", config.ChangeValue{Change: c}))
	p.anim = a
	return true
}

func (p *player) emit(t float32) error {
	f := p.anim.Frame(t, p.aspect)
	p.log.LogAttrs(context.Background(), slog.LevelDebug, "frame",
		slog.Float64("time", float64(t)),
		slog.Int("scene", f.Scene),
		slog.Any("properties", slogext.Properties(f.Properties)),
	)
	return p.enc.Encode(sample{
		Time:    f.Time,
		Scene:   f.Scene,
		Frame:   f.ImageIndex,
		Elapsed: f.Elapsed,
		Properties: properties{
			CameraPos:     f.Properties.CameraPos,
			CameraDir:     f.Properties.CameraDir,
			Scale:         f.Properties.Scale,
			Frame:         f.Properties.Frame,
			Progress:      f.Properties.Progress,
			ProgressAngle: f.Properties.ProgressAngle,
		},
		BackgroundTop:    f.BackgroundTop,
		BackgroundBottom: f.BackgroundBottom,
		Foreground:       f.Foreground,
	})
}

// sample is the JSON line written for each tick.
type sample struct {
	Time             float32    `json:"time"`
	Scene            int        `json:"scene"`
	Frame            int        `json:"frame"`
	Elapsed          float32    `json:"elapsed"`
	Properties       properties `json:"properties"`
	BackgroundTop    mgl32.Vec3 `json:"background_top"`
	BackgroundBottom mgl32.Vec3 `json:"background_bottom"`
	Foreground       mgl32.Vec3 `json:"foreground"`
}

type properties struct {
	CameraPos     mgl32.Vec3 `json:"camera_pos"`
	CameraDir     mgl32.Vec3 `json:"camera_dir"`
	Scale         float32    `json:"scale"`
	Frame         int        `json:"frame"`
	Progress      float32    `json:"progress"`
	ProgressAngle float32    `json:"progress_angle"`
}

// lock takes the single instance lock for play in the runtime directory.
func lock() (release func(), err error) {
	dir, err := xdg.AppDir(xdg.RuntimeDir, "runtime", appDir, 0o700)
	if err != nil {
		return nil, err
	}
	pidFile := filepath.Join(dir, "play.pid")
	fl := flock.New(pidFile)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("macwall play is already running")
	}
	err = os.WriteFile(pidFile, []byte(fmt.Sprintln(os.Getpid())), 0o600)
	if err != nil {
		fl.Unlock()
		return nil, err
	}
	return func() {
		fl.Unlock()
		os.Remove(pidFile)
	}, nil
}

// openCache opens the bundle cache in the XDG cache directory.
func openCache(log *slog.Logger) (*state.DB, error) {
	dir, err := xdg.AppDir(xdg.CacheHome, "cache", appDir, 0o755)
	if err != nil {
		return nil, err
	}
	return state.Open(filepath.Join(dir, "bundles.sqlite3"), log)
}

// cached returns the animation for the configuration at path, using the
// bundle cache when it holds a bundle for the configuration's sum, and
// adding the built bundle to the cache otherwise.
func cached(ctx context.Context, db *state.DB, path string, rnd *rand.Rand, log *slog.Logger) (*animation.Animation, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	sum, err := config.SumOf(cfg, dir)
	if err != nil {
		return nil, err
	}
	data, err := db.Get(sum)
	switch {
	case err == nil:
		a, err := animation.Decode(data, rnd)
		if err == nil {
			log.LogAttrs(ctx, slog.LevelInfo, "cache hit", slog.String("sum", sum.String()))
			return a, nil
		}
		log.LogAttrs(ctx, slog.LevelWarn, "invalid cached bundle", slog.String("sum", sum.String()), slog.Any("error", err))
		err = db.Delete(sum)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "delete cached bundle", slog.String("sum", sum.String()), slog.Any("error", err))
		}
	case errors.Is(err, state.ErrNotFound):
		log.LogAttrs(ctx, slog.LevelInfo, "cache miss", slog.String("sum", sum.String()))
	default:
		return nil, err
	}
	a, err := build.Build(ctx, cfg, dir, log)
	if err != nil {
		return nil, err
	}
	err = store(db, sum, a)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "cache bundle", slog.Any("error", err))
	}
	return a, nil
}

// store adds the bundle for a to the cache and prunes old bundles.
func store(db *state.DB, sum config.Sum, a *animation.Animation) error {
	data, err := a.MarshalBinary()
	if err != nil {
		return err
	}
	_, _, err = db.Put(sum, data)
	if err != nil {
		return err
	}
	_, err = db.Prune(cacheKeep)
	return err
}
