// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build constructs animations from configurations and the images
// they reference.
package build

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/sync/errgroup"

	"github.com/kortschak/macwall/internal/animation"
	"github.com/kortschak/macwall/internal/bitmask"
	"github.com/kortschak/macwall/internal/colormap"
	"github.com/kortschak/macwall/internal/config"
)

// Load reads the configuration at path and builds the animation it
// describes. Image references are resolved relative to the directory
// holding the configuration.
func Load(ctx context.Context, path string, log *slog.Logger) (*animation.Animation, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, filepath.Dir(path), log)
}

// Build decodes the images referenced by cfg and returns the animation it
// describes. Relative image paths are opened relative to dir. Scene images
// are decoded concurrently and the first error encountered is returned.
func Build(ctx context.Context, cfg *config.Animation, dir string, log *slog.Logger) (*animation.Animation, error) {
	log = log.With(slog.String("component", "build"))

	defaults, err := cfg.Scenes.Complete()
	if err != nil {
		return nil, err
	}

	img, _, err := decode(cfg.Background.Colormap, dir)
	if err != nil {
		return nil, fmt.Errorf("colormap %s: %w", cfg.Background.Colormap, err)
	}
	cm := colormap.New(img)
	log.LogAttrs(ctx, slog.LevelDebug, "colormap", slog.Int("width", cm.Width), slog.Int("height", cm.Height))

	scenes := make([]animation.Scene, len(cfg.Scenes.Scene))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range cfg.Scenes.Scene {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frames, err := sceneFrames(s, dir)
			if err != nil {
				return fmt.Errorf("scene %d: %s: %w", i, s.Image, err)
			}
			scenes[i] = animation.Scene{
				Frames:     frames,
				Duration:   s.Duration,
				Properties: s.Optional(),
				Timeline:   animation.NewPropertiesTimeline(s.Timeline()),
			}
			log.LogAttrs(ctx, slog.LevelDebug, "scene",
				slog.Int("index", i),
				slog.String("image", s.Image),
				slog.Int("frames", len(frames)),
				slog.Int("keyframes", scenes[i].Timeline.Len()),
			)
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return animation.New(cm, cfg.Background.Period(), scenes, defaults)
}

// sceneFrames returns the bitmask frames for the scene. Animated GIFs give
// one frame per GIF frame. Otherwise a scene with a frame count is treated
// as a vertical filmstrip, and a single static image is encoded from its
// red channel.
func sceneFrames(s config.Scene, dir string) ([]bitmask.Image, error) {
	img, gifFrames, err := decode(s.Image, dir)
	if err != nil {
		return nil, err
	}
	if len(gifFrames) > 1 {
		if s.Frames != nil && *s.Frames != len(gifFrames) {
			return nil, fmt.Errorf("%w: gif has %d frames but %d requested", bitmask.ErrFrameCount, len(gifFrames), *s.Frames)
		}
		return bitmask.EncodeAll(gifFrames, bitmask.AllChannels)
	}
	if n := s.FrameCount(); n > 1 {
		return bitmask.EncodeFrames(img, n, bitmask.AllChannels)
	}
	return []bitmask.Image{bitmask.Encode(img, bitmask.RedChannel)}, nil
}

// decode returns the image referenced by ref. If the image is a GIF, all
// of its composited frames are returned in frames and img is the first.
func decode(ref, dir string) (img image.Image, frames []image.Image, err error) {
	src, err := config.ParseSource(ref, dir)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader
	switch {
	case src.Color != nil:
		return src.Image(), nil, nil
	case src.Data != nil:
		r = bytes.NewReader(src.Data)
	default:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		r = f
	}
	rp := bitmask.AsReadPeeker(r)
	if bitmask.IsGIF(rp) {
		frames, err = bitmask.DecodeGIFFrames(rp)
		if err != nil {
			return nil, nil, err
		}
		return frames[0], frames, nil
	}
	img, _, err = image.Decode(rp)
	if err != nil {
		return nil, nil, err
	}
	return img, nil, nil
}
