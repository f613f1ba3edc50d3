// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/kortschak/macwall/internal/animation"
)

func inspectCmd(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	pngDir := fs.String("png", "", "directory to write each frame to as a PNG image")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: inspect [-png dir] <bundle or config>\n")
		fs.PrintDefaults()
	}
	if status, ok := parseFlags(fs, args); !ok {
		return status
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return invocationError
	}

	a, err := load(ctx, fs.Arg(0), rand.New(rand.NewPCG(0, 0)), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load animation: %v\n", err)
		return internalError
	}
	err = summarize(stdout, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
		return internalError
	}
	if *pngDir != "" {
		err = writeFrames(*pngDir, a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write frames: %v\n", err)
			return internalError
		}
		log.LogAttrs(ctx, slog.LevelInfo, "wrote frames", slog.String("dir", *pngDir))
	}
	return success
}

// summarize writes a human readable summary of a to w.
func summarize(w io.Writer, a *animation.Animation) error {
	cm := a.Colormap
	_, err := fmt.Fprintf(w, "colormap: %dx%d period=%vs\n", cm.Width, cm.Height, a.ColormapPeriod)
	if err != nil {
		return err
	}
	d := a.Defaults
	_, err = fmt.Fprintf(w, "defaults: camera_pos=%v camera_dir=%v scale=%v frame=%d progress=%v progress_angle=%v\n",
		d.CameraPos, d.CameraDir, d.Scale, d.Frame, d.Progress, d.ProgressAngle)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "scenes: %d\n", a.SceneCount())
	if err != nil {
		return err
	}
	for i, s := range a.Scenes {
		img := s.Frames[0]
		tl := &s.Timeline
		_, err = fmt.Fprintf(w, "scene %d: frames=%d size=%dx%d duration=%vs keyframes=%d tracks=[camera_pos:%d camera_dir:%d scale:%d frame:%d progress:%d progress_angle:%d]\n",
			i, a.FrameCount(i), img.Width, img.Height, s.Duration, tl.Len(),
			tl.CameraPos.Len(), tl.CameraDir.Len(), tl.Scale.Len(), tl.Frame.Len(), tl.Progress.Len(), tl.ProgressAngle.Len())
		if err != nil {
			return err
		}
	}
	return nil
}

// writeFrames writes every frame of every scene in a to dir as a two
// color PNG image.
func writeFrames(dir string, a *animation.Animation) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}
	pal := color.Palette{color.Black, color.White}
	for i := range a.SceneCount() {
		for j := range a.FrameCount(i) {
			path := filepath.Join(dir, fmt.Sprintf("scene%02d_frame%03d.png", i, j))
			err = writePNG(path, a.Image(i, j).Paletted(pal))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func writePNG(path string, img *image.Paletted) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
