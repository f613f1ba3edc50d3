// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/macwall/internal/animation"
	"github.com/kortschak/macwall/internal/bitmask"
	"github.com/kortschak/macwall/internal/config"
	"github.com/kortschak/macwall/internal/locked"
	"github.com/kortschak/macwall/internal/slogext"
)

var (
	verbose = flag.Bool("verbose_log", false, "print full logging")
	lines   = flag.Bool("show_lines", false, "log source code position")
)

func ptr[T any](v T) *T { return &v }

// raster returns an image with the given rows, where '#' is white,
// 'r' is red and any other byte is black.
func raster(rows ...string) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		for x, c := range []byte(row) {
			switch c {
			case '#':
				img.Set(x, y, color.White)
			case 'r':
				img.Set(x, y, color.NRGBA{R: 0xff, A: 0xff})
			default:
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	if err != nil {
		t.Fatalf("unexpected error encoding png: %v", err)
	}
	err = os.WriteFile(path, buf.Bytes(), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing png: %v", err)
	}
}

func writeGIF(t *testing.T, path string, frames ...image.Image) {
	t.Helper()
	pal := color.Palette{color.Black, color.White, color.NRGBA{R: 0xff, A: 0xff}}
	g := &gif.GIF{}
	for _, f := range frames {
		p := image.NewPaletted(f.Bounds(), pal)
		for y := f.Bounds().Min.Y; y < f.Bounds().Max.Y; y++ {
			for x := f.Bounds().Min.X; x < f.Bounds().Max.X; x++ {
				p.Set(x, y, f.At(x, y))
			}
		}
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, 10)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		t.Fatalf("unexpected error encoding gif: %v", err)
	}
	err = os.WriteFile(path, buf.Bytes(), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing gif: %v", err)
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	var logBuf locked.BytesBuffer
	t.Cleanup(func() {
		if *verbose {
			t.Logf("log:\n%s\n", &logBuf)
		}
	})
	return slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: slogext.NewAtomicBool(*lines),
	}))
}

var testDefaults = config.Properties{
	CameraPos:     &config.Vec3{0, -10, 0},
	CameraDir:     &config.Vec3{0, 1, 0},
	Scale:         ptr[float32](1),
	Frame:         ptr(0),
	Progress:      ptr[float32](0),
	ProgressAngle: ptr[float32](0),
}

func pngData(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	if err != nil {
		t.Fatalf("unexpected error encoding png: %v", err)
	}
	return "data:image/*;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "colormap.png"), raster(
		"#r.",
		"r#.",
	))
	writePNG(t, filepath.Join(dir, "static.png"), raster(
		"r.",
		"#r",
	))
	writePNG(t, filepath.Join(dir, "strip.png"), raster(
		"#.",
		"..",
		"r#",
		"##",
	))
	writeGIF(t, filepath.Join(dir, "anim.gif"),
		raster("#.", ".."),
		raster(".#", ".."),
		raster("..", "#."),
	)

	cfg := &config.Animation{
		Background: config.Background{Colormap: "colormap.png"},
		Scenes: config.Scenes{
			Properties: testDefaults,
			Scene: []config.Scene{
				{
					Image:      "static.png",
					Duration:   5,
					Properties: config.Properties{Scale: ptr[float32](2)},
					Keyframes: []config.Keyframe{
						{T: 0, Properties: config.Properties{Progress: ptr[float32](0)}},
						{T: 5, Properties: config.Properties{Progress: ptr[float32](1)}},
					},
				},
				{Image: "strip.png", Frames: ptr(2), Duration: 4},
				{Image: "data:text/filename,anim.gif", Duration: 3},
				{Image: "data:image/color;width=3;height=1;name,hiwhite", Duration: 2},
				{Image: pngData(t, raster("#r")), Duration: 1},
			},
		},
	}

	a, err := Build(context.Background(), cfg, dir, testLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := a.ColormapPeriod, float32(config.DefaultPeriod); got != want {
		t.Errorf("unexpected colormap period: got:%v want:%v", got, want)
	}
	if a.Colormap.Width != 3 || a.Colormap.Height != 2 {
		t.Errorf("unexpected colormap size: got:%dx%d want:3x2", a.Colormap.Width, a.Colormap.Height)
	}
	wantPix := []uint8{
		0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0,
		0xff, 0, 0, 0xff, 0xff, 0xff, 0, 0, 0,
	}
	if !cmp.Equal(wantPix, a.Colormap.Pix) {
		t.Errorf("unexpected colormap pixels:\n--- want:\n+++ got:\n%s", cmp.Diff(wantPix, a.Colormap.Pix))
	}

	wantFrames := [][]bitmask.Image{
		// Red channel: the white and red pixels are set.
		{{Data: []uint32{0b1101}, Width: 2, Height: 2}},
		// All channels: only white pixels are set.
		{
			{Data: []uint32{0b0001}, Width: 2, Height: 2},
			{Data: []uint32{0b1110}, Width: 2, Height: 2},
		},
		// Opaque GIF frames replace the previous frame.
		{
			{Data: []uint32{0b0001}, Width: 2, Height: 2},
			{Data: []uint32{0b0010}, Width: 2, Height: 2},
			{Data: []uint32{0b0100}, Width: 2, Height: 2},
		},
		{{Data: []uint32{0b111}, Width: 3, Height: 1}},
		{{Data: []uint32{0b11}, Width: 2, Height: 1}},
	}
	if got := a.SceneCount(); got != len(wantFrames) {
		t.Fatalf("unexpected scene count: got:%d want:%d", got, len(wantFrames))
	}
	for i, want := range wantFrames {
		got := a.Scenes[i].Frames
		if !cmp.Equal(want, got) {
			t.Errorf("unexpected frames for scene %d:\n--- want:\n+++ got:\n%s", i, cmp.Diff(want, got))
		}
		if a.Scenes[i].Duration != cfg.Scenes.Scene[i].Duration {
			t.Errorf("unexpected duration for scene %d: got:%v want:%v", i, a.Scenes[i].Duration, cfg.Scenes.Scene[i].Duration)
		}
	}

	if got := a.Scenes[0].Properties; !cmp.Equal(animation.WithScale(2), got) {
		t.Errorf("unexpected scene overrides:\n--- want:\n+++ got:\n%s", cmp.Diff(animation.WithScale(2), got))
	}
	if got := a.Scenes[0].Timeline.Len(); got != 2 {
		t.Errorf("unexpected keyframe count: got:%d want:2", got)
	}
	p, _ := a.Scene(2.5)
	if p.Progress != 0.5 || p.Scale != 2 {
		t.Errorf("unexpected resolved properties: got progress=%v scale=%v want progress=0.5 scale=2", p.Progress, p.Scale)
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "colormap.png"), raster("#r."))
	writePNG(t, filepath.Join(dir, "odd.png"), raster("#.", "..", "r#"))
	writePNG(t, filepath.Join(dir, "narrow.png"), raster("#r"))
	writeGIF(t, filepath.Join(dir, "anim.gif"), raster("#."), raster(".#"))
	err := os.WriteFile(filepath.Join(dir, "garbage.png"), []byte("not an image"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing garbage: %v", err)
	}

	for _, test := range []struct {
		name     string
		colormap string
		scene    config.Scene
		defaults config.Properties
		wantIs   error
		wantText string
	}{
		{
			name:     "missing_image",
			colormap: "colormap.png",
			scene:    config.Scene{Image: "missing.png", Duration: 1},
			defaults: testDefaults,
			wantIs:   os.ErrNotExist,
			wantText: "scene 0: missing.png",
		},
		{
			name:     "indivisible_filmstrip",
			colormap: "colormap.png",
			scene:    config.Scene{Image: "odd.png", Frames: ptr(2), Duration: 1},
			defaults: testDefaults,
			wantIs:   bitmask.ErrFrameCount,
		},
		{
			name:     "gif_frame_mismatch",
			colormap: "colormap.png",
			scene:    config.Scene{Image: "anim.gif", Frames: ptr(3), Duration: 1},
			defaults: testDefaults,
			wantIs:   bitmask.ErrFrameCount,
		},
		{
			name:     "undecodable",
			colormap: "colormap.png",
			scene:    config.Scene{Image: "garbage.png", Duration: 1},
			defaults: testDefaults,
			wantIs:   image.ErrFormat,
		},
		{
			name:     "missing_colormap",
			colormap: "missing.png",
			scene:    config.Scene{Image: "odd.png", Duration: 1},
			defaults: testDefaults,
			wantIs:   os.ErrNotExist,
			wantText: "colormap missing.png",
		},
		{
			name:     "narrow_colormap",
			colormap: "narrow.png",
			scene:    config.Scene{Image: "odd.png", Duration: 1},
			defaults: testDefaults,
			wantText: "colormap",
		},
		{
			name:     "incomplete_defaults",
			colormap: "colormap.png",
			scene:    config.Scene{Image: "odd.png", Duration: 1},
			defaults: config.Properties{Scale: ptr[float32](1)},
			wantText: "missing default properties",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := &config.Animation{
				Background: config.Background{Colormap: test.colormap},
				Scenes: config.Scenes{
					Properties: test.defaults,
					Scene:      []config.Scene{test.scene},
				},
			}
			_, err := Build(context.Background(), cfg, dir, testLogger(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if test.wantIs != nil && !errors.Is(err, test.wantIs) {
				t.Errorf("unexpected error: got:%v want:%v", err, test.wantIs)
			}
			if !strings.Contains(err.Error(), test.wantText) {
				t.Errorf("unexpected error text: got:%v want to contain:%q", err, test.wantText)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "colormap.png"), raster("#r.", "r#."))
	writePNG(t, filepath.Join(dir, "scene.png"), raster("r.", ".r"))
	const cfg = `
[background]
colormap = "colormap.png"
duration = 20.0

[scenes]
camera_pos = [0.0, -10.0, 0.0]
camera_dir = [0.0, 1.0, 0.0]
scale = 1.0
frame = 0
progress = 0.0
progress_angle = 0.0

[[scenes.scene]]
image = "scene.png"
duration = 10.0
`
	path := filepath.Join(dir, "animation.toml")
	err := os.WriteFile(path, []byte(cfg), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	a, err := Load(context.Background(), path, testLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ColormapPeriod != 20 {
		t.Errorf("unexpected colormap period: got:%v want:20", a.ColormapPeriod)
	}
	want := []bitmask.Image{{Data: []uint32{0b1001}, Width: 2, Height: 2}}
	if !cmp.Equal(want, a.Scenes[0].Frames) {
		t.Errorf("unexpected frames:\n--- want:\n+++ got:\n%s", cmp.Diff(want, a.Scenes[0].Frames))
	}

	_, err = Load(context.Background(), filepath.Join(dir, "missing.toml"), testLogger(t))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected error for missing config: got:%v want:%v", err, os.ErrNotExist)
	}
}
