// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var parseSourceTests = []struct {
	ref     string
	want    Source
	wantErr bool
}{
	{
		ref:  "image.png",
		want: Source{Path: "/base/image.png"},
	},
	{
		ref:  "/abs/image.png",
		want: Source{Path: "/abs/image.png"},
	},
	{
		ref:  "data:text/filename,sub/image.png",
		want: Source{Path: "/base/sub/image.png"},
	},
	{
		ref:  "data:image/*;base64," + base64.StdEncoding.EncodeToString([]byte("image data")),
		want: Source{Data: []byte("image data")},
	},
	{
		ref:  "data:image/color;name,hired",
		want: Source{Color: color.RGBA{R: 0xff, A: 0xff}, Size: image.Point{X: 1, Y: 1}},
	},
	{
		ref:  "data:image/color;width=3;height=2;web,#102030",
		want: Source{Color: color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, Size: image.Point{X: 3, Y: 2}},
	},
	{
		ref:  "data:image/color;width=3;name,blue",
		want: Source{Color: color.RGBA{B: 0x80, A: 0xff}, Size: image.Point{X: 3, Y: 1}},
	},
	{
		ref:     "data:image/color;name,mauve",
		wantErr: true,
	},
	{
		ref:     "data:image/color;width=0;name,red",
		wantErr: true,
	},
	{
		ref:     "data:image/color;web,102030",
		wantErr: true,
	},
	{
		ref:     "data:image/png,xyz",
		wantErr: true,
	},
	{
		ref:     "data:image/*;base64,!!!",
		wantErr: true,
	},
	{
		ref:     "data:text/plain,image.png",
		wantErr: true,
	},
	{
		ref:     "data:audio/wav;base64,",
		wantErr: true,
	},
	{
		ref:     "data:image/color;name",
		wantErr: true,
	},
}

func TestParseSource(t *testing.T) {
	for _, test := range parseSourceTests {
		t.Run(test.ref, func(t *testing.T) {
			got, err := ParseSource(test.ref, "/base")
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: got:%v want error:%t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected result:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestSourceImage(t *testing.T) {
	src, err := ParseSource("data:image/color;width=2;height=3;web,#ff8000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := src.Image()
	if img == nil {
		t.Fatal("expected image")
	}
	if got, want := img.Bounds(), image.Rect(0, 0, 2, 3); got != want {
		t.Errorf("unexpected bounds: got:%v want:%v", got, want)
	}
	want := color.NRGBA{R: 0xff, G: 0x80, A: 0xff}
	for y := range 3 {
		for x := range 2 {
			got := color.NRGBAModel.Convert(img.At(x, y))
			if got != want {
				t.Errorf("unexpected color at (%d,%d): got:%v want:%v", x, y, got, want)
			}
		}
	}

	if (Source{Path: "image.png"}).Image() != nil {
		t.Error("expected nil image for path source")
	}
}

func TestParseSum(t *testing.T) {
	const text = "0384f61c9ded1788a24a7a2a5c5fa7dfe5838e7c"
	sum, err := ParseSum(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sum.String(); got != text {
		t.Errorf("unexpected round trip: got:%s want:%s", got, text)
	}
	for _, bad := range []string{"", "0384", text + "00", "zz84f61c9ded1788a24a7a2a5c5fa7dfe5838e7c"} {
		_, err := ParseSum(bad)
		if err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSumOf(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"colormap.png": "colormap image data",
		"hello.png":    "hello image data",
	} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644)
		if err != nil {
			t.Fatalf("unexpected error writing %s: %v", name, err)
		}
	}

	tomlCfg, err := Decode("animation.toml", []byte(testTOML))
	if err != nil {
		t.Fatalf("unexpected error decoding toml: %v", err)
	}
	yamlCfg, err := Decode("animation.yaml", []byte(testYAML))
	if err != nil {
		t.Fatalf("unexpected error decoding yaml: %v", err)
	}
	tomlSum, err := SumOf(tomlCfg, dir)
	if err != nil {
		t.Fatalf("unexpected error summing toml: %v", err)
	}
	yamlSum, err := SumOf(yamlCfg, dir)
	if err != nil {
		t.Fatalf("unexpected error summing yaml: %v", err)
	}
	if tomlSum != yamlSum {
		t.Errorf("expected equal sums for equivalent configurations: %s != %s", tomlSum, yamlSum)
	}

	err = os.WriteFile(filepath.Join(dir, "hello.png"), []byte("new hello image data"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing hello.png: %v", err)
	}
	changed, err := SumOf(tomlCfg, dir)
	if err != nil {
		t.Fatalf("unexpected error summing changed image: %v", err)
	}
	if changed == tomlSum {
		t.Error("expected image change to change sum")
	}

	tomlCfg.Scenes.Scene[0].Duration = 11
	edited, err := SumOf(tomlCfg, dir)
	if err != nil {
		t.Fatalf("unexpected error summing edited config: %v", err)
	}
	if edited == changed {
		t.Error("expected configuration change to change sum")
	}

	err = os.Remove(filepath.Join(dir, "hello.png"))
	if err != nil {
		t.Fatalf("unexpected error removing hello.png: %v", err)
	}
	_, err = SumOf(tomlCfg, dir)
	if err == nil {
		t.Error("expected error for missing image file")
	}
}
