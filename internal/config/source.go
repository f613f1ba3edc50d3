// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Source is a parsed image reference. Exactly one of Path, Data or Color
// is set.
type Source struct {
	// Path is the absolute path to an image file.
	Path string
	// Data is encoded image data.
	Data []byte
	// Color is the color of a uniform image with the dimensions
	// given by Size.
	Color color.Color
	Size  image.Point
}

// Image returns the uniform image described by a color source. It
// returns nil if the source is not a color source.
func (s Source) Image() image.Image {
	if s.Color == nil {
		return nil
	}
	img := image.NewNRGBA(image.Rectangle{Max: s.Size})
	c := color.NRGBAModel.Convert(s.Color).(color.NRGBA)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// ParseSource parses an image reference. Image references are either
// file paths or data URIs. File paths are opened relative to the dir
// path unless the path is absolute; a leading "~/" is expanded to the
// user's home directory.
//
// Valid data URIs are
//
//	data:text/filename,<path>
//	data:image/*;base64,<base64 encoded image data>
//	data:image/color[;width=<w>][;height=<h>];name,<ANSI color name>
//	data:image/color[;width=<w>][;height=<h>];web,#<rrggbb>
//
// Uniform color images default to 1×1.
func ParseSource(ref, dir string) (Source, error) {
	if !strings.HasPrefix(ref, "data:") {
		path, err := resolvePath(ref, dir)
		return Source{Path: path}, err
	}
	typ, mtyp, par, val, enc, err := parseDataURI(ref)
	if err != nil {
		return Source{}, err
	}
	param, err := getParams(par)
	if err != nil {
		return Source{}, err
	}
	switch typ {
	case "text":
		if mtyp != "text/filename" {
			return Source{}, fmt.Errorf("unknown text mime type: %s", ref)
		}
		path, err := resolvePath(val, dir)
		return Source{Path: path}, err
	case "image":
		switch enc {
		case "base64":
			b, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return Source{}, fmt.Errorf("base64: %w", err)
			}
			return Source{Data: b}, nil
		case "name", "web":
			if mtyp != "image/color" {
				return Source{}, fmt.Errorf("invalid color mime type: %s", ref)
			}
			var col color.Color
			if enc == "name" {
				var ok bool
				col, ok = ansiColor[val]
				if !ok {
					return Source{}, fmt.Errorf("invalid color name: %s", val)
				}
			} else {
				col, err = webColor(val)
				if err != nil {
					return Source{}, err
				}
			}
			size, err := dims(param)
			if err != nil {
				return Source{}, err
			}
			return Source{Color: col, Size: size}, nil
		}
	}
	panic("unreachable")
}

func resolvePath(path, dir string) (string, error) {
	path, ok := strings.CutPrefix(path, "~/")
	if ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("file: %w", err)
		}
		path = filepath.Join(home, path)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path, nil
}

func dims(param map[string]string) (image.Point, error) {
	size := image.Point{X: 1, Y: 1}
	for _, d := range []struct {
		name string
		val  *int
	}{
		{name: "width", val: &size.X},
		{name: "height", val: &size.Y},
	} {
		v, ok := param[d.name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return size, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if n < 1 {
			return size, fmt.Errorf("invalid %s: %d", d.name, n)
		}
		*d.val = n
	}
	return size, nil
}

func getParams(par string) (map[string]string, error) {
	if par == "" {
		return nil, nil
	}
	param := make(map[string]string)
	var err error
	for _, kv := range strings.Split(par, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, fmt.Errorf("invalid params: %s", par)
		}
		param[strings.TrimSpace(k)], err = url.PathUnescape(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
	}
	return param, nil
}

// parseDataURI handles data URIs in the form
// "^data:(?:text/filename|image/\*;base64|image/color;(?:name|web)),.*$"
// with optional parameters.
func parseDataURI(uri string) (typ, mtyp, par, val, enc string, err error) {
	u, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid scheme: %s", uri)
	}
	mtyp, val, ok = strings.Cut(u, ",")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	typ, _, ok = strings.Cut(mtyp, "/")
	if !ok {
		return "", "", "", "", "", fmt.Errorf("invalid data uri: %s", uri)
	}
	switch typ {
	case "text":
		mtyp, par, _ := strings.Cut(mtyp, ";")
		return typ, mtyp, par, val, "", nil
	case "image":
		mtyp, enc, ok = cutLast(mtyp, ";")
		if !ok {
			return "", "", "", "", "", fmt.Errorf("invalid image data uri: %s", uri)
		}
		switch enc {
		case "base64", "name", "web":
			mtyp, par, _ := strings.Cut(mtyp, ";")
			return typ, mtyp, par, val, enc, nil
		default:
			return "", "", "", "", "", fmt.Errorf("invalid encoding in image uri: %s", uri)
		}
	default:
		return "", "", "", "", "", fmt.Errorf("unknown mime type: %s", uri)
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

var ansiColor = map[string]color.Color{
	"black":     color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	"red":       color.RGBA{R: 0x80, G: 0x00, B: 0x00, A: 0xff},
	"green":     color.RGBA{R: 0x00, G: 0x80, B: 0x00, A: 0xff},
	"yellow":    color.RGBA{R: 0x80, G: 0x80, B: 0x00, A: 0xff},
	"blue":      color.RGBA{R: 0x00, G: 0x00, B: 0x80, A: 0xff},
	"magenta":   color.RGBA{R: 0x80, G: 0x00, B: 0x80, A: 0xff},
	"cyan":      color.RGBA{R: 0x00, G: 0x80, B: 0x80, A: 0xff},
	"white":     color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	"hiblack":   color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"hired":     color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	"higreen":   color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	"hiyellow":  color.RGBA{R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	"hiblue":    color.RGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff},
	"himagenta": color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff},
	"hicyan":    color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	"hiwhite":   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

func webColor(val string) (color.Color, error) {
	val, ok := strings.CutPrefix(val, "#")
	if !ok {
		return nil, fmt.Errorf("invalid web color: %s", val)
	}
	c, err := strconv.ParseUint(val, 16, 24)
	if err != nil {
		return nil, err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(c))
	return color.NRGBA{R: b[1], G: b[2], B: b[3], A: 0xff}, nil
}
