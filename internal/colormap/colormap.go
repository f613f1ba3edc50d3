// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package colormap provides a time-indexed color lookup table.
package colormap

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"

	"github.com/kortschak/macwall/internal/interp"
)

// Colormap columns.
const (
	BackgroundTop    = 0
	BackgroundBottom = 1
	Foreground       = 2
)

// Colormap is an RGB raster used as a color lookup table. Each column
// holds a color sequence that is indexed vertically by a cyclic time
// fraction.
type Colormap struct {
	Width  int
	Height int
	// Pix holds the RGB triples of the raster in row-major order.
	Pix []uint8
}

// New returns a Colormap holding the RGB values of img. Alpha is
// discarded.
func New(img image.Image) *Colormap {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	}
	w, h := b.Dx(), b.Dy()
	cm := &Colormap{Width: w, Height: h, Pix: make([]uint8, 0, w*h*3)}
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			cm.Pix = append(cm.Pix, row[4*x], row[4*x+1], row[4*x+2])
		}
	}
	return cm
}

// FromRaw returns a Colormap with the given width backed by the RGB triples
// in pix. The height is derived from the length of pix.
func FromRaw(width int, pix []uint8) (*Colormap, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid colormap width: %d", width)
	}
	if len(pix) == 0 || len(pix)%(3*width) != 0 {
		return nil, fmt.Errorf("invalid colormap data length %d for width %d", len(pix), width)
	}
	return &Colormap{Width: width, Height: len(pix) / (3 * width), Pix: pix}, nil
}

// Validate returns an error if the colormap does not have all of the
// required columns.
func (c *Colormap) Validate() error {
	if c == nil || c.Height == 0 {
		return errors.New("empty colormap")
	}
	if c.Width <= Foreground {
		return fmt.Errorf("colormap too narrow: %d columns, need %d", c.Width, Foreground+1)
	}
	return nil
}

// Sample returns the color of column at the cyclic progress fraction t,
// linearly interpolated between adjacent rows. The last row blends back
// towards the first. t is taken modulo 1. Channel values are in [0, 1].
func (c *Colormap) Sample(column int, t float32) mgl32.Vec3 {
	t = fract(t)
	h := float32(c.Height)
	px := h * t
	lo := int(math32.Floor(px))
	hi := int(math32.Mod(math32.Ceil(px), h))
	if lo >= c.Height {
		// Rounding of t just below 1.
		lo = c.Height - 1
	}
	return interp.Vec3(c.at(column, lo), c.at(column, hi), px-math32.Floor(px))
}

// BackgroundTop returns the top background color at t.
func (c *Colormap) BackgroundTop(t float32) mgl32.Vec3 {
	return c.Sample(BackgroundTop, t)
}

// BackgroundBottom returns the bottom background color at t.
func (c *Colormap) BackgroundBottom(t float32) mgl32.Vec3 {
	return c.Sample(BackgroundBottom, t)
}

// Foreground returns the foreground color at t.
func (c *Colormap) Foreground(t float32) mgl32.Vec3 {
	return c.Sample(Foreground, t)
}

func (c *Colormap) at(x, y int) mgl32.Vec3 {
	p := c.Pix[3*(y*c.Width+x):]
	return mgl32.Vec3{
		float32(p[0]) / 255,
		float32(p[1]) / 255,
		float32(p[2]) / 255,
	}
}

// Cycle returns the cyclic fraction of time through a period, in [0, 1).
// A non-positive period returns zero.
func Cycle(time, period float32) float32 {
	if period <= 0 {
		return 0
	}
	return fract(time / period)
}

// fract returns the fractional part of v in [0, 1). Small negative values
// whose fractional part rounds up to 1 give 0.
func fract(v float32) float32 {
	f := v - math32.Floor(v)
	if f >= 1 {
		return 0
	}
	return f
}
