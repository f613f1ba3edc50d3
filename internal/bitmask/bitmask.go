// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitmask provides conversion of raster images to packed
// one bit per pixel masks.
package bitmask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/bits-and-blooms/bitset"
)

// ErrFrameCount is returned when an image cannot be divided evenly into
// the requested number of frames.
var ErrFrameCount = errors.New("invalid frame count")

// Mode specifies how a pixel is determined to be set.
type Mode int

const (
	// RedChannel sets a bit when the pixel's red channel is non-zero.
	RedChannel Mode = iota
	// AllChannels sets a bit when all of the pixel's red, green and
	// blue channels are non-zero.
	AllChannels
)

// String implements the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case RedChannel:
		return "red"
	case AllChannels:
		return "rgb"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Image is a bilevel image packed row-major into 32-bit words. Bit i of
// the mask is held in bit i%32 of Data[i/32], so the pixel at (0, 0) is
// the least significant bit of the first word.
type Image struct {
	Data   []uint32
	Width  int
	Height int
}

// Words returns the number of 32-bit words needed to hold a width×height
// mask.
func Words(width, height int) int {
	return (width*height + 31) / 32
}

// At returns whether the pixel at (x, y) is set. Out of bounds
// coordinates are reported as unset.
func (m Image) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	i := y*m.Width + x
	return m.Data[i/32]&(1<<(i%32)) != 0
}

// Bounds returns the bounds of the mask with its origin at (0, 0).
func (m Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Paletted renders the mask to a paletted image using pal[0] for unset
// pixels and pal[1] for set pixels. pal must have at least two colors.
func (m Image) Paletted(pal color.Palette) *image.Paletted {
	dst := image.NewPaletted(m.Bounds(), pal)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) {
				dst.Pix[y*dst.Stride+x] = 1
			}
		}
	}
	return dst
}

// Encode returns the bitmask of img using the provided mode.
func Encode(img image.Image, mode Mode) Image {
	b := img.Bounds()
	return encodeRect(img, b, mode)
}

// EncodeFrames splits img vertically into n frames of equal height and
// returns the bitmask of each. It returns an error wrapping ErrFrameCount
// if n is less than one or the image height is not divisible by n.
func EncodeFrames(img image.Image, n int, mode Mode) ([]Image, error) {
	b := img.Bounds()
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrFrameCount, n)
	}
	if b.Dy()%n != 0 {
		return nil, fmt.Errorf("%w: height %d not divisible by %d", ErrFrameCount, b.Dy(), n)
	}
	h := b.Dy() / n
	frames := make([]Image, n)
	for i := range frames {
		r := image.Rect(b.Min.X, b.Min.Y+i*h, b.Max.X, b.Min.Y+(i+1)*h)
		frames[i] = encodeRect(img, r, mode)
	}
	return frames, nil
}

// EncodeAll returns the bitmask of each of the provided frames. All frames
// must have the same size.
func EncodeAll(frames []image.Image, mode Mode) ([]Image, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrFrameCount)
	}
	size := frames[0].Bounds().Size()
	masks := make([]Image, len(frames))
	for i, f := range frames {
		if f.Bounds().Size() != size {
			return nil, fmt.Errorf("mismatched frame size at %d: %v != %v", i, f.Bounds().Size(), size)
		}
		masks[i] = Encode(f, mode)
	}
	return masks, nil
}

func encodeRect(img image.Image, r image.Rectangle, mode Mode) Image {
	w, h := r.Dx(), r.Dy()
	bits := bitset.New(uint(w * h))
	set := setter(img, mode)
	var i uint
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if set(x, y) {
				bits.Set(i)
			}
			i++
		}
	}
	return FromBits(bits, w, h)
}

// FromBits returns the w×h mask holding bits in row-major order. Bits
// beyond w*h are ignored.
func FromBits(bits *bitset.BitSet, w, h int) Image {
	m := Image{
		Data:   make([]uint32, Words(w, h)),
		Width:  w,
		Height: h,
	}
	n := uint(w * h)
	for i, ok := bits.NextSet(0); ok && i < n; i, ok = bits.NextSet(i + 1) {
		m.Data[i/32] |= 1 << (i % 32)
	}
	return m
}

// setter returns a pixel predicate for img, using direct pixel access
// for the common concrete image types.
func setter(img image.Image, mode Mode) func(x, y int) bool {
	switch img := img.(type) {
	case *image.RGBA:
		return func(x, y int) bool {
			p := img.Pix[img.PixOffset(x, y):]
			return isSet(mode, p[0], p[1], p[2])
		}
	case *image.NRGBA:
		return func(x, y int) bool {
			p := img.Pix[img.PixOffset(x, y):]
			return isSet(mode, p[0], p[1], p[2])
		}
	case *image.Gray:
		return func(x, y int) bool {
			v := img.Pix[img.PixOffset(x, y)]
			return isSet(mode, v, v, v)
		}
	default:
		return func(x, y int) bool {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			return isSet(mode, c.R, c.G, c.B)
		}
	}
}

func isSet(mode Mode, r, g, b uint8) bool {
	if mode == AllChannels {
		return r != 0 && g != 0 && b != 0
	}
	return r != 0
}
