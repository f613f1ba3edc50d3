// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interp provides the blending functions used to interpolate
// animatable values between keyframes.
package interp

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Func blends a and b by the fractional progress t, which is expected to
// be in [0, 1]. A t of 0 returns a and a t of 1 returns b.
type Func[T any] func(a, b T, t float32) T

// Float is the linear blend a*(1-t) + b*t.
func Float(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

// Index interpolates a pair of discrete indexes as floats and rounds the
// result to the nearest index, halves away from zero, so the blend snaps
// from one index to the next rather than passing through fractional
// values. Negative indexes are returned unaltered for the caller to wrap.
// A NaN blend returns zero.
func Index(a, b int, t float32) int {
	v := Float(float32(a), float32(b), t)
	if math32.IsNaN(v) {
		return 0
	}
	return int(math32.Round(v))
}

// Vec3 is the component-wise linear blend of a and b. The result is not
// normalized.
func Vec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		Float(a[0], b[0], t),
		Float(a[1], b[1], t),
		Float(a[2], b[2], t),
	}
}
