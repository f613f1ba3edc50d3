// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Optional is an optional value. The zero Optional is absent.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Or returns the receiver if it is present, otherwise it returns o.
func (v Optional[T]) Or(o Optional[T]) Optional[T] {
	if v.Valid {
		return v
	}
	return o
}

// Get returns the receiver's value if it is present, otherwise it
// returns def.
func (v Optional[T]) Get(def T) T {
	if v.Valid {
		return v.Value
	}
	return def
}

// Properties is a complete set of animatable values.
type Properties struct {
	CameraPos     mgl32.Vec3
	CameraDir     mgl32.Vec3
	Scale         float32
	Frame         int
	Progress      float32
	ProgressAngle float32
}

// OptionalProperties is a sparse set of animatable values, used for
// authored overrides and for timeline samples.
type OptionalProperties struct {
	CameraPos     Optional[mgl32.Vec3]
	CameraDir     Optional[mgl32.Vec3]
	Scale         Optional[float32]
	Frame         Optional[int]
	Progress      Optional[float32]
	ProgressAngle Optional[float32]
}

// Combine returns the field-wise combination of p and other, taking
// values from p where they are present and from other otherwise.
func (p OptionalProperties) Combine(other OptionalProperties) OptionalProperties {
	return OptionalProperties{
		CameraPos:     p.CameraPos.Or(other.CameraPos),
		CameraDir:     p.CameraDir.Or(other.CameraDir),
		Scale:         p.Scale.Or(other.Scale),
		Frame:         p.Frame.Or(other.Frame),
		Progress:      p.Progress.Or(other.Progress),
		ProgressAngle: p.ProgressAngle.Or(other.ProgressAngle),
	}
}

// WithDefaults returns the complete Properties obtained by filling absent
// fields of p from defaults.
func (p OptionalProperties) WithDefaults(defaults Properties) Properties {
	return Properties{
		CameraPos:     p.CameraPos.Get(defaults.CameraPos),
		CameraDir:     p.CameraDir.Get(defaults.CameraDir),
		Scale:         p.Scale.Get(defaults.Scale),
		Frame:         p.Frame.Get(defaults.Frame),
		Progress:      p.Progress.Get(defaults.Progress),
		ProgressAngle: p.ProgressAngle.Get(defaults.ProgressAngle),
	}
}

// IsEmpty returns whether no field of p is present.
func (p OptionalProperties) IsEmpty() bool {
	return !p.CameraPos.Valid && !p.CameraDir.Valid && !p.Scale.Valid &&
		!p.Frame.Valid && !p.Progress.Valid && !p.ProgressAngle.Valid
}

// WithCameraPos returns an OptionalProperties holding only a camera position.
func WithCameraPos(v mgl32.Vec3) OptionalProperties {
	return OptionalProperties{CameraPos: Some(v)}
}

// WithCameraDir returns an OptionalProperties holding only a camera direction.
func WithCameraDir(v mgl32.Vec3) OptionalProperties {
	return OptionalProperties{CameraDir: Some(v)}
}

// WithScale returns an OptionalProperties holding only a scale.
func WithScale(v float32) OptionalProperties {
	return OptionalProperties{Scale: Some(v)}
}

// WithFrame returns an OptionalProperties holding only a frame index.
func WithFrame(v int) OptionalProperties {
	return OptionalProperties{Frame: Some(v)}
}

// WithProgress returns an OptionalProperties holding only a progress value.
func WithProgress(v float32) OptionalProperties {
	return OptionalProperties{Progress: Some(v)}
}

// WithProgressAngle returns an OptionalProperties holding only a progress
// angle.
func WithProgressAngle(v float32) OptionalProperties {
	return OptionalProperties{ProgressAngle: Some(v)}
}

// viewDepth is the half depth of the orthographic view volume.
const viewDepth = 100

// ViewProjection returns the view-projection matrix for the properties at
// the given viewport aspect ratio (width/height). The projection is
// orthographic with the longer viewport axis spanning [-1, 1], the view
// looks from CameraPos along CameraDir with +Z up, and the model is scaled
// uniformly by Scale.
func (p Properties) ViewProjection(aspect float32) mgl32.Mat4 {
	var proj mgl32.Mat4
	if aspect < 1 {
		proj = mgl32.Ortho(-aspect, aspect, -1, 1, -viewDepth, viewDepth)
	} else {
		proj = mgl32.Ortho(-1, 1, -1/aspect, 1/aspect, -viewDepth, viewDepth)
	}
	view := mgl32.LookAtV(p.CameraPos, p.CameraPos.Add(p.CameraDir), mgl32.Vec3{0, 0, 1})
	scale := mgl32.Scale3D(p.Scale, p.Scale, p.Scale)
	return proj.Mul4(view).Mul4(scale)
}
