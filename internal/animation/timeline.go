// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"cmp"
	"slices"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kortschak/macwall/internal/interp"
)

// Keyframe is a timed value.
type Keyframe[T any] struct {
	T     float32
	Value T
}

// Timeline is an immutable time-ordered sequence of keyframes for a
// single value type.
type Timeline[T any] struct {
	keyframes []Keyframe[T]
	lerp      interp.Func[T]
}

// NewTimeline returns a Timeline holding the provided keyframes blended
// with lerp. The keyframes are copied and sorted by time; keyframes with
// the same time retain their relative order. Keyframes with a NaN time
// are discarded.
func NewTimeline[T any](lerp interp.Func[T], keyframes []Keyframe[T]) Timeline[T] {
	var kf []Keyframe[T]
	for _, k := range keyframes {
		if math32.IsNaN(k.T) {
			continue
		}
		kf = append(kf, k)
	}
	slices.SortStableFunc(kf, func(a, b Keyframe[T]) int {
		return cmp.Compare(a.T, b.T)
	})
	return Timeline[T]{keyframes: kf, lerp: lerp}
}

// Len returns the number of keyframes in the timeline.
func (tl Timeline[T]) Len() int {
	return len(tl.keyframes)
}

// Keyframes returns a copy of the timeline's keyframes in time order.
func (tl Timeline[T]) Keyframes() []Keyframe[T] {
	return slices.Clone(tl.keyframes)
}

// Get returns the value of the timeline at time t and whether the
// timeline provides a value at that time.
//
// An empty timeline, or a time before the first keyframe, provides no
// value. A time at or after the last keyframe holds the last keyframe's
// value. Otherwise the value is blended between the keyframes either side
// of t; if the blend fraction is not finite the later keyframe's value is
// used.
func (tl Timeline[T]) Get(t float32) (T, bool) {
	var zero T
	n := len(tl.keyframes)
	if n == 0 {
		return zero, false
	}
	i := sort.Search(n, func(i int) bool { return tl.keyframes[i].T > t })
	switch i {
	case 0:
		return zero, false
	case n:
		return tl.keyframes[n-1].Value, true
	}
	prev, next := tl.keyframes[i-1], tl.keyframes[i]
	frac := (t - prev.T) / (next.T - prev.T)
	if math32.IsNaN(frac) || math32.IsInf(frac, 0) {
		return next.Value, true
	}
	return tl.lerp(prev.Value, next.Value, frac), true
}

// PropertyKeyframe is an authored keyframe: a time and the sparse set of
// properties set at that time.
type PropertyKeyframe struct {
	T          float32
	Properties OptionalProperties
}

// PropertiesTimeline holds an independent timeline for each property.
type PropertiesTimeline struct {
	CameraPos     Timeline[mgl32.Vec3]
	CameraDir     Timeline[mgl32.Vec3]
	Scale         Timeline[float32]
	Frame         Timeline[int]
	Progress      Timeline[float32]
	ProgressAngle Timeline[float32]

	// times is the sorted set of distinct keyframe times
	// across all property timelines.
	times []float32
}

// NewPropertiesTimeline returns a PropertiesTimeline built from the
// provided authored keyframes. Each property present in a keyframe is
// added to that property's timeline.
func NewPropertiesTimeline(keyframes []PropertyKeyframe) PropertiesTimeline {
	var (
		cameraPos     []Keyframe[mgl32.Vec3]
		cameraDir     []Keyframe[mgl32.Vec3]
		scale         []Keyframe[float32]
		frame         []Keyframe[int]
		progress      []Keyframe[float32]
		progressAngle []Keyframe[float32]
	)
	for _, k := range keyframes {
		p := k.Properties
		if p.CameraPos.Valid {
			cameraPos = append(cameraPos, Keyframe[mgl32.Vec3]{T: k.T, Value: p.CameraPos.Value})
		}
		if p.CameraDir.Valid {
			cameraDir = append(cameraDir, Keyframe[mgl32.Vec3]{T: k.T, Value: p.CameraDir.Value})
		}
		if p.Scale.Valid {
			scale = append(scale, Keyframe[float32]{T: k.T, Value: p.Scale.Value})
		}
		if p.Frame.Valid {
			frame = append(frame, Keyframe[int]{T: k.T, Value: p.Frame.Value})
		}
		if p.Progress.Valid {
			progress = append(progress, Keyframe[float32]{T: k.T, Value: p.Progress.Value})
		}
		if p.ProgressAngle.Valid {
			progressAngle = append(progressAngle, Keyframe[float32]{T: k.T, Value: p.ProgressAngle.Value})
		}
	}
	return newPropertiesTimeline(cameraPos, cameraDir, scale, frame, progress, progressAngle)
}

func newPropertiesTimeline(cameraPos, cameraDir []Keyframe[mgl32.Vec3], scale []Keyframe[float32], frame []Keyframe[int], progress, progressAngle []Keyframe[float32]) PropertiesTimeline {
	tl := PropertiesTimeline{
		CameraPos:     NewTimeline(interp.Vec3, cameraPos),
		CameraDir:     NewTimeline(interp.Vec3, cameraDir),
		Scale:         NewTimeline(interp.Float, scale),
		Frame:         NewTimeline(interp.Index, frame),
		Progress:      NewTimeline(interp.Float, progress),
		ProgressAngle: NewTimeline(interp.Float, progressAngle),
	}
	tl.times = appendTimes(tl.times, tl.CameraPos)
	tl.times = appendTimes(tl.times, tl.CameraDir)
	tl.times = appendTimes(tl.times, tl.Scale)
	tl.times = appendTimes(tl.times, tl.Frame)
	tl.times = appendTimes(tl.times, tl.Progress)
	tl.times = appendTimes(tl.times, tl.ProgressAngle)
	slices.Sort(tl.times)
	tl.times = slices.Compact(tl.times)
	return tl
}

func appendTimes[T any](dst []float32, tl Timeline[T]) []float32 {
	for _, k := range tl.keyframes {
		dst = append(dst, k.T)
	}
	return dst
}

// Get returns the sparse set of property values at time t. Properties
// with no value at t are absent.
func (tl *PropertiesTimeline) Get(t float32) OptionalProperties {
	var p OptionalProperties
	p.CameraPos.Value, p.CameraPos.Valid = tl.CameraPos.Get(t)
	p.CameraDir.Value, p.CameraDir.Valid = tl.CameraDir.Get(t)
	p.Scale.Value, p.Scale.Valid = tl.Scale.Get(t)
	p.Frame.Value, p.Frame.Valid = tl.Frame.Get(t)
	p.Progress.Value, p.Progress.Valid = tl.Progress.Get(t)
	p.ProgressAngle.Value, p.ProgressAngle.Valid = tl.ProgressAngle.Get(t)
	return p
}

// Len returns the number of distinct keyframe times in the timeline.
func (tl *PropertiesTimeline) Len() int {
	return len(tl.times)
}

// passed returns the number of distinct keyframe times at or before t,
// scanning forward from the hint. The hint is only used as a starting
// point; a hint that is ahead of t is discarded.
func (tl *PropertiesTimeline) passed(hint int, t float32) int {
	if hint < 0 || hint > len(tl.times) || (hint > 0 && tl.times[hint-1] > t) {
		hint = 0
	}
	for hint < len(tl.times) && tl.times[hint] <= t {
		hint++
	}
	return hint
}
