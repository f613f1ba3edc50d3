// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kortschak/macwall/internal/interp"
)

type sample[T any] struct {
	t    float32
	want T
	ok   bool
}

var floatTimelineTests = []struct {
	name      string
	keyframes []Keyframe[float32]
	samples   []sample[float32]
}{
	{
		name: "empty",
		samples: []sample[float32]{
			{t: -1}, {t: 0}, {t: 1},
		},
	},
	{
		name:      "single",
		keyframes: []Keyframe[float32]{{T: 1, Value: 4}},
		samples: []sample[float32]{
			{t: 0.5, ok: false},
			{t: 1, want: 4, ok: true},
			{t: 100, want: 4, ok: true},
		},
	},
	{
		name: "interpolate",
		keyframes: []Keyframe[float32]{
			{T: 0, Value: 0},
			{T: 1, Value: 10},
			{T: 3, Value: 30},
		},
		samples: []sample[float32]{
			{t: -1, ok: false},
			{t: 0, want: 0, ok: true},
			{t: 0.5, want: 5, ok: true},
			{t: 1, want: 10, ok: true},
			{t: 2, want: 20, ok: true},
			{t: 3, want: 30, ok: true},
			{t: 5, want: 30, ok: true},
			{t: math32.Inf(1), want: 30, ok: true},
			{t: math32.NaN(), want: 30, ok: true},
		},
	},
	{
		name: "unsorted",
		keyframes: []Keyframe[float32]{
			{T: 2, Value: 20},
			{T: 0, Value: 0},
			{T: 1, Value: 10},
		},
		samples: []sample[float32]{
			{t: 0.5, want: 5, ok: true},
			{t: 1.5, want: 15, ok: true},
		},
	},
	{
		name: "duplicate_times",
		keyframes: []Keyframe[float32]{
			{T: 0, Value: 0},
			{T: 1, Value: 5},
			{T: 1, Value: 7},
			{T: 2, Value: 9},
		},
		samples: []sample[float32]{
			{t: 0.5, want: 2.5, ok: true},
			{t: 1, want: 7, ok: true},
			{t: 1.5, want: 8, ok: true},
		},
	},
	{
		name: "overflow_fraction",
		keyframes: []Keyframe[float32]{
			{T: -3e38, Value: 1},
			{T: 3e38, Value: 2},
		},
		samples: []sample[float32]{
			{t: 2e38, want: 2, ok: true},
		},
	},
	{
		name: "nan_keyframe",
		keyframes: []Keyframe[float32]{
			{T: math32.NaN(), Value: 100},
			{T: 0, Value: 0},
			{T: 1, Value: 1},
		},
		samples: []sample[float32]{
			{t: -1, ok: false},
			{t: 0.25, want: 0.25, ok: true},
			{t: 2, want: 1, ok: true},
		},
	},
}

func TestTimelineGet(t *testing.T) {
	for _, test := range floatTimelineTests {
		t.Run(test.name, func(t *testing.T) {
			tl := NewTimeline(interp.Float, test.keyframes)
			for _, s := range test.samples {
				got, ok := tl.Get(s.t)
				if ok != s.ok {
					t.Errorf("unexpected presence at t=%v: got:%t want:%t", s.t, ok, s.ok)
					continue
				}
				if !cmp.Equal(got, s.want, cmpopts.EquateApprox(0, 1e-5)) {
					t.Errorf("unexpected value at t=%v: got:%v want:%v", s.t, got, s.want)
				}
			}
		})
	}
}

func TestTimelineImmutable(t *testing.T) {
	kf := []Keyframe[float32]{{T: 1, Value: 1}, {T: 0, Value: 0}}
	tl := NewTimeline(interp.Float, kf)
	kf[0].Value = 100
	got := tl.Keyframes()
	want := []Keyframe[float32]{{T: 0, Value: 0}, {T: 1, Value: 1}}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected keyframes:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
	got[0].Value = 100
	if v, _ := tl.Get(0); v != 0 {
		t.Errorf("timeline mutated through Keyframes result: got:%v want:0", v)
	}
}

func TestTimelineKeyframeExact(t *testing.T) {
	kf := []Keyframe[float32]{
		{T: 0, Value: 0.1},
		{T: 0.3, Value: 7.77},
		{T: 1.7, Value: -3.3},
		{T: 2.9, Value: 1e6},
	}
	tl := NewTimeline(interp.Float, kf)
	for _, k := range kf {
		got, ok := tl.Get(k.T)
		if !ok || got != k.Value {
			t.Errorf("unexpected value at keyframe time %v: got:%v ok:%t want:%v", k.T, got, ok, k.Value)
		}
	}
}

func TestTimelineMonotonic(t *testing.T) {
	tl := NewTimeline(interp.Float, []Keyframe[float32]{
		{T: 1, Value: -2},
		{T: 4, Value: 11},
	})
	last, _ := tl.Get(1)
	end, _ := tl.Get(4)
	for i := 1; i <= 300; i++ {
		got, _ := tl.Get(1 + float32(i)*0.01)
		if got < last {
			t.Errorf("value decreased at step %d: %v < %v", i, got, last)
		}
		if got > end {
			t.Errorf("value exceeded end at step %d: %v > %v", i, got, end)
		}
		last = got
	}
}

func TestTimelineHold(t *testing.T) {
	tl := NewTimeline(interp.Vec3, []Keyframe[mgl32.Vec3]{
		{T: 0, Value: mgl32.Vec3{0, 0, 0}},
		{T: 2, Value: mgl32.Vec3{1, 2, 3}},
	})
	want := mgl32.Vec3{1, 2, 3}
	for _, ts := range []float32{2, 2.5, 10, 1e9} {
		got, ok := tl.Get(ts)
		if !ok || got != want {
			t.Errorf("unexpected value at t=%v: got:%v ok:%t want:%v", ts, got, ok, want)
		}
	}
}

func TestTimelineIndexSnap(t *testing.T) {
	tl := NewTimeline(interp.Index, []Keyframe[int]{
		{T: 0, Value: 0},
		{T: 4, Value: 4},
	})
	for _, s := range []sample[int]{
		{t: 0, want: 0},
		{t: 0.4, want: 0},
		{t: 0.6, want: 1},
		{t: 1.5, want: 2},
		{t: 3.9, want: 4},
		{t: 4, want: 4},
	} {
		got, _ := tl.Get(s.t)
		if got != s.want {
			t.Errorf("unexpected frame at t=%v: got:%d want:%d", s.t, got, s.want)
		}
	}
}

func TestPropertiesTimeline(t *testing.T) {
	tl := NewPropertiesTimeline([]PropertyKeyframe{
		{T: 0, Properties: WithProgress(0).Combine(WithCameraPos(mgl32.Vec3{0, 0, 0}))},
		{T: 1, Properties: WithProgress(1).Combine(WithScale(2))},
		{T: 2, Properties: WithCameraPos(mgl32.Vec3{2, 4, 6})},
	})
	if got := tl.Len(); got != 3 {
		t.Errorf("unexpected number of keyframe times: got:%d want:3", got)
	}

	for _, test := range []struct {
		t    float32
		want OptionalProperties
	}{
		{
			t:    -1,
			want: OptionalProperties{},
		},
		{
			t: 0.5,
			want: OptionalProperties{
				CameraPos: Some(mgl32.Vec3{0.5, 1, 1.5}),
				Progress:  Some[float32](0.5),
			},
		},
		{
			t: 1.5,
			want: OptionalProperties{
				CameraPos: Some(mgl32.Vec3{1.5, 3, 4.5}),
				Scale:     Some[float32](2),
				Progress:  Some[float32](1),
			},
		},
		{
			t: 3,
			want: OptionalProperties{
				CameraPos: Some(mgl32.Vec3{2, 4, 6}),
				Scale:     Some[float32](2),
				Progress:  Some[float32](1),
			},
		},
	} {
		got := tl.Get(test.t)
		if !cmp.Equal(got, test.want, cmpopts.EquateApprox(0, 1e-5)) {
			t.Errorf("unexpected properties at t=%v:\n--- want:\n+++ got:\n%s", test.t, cmp.Diff(test.want, got))
		}
	}
}

func TestPropertiesTimelinePassed(t *testing.T) {
	tl := NewPropertiesTimeline([]PropertyKeyframe{
		{T: 0, Properties: WithProgress(0)},
		{T: 1, Properties: WithProgress(1).Combine(WithScale(1))},
		{T: 3, Properties: WithScale(3)},
	})
	for _, test := range []struct {
		hint int
		t    float32
		want int
	}{
		{hint: 0, t: -1, want: 0},
		{hint: 0, t: 0, want: 1},
		{hint: 0, t: 0.5, want: 1},
		{hint: 1, t: 1, want: 2},
		{hint: 2, t: 10, want: 3},
		{hint: 3, t: 0.5, want: 1},
		{hint: 99, t: 2, want: 2},
		{hint: -1, t: 2, want: 2},
	} {
		got := tl.passed(test.hint, test.t)
		if got != test.want {
			t.Errorf("unexpected passed count for hint=%d t=%v: got:%d want:%d", test.hint, test.t, got, test.want)
		}
	}
}
