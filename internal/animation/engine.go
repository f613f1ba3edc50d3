// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kortschak/macwall/internal/bitmask"
	"github.com/kortschak/macwall/internal/colormap"
)

var (
	// ErrNoScenes is returned when an animation is constructed without
	// any scenes.
	ErrNoScenes = errors.New("no scenes")
	// ErrNoFrames is returned when a scene has no image frames.
	ErrNoFrames = errors.New("no frames")
)

// Scene is a discrete animation segment.
type Scene struct {
	// Frames holds the scene's image frames. The active frame
	// is selected by the resolved Frame property.
	Frames []bitmask.Image
	// Duration is the length of the scene in seconds.
	Duration float32
	// Properties holds the scene's static property overrides.
	Properties OptionalProperties
	// Timeline holds the scene's keyframed properties.
	Timeline PropertiesTimeline
}

// Animation is a sequence of scenes played cyclically against a caller
// provided clock.
//
// The scene data of an Animation is immutable after construction, but
// sampling with Scene or Frame mutates the playback cursor, so an
// Animation must not be sampled concurrently.
type Animation struct {
	// Colormap is the color lookup table used for the background and
	// foreground colors.
	Colormap *colormap.Colormap
	// ColormapPeriod is the time in seconds for one cycle through the
	// colormap.
	ColormapPeriod float32
	// Scenes is the set of scenes to play.
	Scenes []Scene
	// Defaults are the global property defaults.
	Defaults Properties

	playback playback
}

// playback is the transient playback cursor. It is never serialized.
type playback struct {
	// index is the index of the current scene.
	index int
	// offset is the clock time at which the current scene started.
	offset float32
	// keyframe is the number of keyframe times of the current scene's
	// timeline that have been passed. It is a hint for introspection
	// only and does not affect property resolution.
	keyframe int
}

// New returns a new Animation starting at the first scene with a zero
// time offset.
func New(cm *colormap.Colormap, period float32, scenes []Scene, defaults Properties) (*Animation, error) {
	err := cm.Validate()
	if err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}
	for i, s := range scenes {
		if len(s.Frames) == 0 {
			return nil, fmt.Errorf("scene %d: %w", i, ErrNoFrames)
		}
	}
	return &Animation{
		Colormap:       cm,
		ColormapPeriod: period,
		Scenes:         scenes,
		Defaults:       defaults,
	}, nil
}

// Scene returns the resolved properties and active image frame at the
// provided clock time. If the current scene has run past its duration,
// playback advances to the next scene, which starts at time, before the
// properties are resolved.
//
// Timeline values take precedence over the scene's static overrides
// which take precedence over the animation's defaults. The resolved
// Frame property selects the image frame modulo the number of frames.
func (a *Animation) Scene(time float32) (Properties, *bitmask.Image) {
	t := a.advance(time)
	s := &a.Scenes[a.playback.index]
	a.playback.keyframe = s.Timeline.passed(a.playback.keyframe, t)
	p := s.Timeline.Get(t).Combine(s.Properties).WithDefaults(a.Defaults)
	return p, &s.Frames[a.imageIndex(p)]
}

// advance moves playback to the next scene if the current scene has
// completed and returns the local time within the current scene.
func (a *Animation) advance(time float32) float32 {
	t := time - a.playback.offset
	if t > a.Scenes[a.playback.index].Duration {
		a.playback = playback{
			index:  (a.playback.index + 1) % len(a.Scenes),
			offset: time,
		}
		t = time - a.playback.offset
	}
	return t
}

// imageIndex returns the index of the current scene's image frame
// selected by p.
func (a *Animation) imageIndex(p Properties) int {
	return wrap(p.Frame, len(a.Scenes[a.playback.index].Frames))
}

// wrap returns i modulo n in [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// SceneCount returns the number of scenes in the animation.
func (a *Animation) SceneCount() int {
	return len(a.Scenes)
}

// FrameCount returns the number of image frames in scene i.
func (a *Animation) FrameCount(i int) int {
	return len(a.Scenes[wrap(i, len(a.Scenes))].Frames)
}

// Image returns frame j of scene i. Both indices are taken modulo
// their collection lengths.
func (a *Animation) Image(i, j int) *bitmask.Image {
	s := &a.Scenes[wrap(i, len(a.Scenes))]
	return &s.Frames[wrap(j, len(s.Frames))]
}

// Cursor returns the index of the current scene and the clock time at
// which it started.
func (a *Animation) Cursor() (index int, offset float32) {
	return a.playback.index, a.playback.offset
}

// Keyframe returns the number of distinct keyframe times in the current
// scene that had been passed at the last sample.
func (a *Animation) Keyframe() int {
	return a.playback.keyframe
}

// Elapsed returns the local time within the current scene at the
// provided clock time without advancing playback.
func (a *Animation) Elapsed(time float32) float32 {
	return time - a.playback.offset
}

// Frame is the complete renderer input for a single tick.
type Frame struct {
	// Time is the clock time of the sample.
	Time float32
	// Scene is the index of the active scene.
	Scene int
	// Elapsed is the local time within the active scene.
	Elapsed float32
	// Properties are the resolved properties.
	Properties Properties
	// Image is the active image frame and ImageIndex
	// is its index within the scene's frames.
	Image      *bitmask.Image
	ImageIndex int

	// BackgroundTop, BackgroundBottom and Foreground
	// are the colormap colors at the sample time.
	BackgroundTop    mgl32.Vec3
	BackgroundBottom mgl32.Vec3
	Foreground       mgl32.Vec3

	// ViewProjection is the view-projection matrix for the resolved
	// properties at the requested aspect ratio.
	ViewProjection mgl32.Mat4
}

// Frame samples the animation at the provided clock time and returns the
// renderer input for a viewport with the given aspect ratio. It has the
// same playback effects as Scene.
func (a *Animation) Frame(time, aspect float32) Frame {
	p, img := a.Scene(time)
	c := colormap.Cycle(time, a.ColormapPeriod)
	return Frame{
		Time:             time,
		Scene:            a.playback.index,
		Elapsed:          time - a.playback.offset,
		Properties:       p,
		Image:            img,
		ImageIndex:       a.imageIndex(p),
		BackgroundTop:    a.Colormap.BackgroundTop(c),
		BackgroundBottom: a.Colormap.BackgroundBottom(c),
		Foreground:       a.Colormap.Foreground(c),
		ViewProjection:   p.ViewProjection(aspect),
	}
}
