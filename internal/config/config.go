// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides animation configuration types, schema validation
// and live configuration reloading.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/kortschak/macwall/internal/animation"
)

// DefaultPeriod is the colormap cycle period in seconds used when the
// background duration is not specified.
const DefaultPeriod = 60

// Animation is a complete animation configuration.
type Animation struct {
	Background Background `json:"background" toml:"background" yaml:"background"`
	Scenes     Scenes     `json:"scenes" toml:"scenes" yaml:"scenes"`
}

// Background is the background colormap configuration.
type Background struct {
	// Colormap is the image reference for the colormap image.
	// See ParseSource for valid image references.
	Colormap string `json:"colormap" toml:"colormap" yaml:"colormap"`
	// Duration is the colormap cycle period in seconds.
	// If Duration is nil, DefaultPeriod is used.
	Duration *float32 `json:"duration,omitempty" toml:"duration" yaml:"duration"`
}

// Period returns the colormap cycle period.
func (b Background) Period() float32 {
	if b.Duration == nil {
		return DefaultPeriod
	}
	return *b.Duration
}

// Scenes holds the global property defaults and the scene list.
// All default properties must be set.
type Scenes struct {
	Properties `yaml:",inline"`
	Scene      []Scene `json:"scene" toml:"scene" yaml:"scene"`
}

// Scene is a single scene configuration.
type Scene struct {
	// Image is the image reference for the scene's image.
	// See ParseSource for valid image references.
	Image string `json:"image" toml:"image" yaml:"image"`
	// Frames is the number of vertically stacked frames
	// in a filmstrip image. If Frames is nil, the image
	// is treated as a single frame unless it is an
	// animated GIF.
	Frames *int `json:"frames,omitempty" toml:"frames" yaml:"frames"`
	// Duration is the length of the scene in seconds.
	Duration float32 `json:"duration" toml:"duration" yaml:"duration"`

	// Properties are the static overrides for the scene.
	Properties `yaml:",inline"`

	Keyframes []Keyframe `json:"keyframes,omitempty" toml:"keyframes" yaml:"keyframes"`
}

// FrameCount returns the number of filmstrip frames in the scene's image.
func (s Scene) FrameCount() int {
	if s.Frames == nil {
		return 1
	}
	return *s.Frames
}

// Timeline returns the scene's keyframes as animation property keyframes.
func (s Scene) Timeline() []animation.PropertyKeyframe {
	if len(s.Keyframes) == 0 {
		return nil
	}
	kf := make([]animation.PropertyKeyframe, len(s.Keyframes))
	for i, k := range s.Keyframes {
		kf[i] = animation.PropertyKeyframe{T: k.T, Properties: k.Optional()}
	}
	return kf
}

// Keyframe is a timed sparse set of properties.
type Keyframe struct {
	T          float32 `json:"t" toml:"t" yaml:"t"`
	Properties `yaml:",inline"`
}

// Vec3 is a three-element vector.
type Vec3 [3]float32

// Properties is a sparse set of animatable properties.
type Properties struct {
	CameraPos     *Vec3    `json:"camera_pos,omitempty" toml:"camera_pos" yaml:"camera_pos"`
	CameraDir     *Vec3    `json:"camera_dir,omitempty" toml:"camera_dir" yaml:"camera_dir"`
	Scale         *float32 `json:"scale,omitempty" toml:"scale" yaml:"scale"`
	Frame         *int     `json:"frame,omitempty" toml:"frame" yaml:"frame"`
	Progress      *float32 `json:"progress,omitempty" toml:"progress" yaml:"progress"`
	ProgressAngle *float32 `json:"progress_angle,omitempty" toml:"progress_angle" yaml:"progress_angle"`
}

// Optional returns the properties as animation optional properties.
func (p Properties) Optional() animation.OptionalProperties {
	var o animation.OptionalProperties
	if p.CameraPos != nil {
		o.CameraPos = animation.Some(mgl32.Vec3(*p.CameraPos))
	}
	if p.CameraDir != nil {
		o.CameraDir = animation.Some(mgl32.Vec3(*p.CameraDir))
	}
	if p.Scale != nil {
		o.Scale = animation.Some(*p.Scale)
	}
	if p.Frame != nil {
		o.Frame = animation.Some(*p.Frame)
	}
	if p.Progress != nil {
		o.Progress = animation.Some(*p.Progress)
	}
	if p.ProgressAngle != nil {
		o.ProgressAngle = animation.Some(*p.ProgressAngle)
	}
	return o
}

// Complete returns the properties as complete animation properties. It
// returns an error listing the missing fields if any property is not set.
func (p Properties) Complete() (animation.Properties, error) {
	var missing []string
	if p.CameraPos == nil {
		missing = append(missing, "camera_pos")
	}
	if p.CameraDir == nil {
		missing = append(missing, "camera_dir")
	}
	if p.Scale == nil {
		missing = append(missing, "scale")
	}
	if p.Frame == nil {
		missing = append(missing, "frame")
	}
	if p.Progress == nil {
		missing = append(missing, "progress")
	}
	if p.ProgressAngle == nil {
		missing = append(missing, "progress_angle")
	}
	if len(missing) != 0 {
		return animation.Properties{}, fmt.Errorf("missing default properties: %s", strings.Join(missing, ", "))
	}
	return p.Optional().WithDefaults(animation.Properties{}), nil
}

// Decode decodes an animation configuration from data. The encoding is
// selected by the extension of name; TOML for ".toml" and YAML for ".yaml"
// or ".yml". Unknown fields are an error.
func Decode(name string, data []byte) (*Animation, error) {
	var cfg Animation
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) != 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown fields: %s", strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err := dec.Decode(&cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown configuration format: %q", ext)
	}
	return &cfg, nil
}

// Read reads, decodes and validates the animation configuration in the
// file at path.
func Read(path string) (*Animation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	_, err = Validate(Schema, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Schema is the schema for a valid animation configuration.
const Schema = `
{
	background: {
		colormap:  _#image_ref
		duration?: number & >0
	}
	scenes: {
		_#complete
		scene: [_#scene, ..._#scene]
	}
}

_#vec3: [number, number, number]

_#properties: {
	camera_pos?:     _#vec3
	camera_dir?:     _#vec3
	scale?:          number
	frame?:          int
	progress?:       number
	progress_angle?: number
}

_#complete: {
	camera_pos:     _#vec3
	camera_dir:     _#vec3
	scale:          number
	frame:          int
	progress:       number
	progress_angle: number
}

_#scene: {
	_#properties
	image:      _#image_ref
	frames?:    int & >=1
	duration:   number & >0
	keyframes?: [..._#keyframe]
}

_#keyframe: {
	_#properties
	t: number
}

_#image_ref: _#path | _#image_file | _#image | _#named_color | _#web_color
_#path: !="" & !~"^data:"
_#image_file: =~"^data:text/filename(?:;[^;]+=[^;]*)*,.+$"
_#image: =~"^data:image/\\*(?:;[^;]+=[^;]*)*;base64,.*$"
_#named_color: =~"^data:image/color(?:;[^;]+=[^;]*)*;name,(?:hi)?(?:black|red|green|yellow|blue|magenta|cyan|white)$"
_#web_color: =~"^data:image/color(?:;[^;]+=[^;]*)*;web,#[0-9a-fA-F]{6}$"
`
