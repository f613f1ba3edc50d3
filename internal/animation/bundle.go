// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kortschak/macwall/internal/bitmask"
	"github.com/kortschak/macwall/internal/colormap"
)

// ErrBadBundle is returned when a binary bundle cannot be decoded.
var ErrBadBundle = errors.New("bad bundle")

// Magic is the leading byte sequence of a binary bundle.
const Magic = "MACWALL\x01"

// maxDim is the largest accepted image dimension in a bundle.
const maxDim = 1 << 20

// Bundle field numbers.
const (
	animationColormap       protowire.Number = 1
	animationScene          protowire.Number = 2
	animationDefaults       protowire.Number = 3
	animationColormapPeriod protowire.Number = 4

	colormapWidth protowire.Number = 1
	colormapPix   protowire.Number = 2

	sceneFrame      protowire.Number = 1
	sceneDuration   protowire.Number = 2
	sceneProperties protowire.Number = 3
	sceneTimeline   protowire.Number = 4

	imageWidth  protowire.Number = 1
	imageHeight protowire.Number = 2
	imageData   protowire.Number = 3

	// Property field numbers are shared by property sets
	// and timeline tracks.
	propCameraPos     protowire.Number = 1
	propCameraDir     protowire.Number = 2
	propScale         protowire.Number = 3
	propFrame         protowire.Number = 4
	propProgress      protowire.Number = 5
	propProgressAngle protowire.Number = 6

	keyframeTime  protowire.Number = 1
	keyframeValue protowire.Number = 2
)

// Encode writes the binary bundle encoding of a to w. Playback state is
// not encoded.
func Encode(w io.Writer, a *Animation) error {
	b, err := a.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// MarshalBinary returns the binary bundle encoding of the animation.
// Playback state is not encoded.
func (a *Animation) MarshalBinary() ([]byte, error) {
	if a.Colormap == nil {
		return nil, errors.New("no colormap")
	}
	b := []byte(Magic)
	b = appendMessage(b, animationColormap, appendColormap(nil, a.Colormap))
	var buf []byte
	for i := range a.Scenes {
		buf = appendScene(buf[:0], &a.Scenes[i])
		b = appendMessage(b, animationScene, buf)
	}
	b = appendMessage(b, animationDefaults, appendProperties(nil, a.Defaults))
	b = appendFloat(b, animationColormapPeriod, a.ColormapPeriod)
	return b, nil
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendUint(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendVec3(b []byte, num protowire.Number, v mgl32.Vec3) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, 3*4)
	for _, c := range v {
		b = protowire.AppendFixed32(b, math.Float32bits(c))
	}
	return b
}

func appendColormap(b []byte, cm *colormap.Colormap) []byte {
	b = appendUint(b, colormapWidth, cm.Width)
	b = protowire.AppendTag(b, colormapPix, protowire.BytesType)
	return protowire.AppendBytes(b, cm.Pix)
}

func appendScene(b []byte, s *Scene) []byte {
	var buf []byte
	for _, f := range s.Frames {
		buf = appendImage(buf[:0], f)
		b = appendMessage(b, sceneFrame, buf)
	}
	b = appendFloat(b, sceneDuration, s.Duration)
	b = appendMessage(b, sceneProperties, appendOptionalProperties(buf[:0], s.Properties))
	return appendMessage(b, sceneTimeline, appendTimeline(nil, &s.Timeline))
}

func appendImage(b []byte, img bitmask.Image) []byte {
	b = appendUint(b, imageWidth, img.Width)
	b = appendUint(b, imageHeight, img.Height)
	b = protowire.AppendTag(b, imageData, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(img.Data)))
	for _, w := range img.Data {
		b = protowire.AppendFixed32(b, w)
	}
	return b
}

func appendProperties(b []byte, p Properties) []byte {
	b = appendVec3(b, propCameraPos, p.CameraPos)
	b = appendVec3(b, propCameraDir, p.CameraDir)
	b = appendFloat(b, propScale, p.Scale)
	b = appendInt(b, propFrame, p.Frame)
	b = appendFloat(b, propProgress, p.Progress)
	return appendFloat(b, propProgressAngle, p.ProgressAngle)
}

func appendOptionalProperties(b []byte, p OptionalProperties) []byte {
	if p.CameraPos.Valid {
		b = appendVec3(b, propCameraPos, p.CameraPos.Value)
	}
	if p.CameraDir.Valid {
		b = appendVec3(b, propCameraDir, p.CameraDir.Value)
	}
	if p.Scale.Valid {
		b = appendFloat(b, propScale, p.Scale.Value)
	}
	if p.Frame.Valid {
		b = appendInt(b, propFrame, p.Frame.Value)
	}
	if p.Progress.Valid {
		b = appendFloat(b, propProgress, p.Progress.Value)
	}
	if p.ProgressAngle.Valid {
		b = appendFloat(b, propProgressAngle, p.ProgressAngle.Value)
	}
	return b
}

func appendTimeline(b []byte, tl *PropertiesTimeline) []byte {
	b = appendTrack(b, propCameraPos, tl.CameraPos, appendVec3)
	b = appendTrack(b, propCameraDir, tl.CameraDir, appendVec3)
	b = appendTrack(b, propScale, tl.Scale, appendFloat)
	b = appendTrack(b, propFrame, tl.Frame, appendInt)
	b = appendTrack(b, propProgress, tl.Progress, appendFloat)
	return appendTrack(b, propProgressAngle, tl.ProgressAngle, appendFloat)
}

func appendTrack[T any](b []byte, num protowire.Number, tl Timeline[T], value func([]byte, protowire.Number, T) []byte) []byte {
	var buf []byte
	for _, k := range tl.keyframes {
		buf = appendFloat(buf[:0], keyframeTime, k.T)
		buf = value(buf, keyframeValue, k.Value)
		b = appendMessage(b, num, buf)
	}
	return b
}

// UnmarshalBinary decodes a binary bundle into the receiver, replacing
// its contents. The initial scene is chosen at random.
func (a *Animation) UnmarshalBinary(data []byte) error {
	d, err := Decode(data, nil)
	if err != nil {
		return err
	}
	*a = *d
	return nil
}

// Decode returns the Animation encoded in the binary bundle data. The
// initial scene is chosen uniformly at random using rnd, or using the
// global random source if rnd is nil. The initial scene offset is zero.
func Decode(data []byte, rnd *rand.Rand) (*Animation, error) {
	b, ok := bytes.CutPrefix(data, []byte(Magic))
	if !ok {
		return nil, fmt.Errorf("%w: missing magic", ErrBadBundle)
	}
	var (
		cm       *colormap.Colormap
		scenes   []Scene
		defaults OptionalProperties
		period   float32
	)
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case animationColormap:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			cm, err = decodeColormap(msg)
		case animationScene:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			var s Scene
			s, err = decodeScene(msg)
			if err != nil {
				return n, fmt.Errorf("scene %d: %w", len(scenes), err)
			}
			scenes = append(scenes, s)
		case animationDefaults:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			defaults, err = decodeProperties(msg)
		case animationColormapPeriod:
			period, n, err = consumeFloat(num, typ, b)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, fmt.Errorf("%w: missing colormap", ErrBadBundle)
	}
	if !defaults.CameraPos.Valid || !defaults.CameraDir.Valid || !defaults.Scale.Valid ||
		!defaults.Frame.Valid || !defaults.Progress.Valid || !defaults.ProgressAngle.Valid {
		return nil, fmt.Errorf("%w: incomplete defaults", ErrBadBundle)
	}
	a, err := New(cm, period, scenes, defaults.WithDefaults(Properties{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBundle, err)
	}
	if rnd != nil {
		a.playback.index = rnd.IntN(len(scenes))
	} else {
		a.playback.index = rand.IntN(len(scenes))
	}
	return a, nil
}

// fields calls fn for each field in the message b. fn is passed the
// field's number, wire type and the bytes following the tag, and returns
// the number of bytes of the field's value it consumed. If fn consumes
// no bytes the field is skipped.
func fields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return parseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}

func parseError(n int) error {
	return fmt.Errorf("%w: %w", ErrBadBundle, protowire.ParseError(n))
}

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: unexpected wire type %d for field %d", ErrBadBundle, typ, num)
}

func consumeMessage(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, parseError(n)
	}
	return v, n, nil
}

func consumeFloat(num protowire.Number, typ protowire.Type, b []byte) (float32, int, error) {
	if typ != protowire.Fixed32Type {
		return 0, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, 0, parseError(n)
	}
	return math.Float32frombits(v), n, nil
}

func consumeInt(num protowire.Number, typ protowire.Type, b []byte) (int, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, parseError(n)
	}
	return int(protowire.DecodeZigZag(v)), n, nil
}

func consumeDim(num protowire.Number, typ protowire.Type, b []byte) (int, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, parseError(n)
	}
	if v > maxDim {
		return 0, 0, fmt.Errorf("%w: dimension too large: %d", ErrBadBundle, v)
	}
	return int(v), n, nil
}

func consumeVec3(num protowire.Number, typ protowire.Type, b []byte) (mgl32.Vec3, int, error) {
	msg, n, err := consumeMessage(num, typ, b)
	if err != nil {
		return mgl32.Vec3{}, 0, err
	}
	if len(msg) != 3*4 {
		return mgl32.Vec3{}, 0, fmt.Errorf("%w: invalid vector length: %d", ErrBadBundle, len(msg))
	}
	var v mgl32.Vec3
	for i := range v {
		c, m := protowire.ConsumeFixed32(msg)
		if m < 0 {
			return mgl32.Vec3{}, 0, parseError(m)
		}
		v[i] = math.Float32frombits(c)
		msg = msg[m:]
	}
	return v, n, nil
}

func decodeColormap(b []byte) (*colormap.Colormap, error) {
	var (
		width int
		pix   []byte
	)
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case colormapWidth:
			width, n, err = consumeDim(num, typ, b)
		case colormapPix:
			pix, n, err = consumeMessage(num, typ, b)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	cm, err := colormap.FromRaw(width, slices.Clone(pix))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBundle, err)
	}
	return cm, nil
}

func decodeScene(b []byte) (Scene, error) {
	var s Scene
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case sceneFrame:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			var img bitmask.Image
			img, err = decodeImage(msg)
			if err != nil {
				return n, fmt.Errorf("frame %d: %w", len(s.Frames), err)
			}
			s.Frames = append(s.Frames, img)
		case sceneDuration:
			s.Duration, n, err = consumeFloat(num, typ, b)
		case sceneProperties:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			s.Properties, err = decodeProperties(msg)
		case sceneTimeline:
			var msg []byte
			msg, n, err = consumeMessage(num, typ, b)
			if err != nil {
				return n, err
			}
			s.Timeline, err = decodeTimeline(msg)
		}
		return n, err
	})
	return s, err
}

func decodeImage(b []byte) (bitmask.Image, error) {
	var (
		img  bitmask.Image
		data []byte
	)
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case imageWidth:
			img.Width, n, err = consumeDim(num, typ, b)
		case imageHeight:
			img.Height, n, err = consumeDim(num, typ, b)
		case imageData:
			data, n, err = consumeMessage(num, typ, b)
		}
		return n, err
	})
	if err != nil {
		return img, err
	}
	words := bitmask.Words(img.Width, img.Height)
	if len(data) != 4*words {
		return img, fmt.Errorf("%w: image data length %d does not match %dx%d image", ErrBadBundle, len(data), img.Width, img.Height)
	}
	img.Data = make([]uint32, words)
	for i := range img.Data {
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return img, parseError(n)
		}
		img.Data[i] = v
		data = data[n:]
	}
	return img, nil
}

func decodeProperties(b []byte) (OptionalProperties, error) {
	var p OptionalProperties
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case propCameraPos:
			p.CameraPos.Value, n, err = consumeVec3(num, typ, b)
			p.CameraPos.Valid = err == nil
		case propCameraDir:
			p.CameraDir.Value, n, err = consumeVec3(num, typ, b)
			p.CameraDir.Valid = err == nil
		case propScale:
			p.Scale.Value, n, err = consumeFloat(num, typ, b)
			p.Scale.Valid = err == nil
		case propFrame:
			p.Frame.Value, n, err = consumeInt(num, typ, b)
			p.Frame.Valid = err == nil
		case propProgress:
			p.Progress.Value, n, err = consumeFloat(num, typ, b)
			p.Progress.Valid = err == nil
		case propProgressAngle:
			p.ProgressAngle.Value, n, err = consumeFloat(num, typ, b)
			p.ProgressAngle.Valid = err == nil
		}
		return n, err
	})
	return p, err
}

func decodeTimeline(b []byte) (PropertiesTimeline, error) {
	var (
		cameraPos     []Keyframe[mgl32.Vec3]
		cameraDir     []Keyframe[mgl32.Vec3]
		scale         []Keyframe[float32]
		frame         []Keyframe[int]
		progress      []Keyframe[float32]
		progressAngle []Keyframe[float32]
	)
	err := fields(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case propCameraPos:
			cameraPos, n, err = consumeKeyframe(cameraPos, num, typ, b, consumeVec3)
		case propCameraDir:
			cameraDir, n, err = consumeKeyframe(cameraDir, num, typ, b, consumeVec3)
		case propScale:
			scale, n, err = consumeKeyframe(scale, num, typ, b, consumeFloat)
		case propFrame:
			frame, n, err = consumeKeyframe(frame, num, typ, b, consumeInt)
		case propProgress:
			progress, n, err = consumeKeyframe(progress, num, typ, b, consumeFloat)
		case propProgressAngle:
			progressAngle, n, err = consumeKeyframe(progressAngle, num, typ, b, consumeFloat)
		}
		return n, err
	})
	if err != nil {
		return PropertiesTimeline{}, err
	}
	return newPropertiesTimeline(cameraPos, cameraDir, scale, frame, progress, progressAngle), nil
}

func consumeKeyframe[T any](dst []Keyframe[T], num protowire.Number, typ protowire.Type, b []byte, value func(protowire.Number, protowire.Type, []byte) (T, int, error)) ([]Keyframe[T], int, error) {
	msg, n, err := consumeMessage(num, typ, b)
	if err != nil {
		return dst, 0, err
	}
	var (
		k              Keyframe[T]
		hasT, hasValue bool
	)
	err = fields(msg, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case keyframeTime:
			k.T, n, err = consumeFloat(num, typ, b)
			hasT = true
		case keyframeValue:
			k.Value, n, err = value(num, typ, b)
			hasValue = true
		}
		return n, err
	})
	if err != nil {
		return dst, 0, err
	}
	if !hasT || !hasValue {
		return dst, 0, fmt.Errorf("%w: incomplete keyframe for field %d", ErrBadBundle, num)
	}
	return append(dst, k), n, nil
}
