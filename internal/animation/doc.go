// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides the scene sequencing engine for animated
// wallpapers.
//
// An Animation is a cyclic sequence of scenes. Each scene has a duration,
// a set of bitmask image frames, static property overrides and a timeline
// of keyframed properties. Sampling the animation with a clock time
// advances playback through the scenes and resolves the complete set of
// properties for that time, with timeline values taking precedence over
// scene overrides and scene overrides taking precedence over the global
// defaults.
//
// Animations can be exported to and loaded from a compact binary bundle.
// Playback state is not part of the bundle; a loaded animation starts at
// a randomly chosen scene.
package animation
