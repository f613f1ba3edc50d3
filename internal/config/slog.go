// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ChangeValue is a slog.LogValuer for a Change.
type ChangeValue struct {
	Change
}

func (v ChangeValue) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 4)
	events := make([]eventJSON, len(v.Event))
	for i, e := range v.Event {
		events[i] = eventJSON{Name: e.Name, Op: e.Op.String(), Code: int(e.Op)}
	}
	attrs = append(attrs, slog.Any("event", events))
	if v.Config != nil {
		attrs = append(attrs,
			slog.Int("scenes", len(v.Config.Scenes.Scene)),
			slog.Any("sum", sumValue{v.Sum}),
		)
	}
	if v.Err != nil {
		attrs = append(attrs, slog.String("err", v.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

type eventJSON struct {
	Name string `json:"name"`
	Op   string `json:"op"`
	Code int    `json:"op_code"`
}

type eventValue struct {
	fsnotify.Event
}

func (v eventValue) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", v.Name),
		slog.String("op", v.Op.String()),
		slog.Int("op_code", int(v.Op)),
	)
}

type sumValue struct {
	Sum
}

func (v sumValue) LogValue() slog.Value {
	return slog.StringValue(v.String())
}
