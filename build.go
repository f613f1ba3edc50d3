// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/kortschak/macwall/internal/animation"
	"github.com/kortschak/macwall/internal/build"
)

func buildCmd(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "animation configuration file (required)")
	out := fs.String("o", "", "output bundle path, - for stdout (required)")
	if status, ok := parseFlags(fs, args); !ok {
		return status
	}
	if *cfgPath == "" || *out == "" || fs.NArg() != 0 {
		fs.Usage()
		return invocationError
	}

	a, err := build.Load(ctx, *cfgPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build animation: %v\n", err)
		return internalError
	}
	err = writeBundle(*out, stdout, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write bundle: %v\n", err)
		return internalError
	}
	log.LogAttrs(ctx, slog.LevelInfo, "wrote bundle",
		slog.String("path", *out),
		slog.Int("scenes", a.SceneCount()),
	)
	return success
}

// writeBundle writes the bundle encoding of a to the file at path, or to
// stdout if path is "-". A partially written file is removed.
func writeBundle(path string, stdout io.Writer, a *animation.Animation) error {
	if path == "-" {
		return animation.Encode(stdout, a)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = animation.Encode(f, a)
	if err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// isConfig returns whether path names an animation configuration
// rather than a bundle.
func isConfig(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// load returns the animation held in the bundle or configuration at path.
// The initial scene of a bundle is chosen using rnd.
func load(ctx context.Context, path string, rnd *rand.Rand, log *slog.Logger) (*animation.Animation, error) {
	if isConfig(path) {
		return build.Load(ctx, path, log)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return animation.Decode(data, rnd)
}
