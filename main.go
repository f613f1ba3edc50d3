// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The macwall command builds, inspects and plays animated wallpaper
// bundles.
//
// Usage:
//
//	macwall [-log level] [-lines] [-version] <command> [arguments]
//
// The commands are:
//
//	build    build an animation bundle from a configuration
//	inspect  print a summary of an animation bundle or configuration
//	play     sample an animation headlessly, writing one JSON line per tick
//	cache    list or prune the bundle cache
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/kortschak/macwall/internal/slogext"
	"github.com/kortschak/macwall/internal/version"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %s:
  %[1]s [options] <command> [arguments]

Commands: build, inspect, play, cache.
Run '%[1]s <command> -h' for command details.

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout, "macwall")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	addSource := slogext.NewAtomicBool(*lines)

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})

	if flag.NArg() == 0 {
		flag.Usage()
		return invocationError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			log.LogAttrs(ctx, slog.LevelInfo, "terminating")
			cancel()
		case <-ctx.Done():
		}
	}()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var run func(context.Context, []string, io.Writer, *slog.Logger) int
	switch cmd {
	case "build":
		run = buildCmd
	case "inspect":
		run = inspectCmd
	case "play":
		run = playCmd
	case "cache":
		run = cacheCmd
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", cmd)
		flag.Usage()
		return invocationError
	}
	return run(ctx, args, os.Stdout, log.With(slog.String("component", "macwall."+cmd)))
}

// parseFlags parses args into fs, returning a non-negative exit status
// if the caller should return immediately.
func parseFlags(fs *flag.FlagSet, args []string) (status int, ok bool) {
	err := fs.Parse(args)
	switch err {
	case nil:
		return success, true
	case flag.ErrHelp:
		return success, false
	default:
		return invocationError, false
	}
}
