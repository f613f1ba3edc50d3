// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
)

func cacheCmd(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) int {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	prune := fs.Int("prune", -1, "remove all but this many of the most recent bundles (negative does not prune)")
	if status, ok := parseFlags(fs, args); !ok {
		return status
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return invocationError
	}

	db, err := openCache(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open bundle cache: %v\n", err)
		return internalError
	}
	defer db.Close()

	if *prune >= 0 {
		n, err := db.Prune(*prune)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to prune bundle cache: %v\n", err)
			return internalError
		}
		log.LogAttrs(ctx, slog.LevelInfo, "pruned", slog.Int("removed", n))
	}

	entries, err := db.Entries()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list bundle cache: %v\n", err)
		return internalError
	}
	enc := json.NewEncoder(stdout)
	for _, e := range entries {
		err = enc.Encode(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write entry: %v\n", err)
			return internalError
		}
	}
	return success
}
