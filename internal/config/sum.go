// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
)

// Sum is a comparable SHA-1 sum.
type Sum [sha1.Size]byte

// ParseSum parses a hex encoded SHA-1 sum.
func ParseSum(text string) (Sum, error) {
	var s Sum
	err := s.UnmarshalText([]byte(text))
	return s, err
}

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

func (s *Sum) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(s)) {
		return fmt.Errorf("invalid length: %d != %d", len(text), hex.EncodedLen(len(s)))
	}
	_, err := hex.Decode(s[:], text)
	if err != nil {
		return err
	}
	return nil
}

func (s Sum) MarshalText() (text []byte, err error) {
	text = make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(text, s[:])
	return text, nil
}

// SumOf returns the semantic hash of the configuration. The hash covers
// the JSON encoding of cfg and the contents of every image file that it
// references. Image file references are resolved relative to dir.
// Formatting and comment changes to the configuration file do not change
// the hash, but changes to the referenced image files do.
func SumOf(cfg *Animation, dir string) (Sum, error) {
	return sumOf(sha1.New(), cfg, dir)
}

func sumOf(h hash.Hash, cfg *Animation, dir string) (sum Sum, _ error) {
	err := json.NewEncoder(h).Encode(cfg)
	if err != nil {
		return sum, err
	}
	refs := make([]string, 0, 1+len(cfg.Scenes.Scene))
	refs = append(refs, cfg.Background.Colormap)
	for _, s := range cfg.Scenes.Scene {
		refs = append(refs, s.Image)
	}
	for _, ref := range refs {
		src, err := ParseSource(ref, dir)
		if err != nil {
			return sum, err
		}
		if src.Path == "" {
			// The data is held in the configuration.
			continue
		}
		err = hashFile(h, src.Path)
		if err != nil {
			return sum, err
		}
	}
	return Sum(h.Sum(nil)), nil
}

func hashFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(h, f)
	return err
}
