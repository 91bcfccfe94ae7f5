// Package propsrc implements the concrete PropertySource named by spec.md's
// external-adapter table: a flat, dotted-key property bag (".extract.follow_file",
// ".publish.request_uri", ".transform.<name>_file", ...) assembled by
// layering Sources on top of one another, each layer overriding the keys it
// sets.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package propsrc

import (
	"time"

	"github.com/knadh/koanf/providers/confmap"
	koanf "github.com/knadh/koanf/v2"
)

// Source produces one layer of dotted-key property overrides. A Source
// that has nothing to contribute (a missing file, an unset env prefix)
// returns a nil map and no error rather than failing the load.
type Source interface {
	Load() (map[string]any, error)
}

// Bag is the PropertySource: a dotted-key lookup built by applying
// Sources in ascending precedence order, mirroring the layered
// defaults/global/repo/env/flags resolution Harvx's internal/config
// package runs over koanf, generalized here from Harvx's fixed Profile
// schema to the crawler's open-ended property surface (transformer
// names under ".transform." are not known in advance).
type Bag struct {
	k *koanf.Koanf
}

// New returns an empty Bag.
func New() *Bag {
	return &Bag{k: koanf.New(".")}
}

// Apply merges src's layer on top of whatever is already loaded,
// overriding any key both layers set.
func (b *Bag) Apply(src Source) error {
	flat, err := src.Load()
	if err != nil {
		return err
	}
	if len(flat) == 0 {
		return nil
	}
	return b.k.Load(confmap.Provider(flat, "."), nil)
}

func (b *Bag) String(key string) string         { return b.k.String(key) }
func (b *Bag) Int(key string) int                { return b.k.Int(key) }
func (b *Bag) Bool(key string) bool              { return b.k.Bool(key) }
func (b *Bag) Strings(key string) []string       { return b.k.Strings(key) }
func (b *Bag) Duration(key string) time.Duration { return b.k.Duration(key) }
func (b *Bag) Exists(key string) bool            { return b.k.Exists(key) }

// StringOr returns key's value, or def if key is unset.
func (b *Bag) StringOr(key, def string) string {
	if !b.k.Exists(key) {
		return def
	}
	return b.k.String(key)
}
