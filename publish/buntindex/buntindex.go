// Package buntindex is the reference publish.Index: an embedded B-tree
// store (github.com/tidwall/buntdb, the same dependency the teacher's own
// dbdriver package wraps) holding one JSON blob per document, keyed by
// nsd_id. It backs every test, example, and any deployment with no real
// search engine wired in (spec §4.5).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package buntindex

import (
	"bytes"
	"context"
	"strings"

	"github.com/tidwall/buntdb"

	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
)

const autoShrinkSize = 1 << 20 // 1MiB, mirrors the teacher's dbdriver threshold

// Index wraps one buntdb database. path == ":memory:" keeps everything
// off disk, convenient for tests.
type Index struct {
	db *buntdb.DB
}

// Open opens (creating if absent) the buntdb file at path, configured
// with the teacher's periodic-sync/auto-shrink settings.
func Open(path string) (*Index, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	db.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkMinSize:    autoShrinkSize,
		AutoShrinkPercentage: 50,
	})
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

// Exists reports whether docID is currently stored (spec §4.3 step 3's
// incremental gate).
func (ix *Index) Exists(_ context.Context, docID string) (bool, error) {
	found := false
	err := ix.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(docID)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Upsert stores doc's JSON encoding (via the json-iterator-backed
// docmodel/codec, the only thing that knows how to address Bag's
// unexported field order) under its nsd_id (spec §4.5).
func (ix *Index) Upsert(_ context.Context, doc *docmodel.Document) error {
	var buf bytes.Buffer
	if err := codec.JSON.Encode(&buf, doc); err != nil {
		return err
	}
	return ix.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(doc.ID(), buf.String(), nil)
		return err
	})
}

// Delete removes docID's entry; a no-op if absent (spec §4.5 tombstone
// handling).
func (ix *Index) Delete(_ context.Context, docID string) error {
	err := ix.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(docID)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// Count returns the number of stored documents whose bag field named by
// field holds want (spec §6 "count(criteria)"); field == "" counts every
// document.
func (ix *Index) Count(_ context.Context, field, want string) (int, error) {
	n := 0
	err := ix.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(_, value string) bool {
			if field == "" {
				n++
				return true
			}
			doc, err := codec.JSON.Decode(strings.NewReader(value))
			if err != nil {
				return true
			}
			if f := doc.Bag.Get(field); f != nil && matchesAny(f, want) {
				n++
			}
			return true
		})
	})
	return n, err
}

func matchesAny(f *docmodel.Field, want string) bool {
	for _, v := range f.Values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
