// Package codec serializes docmodel.Document to and from the on-disk
// per-document files spec §6 names (XML, the canonical format, and JSON,
// used by the buntdb reference index and test fixtures). Both codecs
// persist via the teacher's atomic temp-file-then-rename pattern
// (cmn/jsp.Save), so a crash mid-write never leaves a half-written
// <docId>.xml behind.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package codec

import (
	"bytes"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/nsdconnect/crawler/cmn/cos"
	"github.com/nsdconnect/crawler/docmodel"
)

// Codec encodes/decodes a Document to/from a byte stream.
type Codec interface {
	Encode(w io.Writer, d *docmodel.Document) error
	Decode(r io.Reader) (*docmodel.Document, error)
	Ext() string // file extension, including the dot, e.g. ".xml"
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON is the json-iterator-backed codec (teacher dependency).
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Ext() string { return ".json" }

func (jsonCodec) Encode(w io.Writer, d *docmodel.Document) error {
	return jsonAPI.NewEncoder(w).Encode(wireOf(d))
}

func (jsonCodec) Decode(r io.Reader) (*docmodel.Document, error) {
	var w wireDoc
	if err := jsonAPI.NewDecoder(r).Decode(&w); err != nil {
		return nil, err
	}
	return w.toDocument(), nil
}

// Save atomically persists d to fpath using c, via the teacher's
// write-to-temp-then-rename pattern.
func Save(fpath string, c Codec, d *docmodel.Document) error {
	return cos.SaveAtomic(fpath, func(w io.Writer) error {
		return c.Encode(w, d)
	})
}

// Load reads and decodes the document at fpath using c.
func Load(fpath string, c Codec) (*docmodel.Document, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer cos.Close(f)
	return c.Decode(f)
}

// ByExt returns the codec matching a registered on-disk file extension
// (".xml" or ".json"), or nil.
func ByExt(ext string) Codec {
	switch ext {
	case ".xml":
		return XML
	case ".json":
		return JSON
	default:
		return nil
	}
}

// Reencode decodes data with src and re-encodes it with dst, proving the
// two codecs round-trip identically (SPEC_FULL.md §3).
func Reencode(data []byte, src, dst Codec) ([]byte, error) {
	d, err := src.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dst.Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
