// Package bagcopy implements the bag-copy transformer: the identity
// transform and the terminal fallback every other transformer collapses
// to on an unknown name or a nil result (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package bagcopy

import (
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
)

func init() {
	transform.Register("bag_copy", func(string) transform.Transformer { return New() })
}

// Transformer deep-clones its input and returns the clone unchanged.
type Transformer struct{}

// New returns a bag-copy Transformer; it needs no configuration.
func New() *Transformer { return &Transformer{} }

func (*Transformer) Validate() error { return nil }

func (*Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	return src.Clone(), nil
}
