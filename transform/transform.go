// Package transform implements the transformer pipeline: an ordered
// sequence of named, pure Document->Document transformers resolved from a
// static registry (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package transform

import (
	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
)

// Transformer is a single named, stateless-after-init document
// transformer (spec §4.4).
type Transformer interface {
	// Validate fails with ConfigInvalid if a required configuration file
	// or property this transformer depends on is missing.
	Validate() error
	// Process returns a new document derived from src; src is never
	// mutated.
	Process(src *docmodel.Document) (*docmodel.Document, error)
}

// Factory builds a Transformer from a registry entry's configuration
// path (a properties file, glob list, CSV table, or "" when the
// transformer needs no external configuration).
type Factory func(configPath string) Transformer

var registry = map[string]Factory{}

// Register adds name to the static registry. Called from each concrete
// transformer subpackage's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// Lookup resolves name to a Factory, or reports ok=false for an unknown
// name — the caller collapses this to the bag-copy identity transformer
// (spec §4.4: "Unknown names collapse to the identity transformer").
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

// Step is one named, configured entry in a Pipeline's ordered sequence.
type Step struct {
	Name       string
	ConfigPath string
}

// Pipeline is an ordered sequence of resolved transformers (spec §4.4).
type Pipeline struct {
	steps []Transformer
}

// Build resolves each Step against the registry, falling back to
// bag-copy for unknown names, and validates every resolved transformer.
func Build(steps []Step, bagCopy Factory) (*Pipeline, error) {
	p := &Pipeline{}
	for _, s := range steps {
		factory, ok := Lookup(s.Name)
		if !ok {
			factory = bagCopy
		}
		t := factory(s.ConfigPath)
		if err := t.Validate(); err != nil {
			return nil, cmn.ErrConfigInvalid("transformer %q: %v", s.Name, err)
		}
		p.steps = append(p.steps, t)
	}
	return p, nil
}

// Execute runs src through every step in order: dst = T.process(src); src
// = dst. If a step returns a nil document, the pipeline substitutes
// bagCopy(src) and continues (spec §4.4 "Execution").
func (p *Pipeline) Execute(src *docmodel.Document, bagCopy Transformer) (*docmodel.Document, error) {
	cur := src
	for _, t := range p.steps {
		next, err := t.Process(cur)
		if err != nil {
			return nil, cmn.ErrTransformFailed(err, "transformer step failed")
		}
		if next == nil {
			next, err = bagCopy.Process(cur)
			if err != nil {
				return nil, cmn.ErrTransformFailed(err, "bag-copy fallback failed")
			}
		}
		cur = next
	}
	return cur, nil
}
