// Package fielddelete implements the field-delete transformer: a
// newline-separated glob pattern list drops matching fields from every
// bag in the document tree (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package fielddelete

import (
	"bufio"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
)

func init() {
	transform.Register("field_delete", func(configPath string) transform.Transformer {
		return New(configPath)
	})
}

// Transformer drops fields whose name matches any loaded glob pattern.
type Transformer struct {
	configPath string
	patterns   []string
}

func New(configPath string) *Transformer {
	return &Transformer{configPath: configPath}
}

func (t *Transformer) Validate() error {
	if t.configPath == "" {
		return cmn.ErrConfigInvalid("field_delete: config path required")
	}
	f, err := os.Open(t.configPath)
	if err != nil {
		return cmn.ErrConfigInvalid("field_delete: opening %s: %v", t.configPath, err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return cmn.ErrConfigInvalid("field_delete: reading %s: %v", t.configPath, err)
	}
	t.patterns = patterns
	return nil
}

func (t *Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	for _, bag := range dst.AllBags() {
		for _, name := range bag.Names() {
			if t.matches(name) {
				bag.Delete(name)
			}
		}
	}
	return dst, nil
}

func (t *Transformer) matches(name string) bool {
	for _, p := range t.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
