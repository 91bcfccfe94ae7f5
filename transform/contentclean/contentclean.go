// Package contentclean implements the content-clean transformer: for
// every bag in the document tree, it rewrites the is_content field's
// value as dots(spaces(control(v))) (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package contentclean

import (
	"strings"
	"unicode"

	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
)

func init() {
	transform.Register("content_clean", func(string) transform.Transformer { return New() })
}

// Transformer cleans the is_content field of every bag in a document's
// tree; it needs no external configuration.
type Transformer struct{}

func New() *Transformer { return &Transformer{} }

func (*Transformer) Validate() error { return nil }

func (*Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	for _, bag := range dst.AllBags() {
		f := bag.ContentField()
		if f == nil {
			continue
		}
		for i, v := range f.Values {
			f.Values[i] = dots(spaces(control(v)))
		}
	}
	return dst, nil
}

// control replaces \r, \n, \t with a space, strips Unicode control
// characters, keeps only code points below 128, then trims.
func control(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '\r', '\n', '\t':
			b.WriteByte(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if r >= 128 {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// spaces collapses consecutive whitespace to a single space, then trims.
func spaces(v string) string {
	fields := strings.Fields(v)
	return strings.TrimSpace(strings.Join(fields, " "))
}

// dots collapses consecutive '.' to a single '.'.
func dots(v string) string {
	var b strings.Builder
	prevDot := false
	for _, r := range v {
		if r == '.' {
			if prevDot {
				continue
			}
			prevDot = true
		} else {
			prevDot = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
