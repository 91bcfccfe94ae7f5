// Package fieldmapper implements the field-mapper transformer: a
// properties file of sourceFieldName = targetFieldName pairs renames
// matching fields in every bag of the document tree (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package fieldmapper

import (
	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
	"github.com/nsdconnect/crawler/transform/props"
)

func init() {
	transform.Register("field_mapper", func(configPath string) transform.Transformer {
		return New(configPath)
	})
}

// Transformer renames fields per a loaded source->target mapping.
type Transformer struct {
	configPath string
	mapping    map[string]string
}

func New(configPath string) *Transformer {
	return &Transformer{configPath: configPath}
}

func (t *Transformer) Validate() error {
	if t.configPath == "" {
		return cmn.ErrConfigInvalid("field_mapper: config path required")
	}
	mapping, err := props.Load(t.configPath)
	if err != nil {
		return err
	}
	t.mapping = mapping
	return nil
}

func (t *Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	for _, bag := range dst.AllBags() {
		renameBag(bag, t.mapping)
	}
	return dst, nil
}

// renameBag rebuilds bag in place, producing a new bag containing the
// renamed fields plus unmapped fields unchanged (spec §4.4: "produce a
// new bag containing the renamed fields (plus unmapped fields
// unchanged)").
func renameBag(bag *docmodel.Bag, mapping map[string]string) {
	fields := bag.Fields()
	renamed := make([]*docmodel.Field, 0, len(fields))
	for _, f := range fields {
		cp := f.Clone()
		if target, ok := mapping[f.Name]; ok {
			cp.Name = target
		}
		renamed = append(renamed, cp)
	}
	for _, n := range bag.Names() {
		bag.Delete(n)
	}
	for _, f := range renamed {
		bag.Set(f)
	}
}
