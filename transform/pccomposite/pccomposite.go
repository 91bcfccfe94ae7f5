// Package pccomposite implements the parent-child-collapse (multi-level)
// transformer: a properties file of docType = spec1,spec2,... entries,
// each spec a "/"-separated chain of relationship types, collapses a
// multi-level relationship hierarchy down to a single child level
// (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package pccomposite

import (
	"strings"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
	"github.com/nsdconnect/crawler/transform/props"
)

func init() {
	transform.Register("pc_composite", func(configPath string) transform.Transformer {
		return New(configPath)
	})
}

// Transformer collapses configured multi-level relationship chains.
type Transformer struct {
	configPath string
	byDocType  map[string][][]string // docType -> list of relType chains
}

func New(configPath string) *Transformer {
	return &Transformer{configPath: configPath}
}

func (t *Transformer) Validate() error {
	if t.configPath == "" {
		return cmn.ErrConfigInvalid("pc_composite: config path required")
	}
	raw, err := props.Load(t.configPath)
	if err != nil {
		return err
	}
	byDocType := map[string][][]string{}
	for docType, specsStr := range raw {
		var chains [][]string
		for _, spec := range strings.Split(specsStr, ",") {
			spec = strings.TrimSpace(spec)
			if spec == "" {
				continue
			}
			var chain []string
			for _, relType := range strings.Split(spec, "/") {
				relType = strings.TrimSpace(relType)
				if relType != "" {
					chain = append(chain, relType)
				}
			}
			if len(chain) > 0 {
				chains = append(chains, chain)
			}
		}
		byDocType[docType] = chains
	}
	t.byDocType = byDocType
	return nil
}

func (t *Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	chains := t.byDocType[dst.Type]
	if len(chains) == 0 {
		return dst, nil
	}

	parentID := dst.ID()
	var collapsed []*docmodel.Relationship
	sawIsParent := false

	for _, chain := range chains {
		leaves := collectLeaves(dst, chain)
		for _, leaf := range leaves {
			merged := mergeParentIntoChild(dst.Bag, leaf.doc.Bag, leaf.relType, leaf.doc.Type)
			if parentID != "" {
				pidField := merged.Get(docmodel.FieldParentID)
				if pidField == nil {
					pidField = docmodel.NewField(docmodel.FieldParentID, docmodel.Text, "")
					merged.Set(pidField)
				}
				pidField.AddValue(parentID)
			}
			if dst.Bag.Get(docmodel.FieldIsParent) != nil {
				sawIsParent = true
			}
			rel := docmodel.NewRelationship(leaf.relType)
			rel.Documents = append(rel.Documents, &docmodel.Document{
				Name: leaf.doc.Name,
				Type: leaf.doc.Type,
				Bag:  merged,
			})
			collapsed = append(collapsed, rel)
		}
	}

	if sawIsParent {
		dst.Bag.Set(docmodel.NewField(docmodel.FieldIsParent, docmodel.Boolean, "true"))
	}
	dst.Relationships = collapsed
	return dst, nil
}

type leaf struct {
	doc     *docmodel.Document
	relType string // the relationship type immediately owning this leaf
}

// collectLeaves walks chain level-by-level from root's relationships,
// returning every document reached by following the full chain to its
// end.
func collectLeaves(root *docmodel.Document, chain []string) []leaf {
	docs := []*docmodel.Document{root}
	var relType string
	for _, want := range chain {
		relType = want
		var next []*docmodel.Document
		for _, d := range docs {
			for _, r := range d.Relationships {
				if r.Type != want {
					continue
				}
				next = append(next, r.Documents...)
			}
		}
		docs = next
		if len(docs) == 0 {
			return nil
		}
	}
	out := make([]leaf, len(docs))
	for i, d := range docs {
		out[i] = leaf{doc: d, relType: relType}
	}
	return out
}

// mergeParentIntoChild lifts parentBag's fields into a clone of
// childBag, the child winning on name collision, then stamps
// nsd_rel_type and nsd_doc_type and propagates nsd_acl_view if the child
// doesn't already carry one.
func mergeParentIntoChild(parentBag, childBag *docmodel.Bag, relType, leafDocType string) *docmodel.Bag {
	merged := docmodel.NewBag()
	for _, f := range parentBag.Fields() {
		merged.Set(f.Clone())
	}
	for _, f := range childBag.Fields() {
		merged.Set(f.Clone())
	}

	merged.Set(docmodel.NewField(docmodel.FieldRelType, docmodel.Text, relType))
	merged.Set(docmodel.NewField(docmodel.FieldDocType, docmodel.Text, leafDocType))

	if merged.Get(docmodel.FieldACLView) == nil {
		if aclField := parentBag.Get(docmodel.FieldACLView); aclField != nil {
			cp := aclField.Clone()
			cp.MultiValue = len(cp.Values) > 1
			merged.Set(cp)
		}
	}
	return merged
}
