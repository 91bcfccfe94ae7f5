// Package pccollapse implements the pc-collapse transformer: for the
// root document, relationships whose type is configured for the
// document's own type are folded into the root bag, renamed
// rel_<titleToName(childDocType)>_<field>, with values accumulated as
// multi-value (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package pccollapse

import (
	"strings"
	"unicode"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
	"github.com/nsdconnect/crawler/transform/props"
)

func init() {
	f := func(configPath string) transform.Transformer { return New(configPath) }
	transform.Register("pc_collapse", f)
	// field_collapse names the same fold-relationship-into-root-bag
	// operation in spec.md's registry-keys list (§4.4); registered as an
	// alias so either name resolves to it (see DESIGN.md open question).
	transform.Register("field_collapse", f)
}

// idPrefixKey is a reserved properties key (not a document type) naming
// the id-value prefix whose "<prefix>id" field name the fold skips,
// alongside every nsd_-prefixed field (spec §4.4).
const idPrefixKey = "_id_prefix"

// Transformer folds configured relationships into the root bag.
type Transformer struct {
	configPath string
	byDocType  map[string][]string // docType -> relationship types to collapse
	idPrefix   string
}

func New(configPath string) *Transformer {
	return &Transformer{configPath: configPath}
}

func (t *Transformer) Validate() error {
	if t.configPath == "" {
		return cmn.ErrConfigInvalid("pc_collapse: config path required")
	}
	raw, err := props.Load(t.configPath)
	if err != nil {
		return err
	}
	byDocType := map[string][]string{}
	for k, v := range raw {
		if k == idPrefixKey {
			t.idPrefix = v
			continue
		}
		var relTypes []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				relTypes = append(relTypes, part)
			}
		}
		byDocType[k] = relTypes
	}
	t.byDocType = byDocType
	return nil
}

func (t *Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	relTypes := t.byDocType[dst.Type]
	if len(relTypes) == 0 {
		return dst, nil
	}

	for _, r := range dst.Relationships {
		if !contains(relTypes, r.Type) {
			continue
		}
		childDocType := r.Type
		if len(r.Documents) > 0 {
			childDocType = r.Documents[0].Type
		}
		prefix := "rel_" + titleToName(childDocType) + "_"
		for _, f := range r.Bag.Fields() {
			if docmodel.IsReserved(f.Name) || f.Name == t.idPrefix+"id" {
				continue
			}
			newName := prefix + f.Name
			dstField := dst.Bag.Get(newName)
			if dstField == nil {
				dstField = docmodel.NewField(newName, f.Type, "")
				dst.Bag.Set(dstField)
			}
			for _, v := range f.Values {
				dstField.AddValue(v)
			}
		}
	}

	dst.Relationships = nil
	return dst, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// titleToName converts a title-cased document type name ("Child Type",
// "ChildType") into a lowercase, underscore-joined name fragment
// ("child_type").
func titleToName(title string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range title {
		switch {
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-':
			if i != 0 {
				b.WriteByte('_')
			}
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return strings.Trim(b.String(), "_")
}
