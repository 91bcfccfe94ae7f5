// Package doctype implements the doc-type-assign transformer: a
// MIME<->type<->extension<->icon table (headered CSV) drives nsd_doc_type
// derivation for every bag in the document tree (spec §4.4).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package doctype

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/transform"
)

func init() {
	transform.Register("doc_type", func(configPath string) transform.Transformer {
		return New(configPath)
	})
}

// Unknown is the sentinel value a blank or un-derivable nsd_doc_type
// takes (spec §4.4).
const Unknown = "Unknown"

type row struct {
	mime, typeName, ext, icon string
}

// Transformer derives nsd_doc_type from a loaded MIME/extension table.
type Transformer struct {
	configPath string
	rows       []row
}

// New returns a Transformer sourcing its table from a headered CSV file
// at configPath (columns: mime,type,extension,icon).
func New(configPath string) *Transformer {
	return &Transformer{configPath: configPath}
}

func (t *Transformer) Validate() error {
	if t.configPath == "" {
		return cmn.ErrConfigInvalid("doc_type: config path required")
	}
	f, err := os.Open(t.configPath)
	if err != nil {
		return cmn.ErrConfigInvalid("doc_type: opening %s: %v", t.configPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return cmn.ErrConfigInvalid("doc_type: reading header of %s: %v", t.configPath, err)
	}
	idx := columnIndex(header)

	var rows []row
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		rows = append(rows, row{
			mime:     valueAt(rec, idx["mime"]),
			typeName: valueAt(rec, idx["type"]),
			ext:      strings.ToLower(valueAt(rec, idx["extension"])),
			icon:     valueAt(rec, idx["icon"]),
		})
	}
	t.rows = rows
	return nil
}

func columnIndex(header []string) map[string]int {
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func valueAt(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *Transformer) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	for _, bag := range dst.AllBags() {
		f := bag.Get(docmodel.FieldDocType)
		current := ""
		if f != nil {
			current = f.Value()
		}
		if current != "" && current != Unknown {
			continue
		}
		mimeType := ""
		if mf := bag.Get(docmodel.FieldMimeType); mf != nil {
			mimeType = mf.Value()
		}
		derived := t.nameByMIMEType(mimeType)
		if derived == Unknown {
			fileName := ""
			if nf := bag.Get(docmodel.FieldFileName); nf != nil {
				fileName = nf.Value()
			}
			derived = t.nameByFileExtension(fileName)
		}
		bag.Set(docmodel.NewField(docmodel.FieldDocType, docmodel.Text, derived))
	}
	return dst, nil
}

func (t *Transformer) nameByMIMEType(mimeType string) string {
	for _, r := range t.rows {
		if strings.EqualFold(r.mime, mimeType) {
			return r.typeName
		}
	}
	return Unknown
}

func (t *Transformer) nameByFileExtension(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		return Unknown
	}
	for _, r := range t.rows {
		if r.ext == ext {
			return r.typeName
		}
	}
	return Unknown
}
