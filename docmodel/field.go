// Package docmodel implements the recursive Document/Field/Relationship
// model shared by every phase of the crawl engine (spec §3).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package docmodel

import "strings"

// FieldType enumerates the value types a Field may carry.
type FieldType string

const (
	Text     FieldType = "Text"
	Integer  FieldType = "Integer"
	Long     FieldType = "Long"
	Float    FieldType = "Float"
	Double   FieldType = "Double"
	Boolean  FieldType = "Boolean"
	DateTime FieldType = "DateTime"
)

// Reserved feature keys (spec §3 "Feature conventions").
const (
	FeatIsContent    = "is_content"
	FeatIsHidden     = "is_hidden"
	FeatIsPrimaryKey = "is_primary_key"
	FeatMVDelimiter  = "mv_delimiter"
)

// DefaultMVDelimiter is used when a multi-value field carries no explicit
// mv_delimiter feature.
const DefaultMVDelimiter = "|"

// Reserved field names (spec §3).
const (
	FieldID             = "nsd_id"
	FieldDocType        = "nsd_doc_type"
	FieldURL            = "nsd_url"
	FieldFileName       = "nsd_file_name"
	FieldMimeType       = "nsd_mime_type"
	FieldDocCreatedTS   = "nsd_doc_created_ts"
	FieldDocModifiedTS  = "nsd_doc_modified_ts"
	FieldDocHash        = "nsd_doc_hash"
	FieldCrawlType      = "nsd_crawl_type"
	FieldParentID       = "nsd_parent_id"
	FieldIsParent       = "nsd_is_parent"
	FieldRelType        = "nsd_rel_type"
	FieldACLView        = "nsd_acl_view"
	FieldFileSize       = "nsd_file_size"
	FieldURLView        = "nsd_url_view"
	FieldURLDisplay     = "nsd_url_display"

	// FieldIsDeleted marks a tombstone: the publisher calls index.delete
	// instead of index.upsert for any document carrying this field with
	// value "true" (spec §4.5's "tombstone" case, otherwise unspecified by
	// name; extractor sources that detect removals, e.g. a future
	// delete-feed source, stamp it).
	FieldIsDeleted = "nsd_is_deleted"
)

// ReservedPrefix is the prefix shared by every reserved field name.
const ReservedPrefix = "nsd_"

// IsReserved reports whether name carries the reserved nsd_ prefix.
func IsReserved(name string) bool { return strings.HasPrefix(name, ReservedPrefix) }

// Field is a single named, typed value slot within a Bag (spec §3).
type Field struct {
	Name         string            `json:"name" xml:"name,attr"`
	Type         FieldType         `json:"type" xml:"type,attr"`
	Title        string            `json:"title,omitempty" xml:"title,attr,omitempty"`
	Features     map[string]string `json:"features,omitempty" xml:"features>feature,omitempty"`
	Values       []string          `json:"values,omitempty" xml:"value,omitempty"`
	DefaultValue string            `json:"defaultValue,omitempty" xml:"defaultValue,attr,omitempty"`
	DisplaySize  int               `json:"displaySize,omitempty" xml:"displaySize,attr,omitempty"`
	SortOrder    int               `json:"sortOrder,omitempty" xml:"sortOrder,attr,omitempty"`
	RangeLow     string            `json:"rangeLow,omitempty" xml:"rangeLow,attr,omitempty"`
	RangeHigh    string            `json:"rangeHigh,omitempty" xml:"rangeHigh,attr,omitempty"`
	MultiValue   bool              `json:"multiValue,omitempty" xml:"multiValue,attr,omitempty"`
}

// NewField constructs a field of type ftype carrying value as its only
// value (no value when value is ""); AddValue widens it.
func NewField(name string, ftype FieldType, value string) *Field {
	f := &Field{Name: name, Type: ftype}
	if value != "" {
		f.Values = []string{value}
	}
	return f
}

// Value returns the first value, or "" if the field carries none.
func (f *Field) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Feature returns a feature value, defaulting to "".
func (f *Field) Feature(key string) string {
	if f.Features == nil {
		return ""
	}
	return f.Features[key]
}

func (f *Field) SetFeature(key, value string) {
	if f.Features == nil {
		f.Features = map[string]string{}
	}
	f.Features[key] = value
}

// Delimiter returns the mv_delimiter feature, or DefaultMVDelimiter.
func (f *Field) Delimiter() string {
	if d := f.Feature(FeatMVDelimiter); d != "" {
		return d
	}
	return DefaultMVDelimiter
}

// AddValue appends a value, marking the field multi-valued if it now
// carries more than one.
func (f *Field) AddValue(v string) {
	f.Values = append(f.Values, v)
	if len(f.Values) > 1 {
		f.MultiValue = true
	}
}

// Clone returns a deep, independent copy of f.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	cp := *f
	if f.Features != nil {
		cp.Features = make(map[string]string, len(f.Features))
		for k, v := range f.Features {
			cp.Features[k] = v
		}
	}
	if f.Values != nil {
		cp.Values = append([]string(nil), f.Values...)
	}
	return &cp
}

// JoinedValue collapses Values with the field's delimiter, the inverse of
// multi-value expansion (spec §3 Field).
func (f *Field) JoinedValue() string {
	return strings.Join(f.Values, f.Delimiter())
}
