package codec

import "github.com/nsdconnect/crawler/docmodel"

// The wire* types are the serializable mirror of docmodel's types, which
// keep their field order in an unexported slice+map pair that neither
// encoding/xml nor encoding/json can address directly. Both codecs convert
// through this mirror, which is what guarantees the round-trip spec §6
// requires: decode with one codec, encode with the other, get back an
// Equal document (SPEC_FULL.md §3).

type wireField struct {
	Name         string            `json:"name" xml:"name,attr"`
	Type         string            `json:"type" xml:"type,attr"`
	Title        string            `json:"title,omitempty" xml:"title,attr,omitempty"`
	Features     map[string]string `json:"features,omitempty" xml:"-"`
	FeatureList  []wireKV          `json:"-" xml:"feature,omitempty"`
	Values       []string          `json:"values,omitempty" xml:"value,omitempty"`
	DefaultValue string            `json:"defaultValue,omitempty" xml:"defaultValue,attr,omitempty"`
	DisplaySize  int               `json:"displaySize,omitempty" xml:"displaySize,attr,omitempty"`
	SortOrder    int               `json:"sortOrder,omitempty" xml:"sortOrder,attr,omitempty"`
	RangeLow     string            `json:"rangeLow,omitempty" xml:"rangeLow,attr,omitempty"`
	RangeHigh    string            `json:"rangeHigh,omitempty" xml:"rangeHigh,attr,omitempty"`
	MultiValue   bool              `json:"multiValue,omitempty" xml:"multiValue,attr,omitempty"`
}

type wireKV struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type wireBag struct {
	Fields []wireField `json:"fields" xml:"field"`
}

type wireRelationship struct {
	Type      string     `json:"type" xml:"type,attr"`
	Bag       wireBag    `json:"bag" xml:"bag"`
	Documents []wireDoc  `json:"documents,omitempty" xml:"document,omitempty"`
}

type wireDoc struct {
	Name          string             `json:"name" xml:"name,attr"`
	Type          string             `json:"type" xml:"type,attr"`
	Title         string             `json:"title,omitempty" xml:"title,attr,omitempty"`
	SchemaVersion string             `json:"schemaVersion,omitempty" xml:"schemaVersion,attr,omitempty"`
	Features      map[string]string  `json:"features,omitempty" xml:"-"`
	FeatureList   []wireKV           `json:"-" xml:"feature,omitempty"`
	Bag           wireBag            `json:"bag" xml:"bag"`
	Relationships []wireRelationship `json:"relationships,omitempty" xml:"relationship,omitempty"`
	ACL           map[string]string  `json:"acl,omitempty" xml:"-"`
	ACLList       []wireKV           `json:"-" xml:"acl>entry,omitempty"`
}

func wireOf(d *docmodel.Document) wireDoc {
	if d == nil {
		return wireDoc{}
	}
	w := wireDoc{
		Name:          d.Name,
		Type:          d.Type,
		Title:         d.Title,
		SchemaVersion: d.SchemaVersion,
		Features:      d.Features,
		FeatureList:   kvList(d.Features),
		Bag:           wireBagOf(d.Bag),
		ACL:           d.ACL,
		ACLList:       kvList(d.ACL),
	}
	for _, r := range d.Relationships {
		w.Relationships = append(w.Relationships, wireRelationshipOf(r))
	}
	return w
}

func wireRelationshipOf(r *docmodel.Relationship) wireRelationship {
	wr := wireRelationship{Type: r.Type, Bag: wireBagOf(r.Bag)}
	for _, child := range r.Documents {
		wr.Documents = append(wr.Documents, wireOf(child))
	}
	return wr
}

func wireBagOf(b *docmodel.Bag) wireBag {
	var wb wireBag
	for _, f := range b.Fields() {
		wb.Fields = append(wb.Fields, wireFieldOf(f))
	}
	return wb
}

func wireFieldOf(f *docmodel.Field) wireField {
	return wireField{
		Name:         f.Name,
		Type:         string(f.Type),
		Title:        f.Title,
		Features:     f.Features,
		FeatureList:  kvList(f.Features),
		Values:       f.Values,
		DefaultValue: f.DefaultValue,
		DisplaySize:  f.DisplaySize,
		SortOrder:    f.SortOrder,
		RangeLow:     f.RangeLow,
		RangeHigh:    f.RangeHigh,
		MultiValue:   f.MultiValue,
	}
}

func kvList(m map[string]string) []wireKV {
	if len(m) == 0 {
		return nil
	}
	out := make([]wireKV, 0, len(m))
	for k, v := range m {
		out = append(out, wireKV{Key: k, Value: v})
	}
	return out
}

func kvMap(list []wireKV) map[string]string {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]string, len(list))
	for _, kv := range list {
		m[kv.Key] = kv.Value
	}
	return m
}

func (w wireDoc) toDocument() *docmodel.Document {
	d := &docmodel.Document{
		Name:          w.Name,
		Type:          w.Type,
		Title:         w.Title,
		SchemaVersion: w.SchemaVersion,
		Features:      mergeMaps(w.Features, kvMap(w.FeatureList)),
		Bag:           w.Bag.toBag(),
		ACL:           mergeMaps(w.ACL, kvMap(w.ACLList)),
	}
	for _, wr := range w.Relationships {
		d.Relationships = append(d.Relationships, wr.toRelationship())
	}
	return d
}

func (wr wireRelationship) toRelationship() *docmodel.Relationship {
	r := &docmodel.Relationship{Type: wr.Type, Bag: wr.Bag.toBag()}
	for _, wd := range wr.Documents {
		r.Documents = append(r.Documents, wd.toDocument())
	}
	return r
}

func (wb wireBag) toBag() *docmodel.Bag {
	b := docmodel.NewBag()
	for _, wf := range wb.Fields {
		b.Set(wf.toField())
	}
	return b
}

func (wf wireField) toField() *docmodel.Field {
	return &docmodel.Field{
		Name:         wf.Name,
		Type:         docmodel.FieldType(wf.Type),
		Title:        wf.Title,
		Features:     mergeMaps(wf.Features, kvMap(wf.FeatureList)),
		Values:       wf.Values,
		DefaultValue: wf.DefaultValue,
		DisplaySize:  wf.DisplaySize,
		SortOrder:    wf.SortOrder,
		RangeLow:     wf.RangeLow,
		RangeHigh:    wf.RangeHigh,
		MultiValue:   wf.MultiValue,
	}
}

// mergeMaps prefers a (the JSON-native map) and falls back to b (the
// XML-native attr list), since only one of the two is ever populated for a
// given codec's decode path.
func mergeMaps(a, b map[string]string) map[string]string {
	if len(a) > 0 {
		return a
	}
	return b
}
