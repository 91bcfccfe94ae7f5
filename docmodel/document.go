package docmodel

// Relationship is a named, nestable grouping of related documents with its
// own attribute bag (spec §3).
type Relationship struct {
	Type      string      `json:"type"`
	Bag       *Bag        `json:"bag,omitempty"`
	Documents []*Document `json:"documents,omitempty"`
}

func NewRelationship(relType string) *Relationship {
	return &Relationship{Type: relType, Bag: NewBag()}
}

func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	cp := &Relationship{Type: r.Type, Bag: r.Bag.Clone()}
	if r.Documents != nil {
		cp.Documents = make([]*Document, len(r.Documents))
		for i, d := range r.Documents {
			cp.Documents[i] = d.Clone()
		}
	}
	return cp
}

// Document is the atomic unit of transformation and publication (spec §3):
// a root bag plus an ordered list of typed relationships, each of which may
// itself nest related documents to arbitrary depth.
type Document struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Title         string            `json:"title,omitempty"`
	SchemaVersion string            `json:"schemaVersion,omitempty"`
	Features      map[string]string `json:"features,omitempty"`
	Bag           *Bag              `json:"bag"`
	Relationships []*Relationship   `json:"relationships,omitempty"`
	ACL           map[string]string `json:"acl,omitempty"`
}

// New returns an empty document with an initialized bag, the starting
// point for both the extractor's per-file document and every transformer's
// freshly allocated output (spec §3 invariant 4).
func New(name, docType string) *Document {
	return &Document{Name: name, Type: docType, Bag: NewBag()}
}

// ID returns the value of the reserved nsd_id field, or "".
func (d *Document) ID() string {
	if f := d.Bag.Get(FieldID); f != nil {
		return f.Value()
	}
	return ""
}

// Clone returns a deep, independent copy of d: a fresh bag, a fresh
// relationship slice with freshly cloned child documents, and copied
// feature/ACL maps. This is the implementation backing bag-copy and the
// identity guarantee every transformer must uphold (spec §3 invariant 4,
// §8 invariant 7).
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := &Document{
		Name:          d.Name,
		Type:          d.Type,
		Title:         d.Title,
		SchemaVersion: d.SchemaVersion,
		Bag:           d.Bag.Clone(),
	}
	if d.Features != nil {
		cp.Features = make(map[string]string, len(d.Features))
		for k, v := range d.Features {
			cp.Features[k] = v
		}
	}
	if d.ACL != nil {
		cp.ACL = make(map[string]string, len(d.ACL))
		for k, v := range d.ACL {
			cp.ACL[k] = v
		}
	}
	if d.Relationships != nil {
		cp.Relationships = make([]*Relationship, len(d.Relationships))
		for i, r := range d.Relationships {
			cp.Relationships[i] = r.Clone()
		}
	}
	return cp
}

// Equal reports structural equality between d and o: same name/type/bag
// and same relationship tree, recursively. Used by the transform worker to
// decide rename-only vs. write-then-delete handoff (spec §9 open question
// 2) and by tests asserting transformer purity/idempotence.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Name != o.Name || d.Type != o.Type || d.Title != o.Title {
		return false
	}
	if !d.Bag.Equal(o.Bag) {
		return false
	}
	if len(d.Relationships) != len(o.Relationships) {
		return false
	}
	for i, r := range d.Relationships {
		or := o.Relationships[i]
		if r.Type != or.Type || !r.Bag.Equal(or.Bag) {
			return false
		}
		if len(r.Documents) != len(or.Documents) {
			return false
		}
		for j, child := range r.Documents {
			if !child.Equal(or.Documents[j]) {
				return false
			}
		}
	}
	return true
}

// AllBags returns the root bag followed by every relationship bag and
// related-document bag in the tree, depth-first — the iteration order
// content-clean, doc-type-assign, and field-delete apply themselves across
// (spec §4.4: "For every bag in the document tree").
func (d *Document) AllBags() []*Bag {
	var out []*Bag
	if d == nil {
		return out
	}
	out = append(out, d.Bag)
	for _, r := range d.Relationships {
		out = append(out, r.Bag)
		for _, child := range r.Documents {
			out = append(out, child.AllBags()...)
		}
	}
	return out
}
