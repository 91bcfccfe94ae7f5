package docmodel

// Bag is an ordered, name-unique mapping of field name to Field (spec §3).
// Order is preserved via the slice; name lookup via the index map.
type Bag struct {
	order []string
	byName map[string]*Field
}

func NewBag() *Bag {
	return &Bag{byName: map[string]*Field{}}
}

// Set inserts or replaces the field, preserving its original position on
// replace and appending on insert.
func (b *Bag) Set(f *Field) {
	if b.byName == nil {
		b.byName = map[string]*Field{}
	}
	if _, ok := b.byName[f.Name]; !ok {
		b.order = append(b.order, f.Name)
	}
	b.byName[f.Name] = f
}

// Get returns the named field, or nil.
func (b *Bag) Get(name string) *Field {
	if b == nil {
		return nil
	}
	return b.byName[name]
}

// Delete removes the named field; a no-op if absent.
func (b *Bag) Delete(name string) {
	if b == nil {
		return
	}
	if _, ok := b.byName[name]; !ok {
		return
	}
	delete(b.byName, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Names returns field names in insertion order.
func (b *Bag) Names() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of fields currently in the bag.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// Fields returns the Field values in insertion order (not copies).
func (b *Bag) Fields() []*Field {
	if b == nil {
		return nil
	}
	out := make([]*Field, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.byName[n])
	}
	return out
}

// ContentField returns the field with is_content=true, or nil if none
// (spec §3 invariant: at most one per bag).
func (b *Bag) ContentField() *Field {
	for _, f := range b.Fields() {
		if f.Feature(FeatIsContent) == "true" {
			return f
		}
	}
	return nil
}

// PrimaryKeyField returns the field with is_primary_key=true, or nil.
func (b *Bag) PrimaryKeyField() *Field {
	for _, f := range b.Fields() {
		if f.Feature(FeatIsPrimaryKey) == "true" {
			return f
		}
	}
	return nil
}

// Clone returns a deep, independent copy of b (spec §3 invariant 4:
// transformers never mutate their input).
func (b *Bag) Clone() *Bag {
	if b == nil {
		return nil
	}
	cp := NewBag()
	for _, n := range b.order {
		cp.Set(b.byName[n].Clone())
	}
	return cp
}

// Equal reports whether a and b carry the same fields in the same order
// with the same values and features.
func (b *Bag) Equal(o *Bag) bool {
	if b == nil || o == nil {
		return b == o
	}
	if len(b.order) != len(o.order) {
		return false
	}
	for i, n := range b.order {
		if o.order[i] != n {
			return false
		}
		if !fieldEqual(b.byName[n], o.byName[n]) {
			return false
		}
	}
	return true
}

func fieldEqual(a, c *Field) bool {
	if a == nil || c == nil {
		return a == c
	}
	if a.Name != c.Name || a.Type != c.Type || a.Title != c.Title ||
		a.DefaultValue != c.DefaultValue || a.MultiValue != c.MultiValue {
		return false
	}
	if len(a.Values) != len(c.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != c.Values[i] {
			return false
		}
	}
	if len(a.Features) != len(c.Features) {
		return false
	}
	for k, v := range a.Features {
		if c.Features[k] != v {
			return false
		}
	}
	return true
}
