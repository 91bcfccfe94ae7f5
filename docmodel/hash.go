package docmodel

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
)

// IDHash returns the deterministic content-addressed hash used to build
// nsd_id = idPrefix + IDHash(pathOrLogicalKey) (spec §3 invariant 5).
// Filesystem sources hash the absolute path; other sources hash their
// logical key (object key, blob name, ...).
func IDHash(logicalKey string) string {
	sum := md5.Sum([]byte(logicalKey))
	return hex.EncodeToString(sum[:])
}

// FallbackID returns a random UUID, used only when IDHash's input cannot be
// computed (spec §3 invariant 5: "fallback to random UUID only on hash
// failure").
func FallbackID() string {
	return uuid.NewString()
}

// DocHash computes nsd_doc_hash: a content hash of the document excluding
// the nsd_doc_hash field itself, so that hashing is idempotent with respect
// to a previously stamped hash value (spec §3 invariant 5, §8 invariant
// 11). Uses xxhash rather than md5: the id hash and the content hash are
// different hashes for different purposes (see DESIGN.md).
func DocHash(d *Document) string {
	h := xxhash.New64()
	writeHashable(h, d)
	return fmt.Sprintf("%016x", h.Sum64())
}

func writeHashable(h hash.Hash64, d *Document) {
	if d == nil {
		return
	}
	fmt.Fprintf(h, "doc:%s:%s\n", d.Type, d.Name)
	writeBagHashable(h, d.Bag)
	for _, r := range d.Relationships {
		fmt.Fprintf(h, "rel:%s\n", r.Type)
		writeBagHashable(h, r.Bag)
		for _, child := range r.Documents {
			writeHashable(h, child)
		}
	}
}

func writeBagHashable(h hash.Hash64, b *Bag) {
	if b == nil {
		return
	}
	names := append([]string(nil), b.Names()...)
	sort.Strings(names)
	for _, n := range names {
		if n == FieldDocHash {
			continue
		}
		f := b.Get(n)
		fmt.Fprintf(h, "f:%s:%s:%s\n", n, f.Type, strings.Join(f.Values, "\x1f"))
	}
}
