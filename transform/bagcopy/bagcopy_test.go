package bagcopy

import (
	"testing"

	"github.com/nsdconnect/crawler/docmodel"
)

func TestProcessReturnsDeepCloneNotTheSamePointer(t *testing.T) {
	doc := docmodel.New("doc1", "generic")
	doc.Bag.Set(docmodel.NewField("f", docmodel.Text, "v"))

	tr := New()
	out, err := tr.Process(doc)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out == doc {
		t.Fatal("expected a distinct document")
	}
	if !out.Equal(doc) {
		t.Fatal("expected structural equality with the source")
	}
	out.Bag.Get("f").Values[0] = "mutated"
	if doc.Bag.Get("f").Value() == "mutated" {
		t.Fatal("mutating the clone must not affect the source")
	}
}
