package fielddelete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsdconnect/crawler/docmodel"
)

func TestProcessDeletesMatchingFields(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "delete.glob")
	if err := os.WriteFile(cfgPath, []byte("# comment\ntmp_*\nscratch?\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tr := New(cfgPath)
	if err := tr.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	doc := docmodel.New("doc1", "generic")
	doc.Bag.Set(docmodel.NewField("tmp_field", docmodel.Text, "x"))
	doc.Bag.Set(docmodel.NewField("scratch1", docmodel.Text, "y"))
	doc.Bag.Set(docmodel.NewField("keep_field", docmodel.Text, "z"))

	out, err := tr.Process(doc)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Bag.Get("tmp_field") != nil {
		t.Fatal("expected tmp_field deleted")
	}
	if out.Bag.Get("scratch1") != nil {
		t.Fatal("expected scratch1 deleted (single-char wildcard)")
	}
	if out.Bag.Get("keep_field") == nil {
		t.Fatal("expected keep_field to remain")
	}
}
