package buntindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nsdconnect/crawler/docmodel"
)

func openTemp(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestUpsertThenExistsAndCount(t *testing.T) {
	ix := openTemp(t)
	ctx := context.Background()

	doc := docmodel.New("doc1", "generic")
	doc.Bag.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, "doc1"))
	doc.Bag.Set(docmodel.NewField(docmodel.FieldDocType, docmodel.Text, "PDF"))

	if err := ix.Upsert(ctx, doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ok, err := ix.Exists(ctx, "doc1")
	if err != nil || !ok {
		t.Fatalf("expected doc1 to exist, ok=%v err=%v", ok, err)
	}
	n, err := ix.Count(ctx, docmodel.FieldDocType, "pdf")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 matching PDF, got %d", n)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	ix := openTemp(t)
	ctx := context.Background()

	doc := docmodel.New("doc2", "generic")
	doc.Bag.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, "doc2"))
	if err := ix.Upsert(ctx, doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Delete(ctx, "doc2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := ix.Exists(ctx, "doc2")
	if err != nil || ok {
		t.Fatalf("expected doc2 gone, ok=%v err=%v", ok, err)
	}
	if err := ix.Delete(ctx, "doc2"); err != nil {
		t.Fatalf("expected delete of absent key to be a no-op, got %v", err)
	}
}

func TestExistsFalseForMissingKey(t *testing.T) {
	ix := openTemp(t)
	ok, err := ix.Exists(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected false/nil, got ok=%v err=%v", ok, err)
	}
}
