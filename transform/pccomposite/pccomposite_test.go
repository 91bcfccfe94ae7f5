package pccomposite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsdconnect/crawler/docmodel"
)

func TestProcessCollapsesTwoLevelHierarchy(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "composite.properties")
	if err := os.WriteFile(cfgPath, []byte("folder = section/page\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tr := New(cfgPath)
	if err := tr.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	root := docmodel.New("root", "folder")
	root.Bag.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, "root-id"))
	root.Bag.Set(docmodel.NewField(docmodel.FieldACLView, docmodel.Text, "everyone"))

	page := docmodel.New("page1", "Page")
	page.Bag.Set(docmodel.NewField("title", docmodel.Text, "hello"))

	sectionRel := docmodel.NewRelationship("section")
	section := docmodel.New("section1", "Section")
	pageRel := docmodel.NewRelationship("page")
	pageRel.Documents = append(pageRel.Documents, page)
	section.Relationships = append(section.Relationships, pageRel)
	sectionRel.Documents = append(sectionRel.Documents, section)
	root.Relationships = append(root.Relationships, sectionRel)

	out, err := tr.Process(root)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.Relationships) != 1 {
		t.Fatalf("expected one collapsed top-level relationship, got %d", len(out.Relationships))
	}
	leafDoc := out.Relationships[0].Documents[0]
	if leafDoc.Bag.Get("title").Value() != "hello" {
		t.Fatal("expected leaf field preserved")
	}
	if leafDoc.Bag.Get(docmodel.FieldDocType).Value() != "Page" {
		t.Fatalf("expected nsd_doc_type=Page, got %q", leafDoc.Bag.Get(docmodel.FieldDocType).Value())
	}
	if leafDoc.Bag.Get(docmodel.FieldRelType).Value() != "page" {
		t.Fatalf("expected nsd_rel_type=page, got %q", leafDoc.Bag.Get(docmodel.FieldRelType).Value())
	}
	if leafDoc.Bag.Get(docmodel.FieldParentID).Value() != "root-id" {
		t.Fatal("expected nsd_parent_id propagated from root")
	}
	if leafDoc.Bag.Get(docmodel.FieldACLView).Value() != "everyone" {
		t.Fatal("expected nsd_acl_view propagated from root when absent on leaf")
	}
}
