package transform

import (
	"os"
	"testing"
	"time"

	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/queue"
)

type upperTitle struct{}

func (upperTitle) Validate() error { return nil }
func (upperTitle) Process(src *docmodel.Document) (*docmodel.Document, error) {
	dst := src.Clone()
	dst.Title = "CHANGED"
	return dst, nil
}

func newTestQueue(t *testing.T) *queue.CrawlQueue {
	t.Helper()
	q := queue.New(t.TempDir())
	if err := q.Start(queue.Full, time.Time{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return q
}

func writeExtracted(t *testing.T, q *queue.CrawlQueue, docID string) {
	t.Helper()
	doc := docmodel.New(docID, "generic")
	doc.Bag.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, docID))
	if err := codec.Save(q.DocPath(queue.Extract, docID, codec.XML), codec.XML, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestWorkerChangedDocumentWritesThenDeletes(t *testing.T) {
	q := newTestQueue(t)
	writeExtracted(t, q, "doc1")

	p := &Pipeline{steps: []Transformer{upperTitle{}}}
	in := make(chan queue.Payload, 2)
	out := make(chan queue.Payload, 2)
	in <- queue.DocPayload("doc1")
	in <- queue.FinishPayload()

	w := NewWorker(q, p, bagCopyStub{}, codec.XML, in, out, time.Second)
	if err := w.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := os.Stat(q.DocPath(queue.Extract, "doc1", codec.XML)); !os.IsNotExist(err) {
		t.Fatal("expected extract file removed")
	}
	dst, err := codec.Load(q.DocPath(queue.Publish, "doc1", codec.XML), codec.XML)
	if err != nil {
		t.Fatalf("load published: %v", err)
	}
	if dst.Title != "CHANGED" {
		t.Fatalf("expected transformed title, got %q", dst.Title)
	}

	first := <-out
	if first.IsTerminal() || first.DocID != "doc1" {
		t.Fatalf("expected doc1 forwarded first, got %v", first)
	}
	second := <-out
	if !second.IsTerminal() || second.IsAbort() {
		t.Fatalf("expected finish sentinel forwarded, got %v", second)
	}
}

func TestWorkerUnchangedDocumentRenamesOnly(t *testing.T) {
	q := newTestQueue(t)
	writeExtracted(t, q, "doc2")

	p := &Pipeline{} // empty pipeline: Execute returns src unchanged
	in := make(chan queue.Payload, 2)
	out := make(chan queue.Payload, 2)
	in <- queue.DocPayload("doc2")
	in <- queue.FinishPayload()

	w := NewWorker(q, p, bagCopyStub{}, codec.XML, in, out, time.Second)
	if err := w.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(q.DocPath(queue.Publish, "doc2", codec.XML)); err != nil {
		t.Fatalf("expected renamed file at publish dir: %v", err)
	}
}

func TestWorkerAbortForwardsAbortAndStops(t *testing.T) {
	q := newTestQueue(t)
	writeExtracted(t, q, "doc3")

	p := &Pipeline{}
	in := make(chan queue.Payload, 2)
	out := make(chan queue.Payload, 2)
	in <- queue.AbortPayload()
	in <- queue.DocPayload("doc3")

	w := NewWorker(q, p, bagCopyStub{}, codec.XML, in, out, time.Second)
	if err := w.Run(); err == nil {
		t.Fatal("expected cancellation error")
	}
	forwarded := <-out
	if !forwarded.IsAbort() {
		t.Fatalf("expected abort forwarded, got %v", forwarded)
	}
	if _, err := os.Stat(q.DocPath(queue.Publish, "doc3", codec.XML)); !os.IsNotExist(err) {
		t.Fatal("expected doc3 untouched by publish dir")
	}
}

type bagCopyStub struct{}

func (bagCopyStub) Validate() error { return nil }
func (bagCopyStub) Process(src *docmodel.Document) (*docmodel.Document, error) {
	return src.Clone(), nil
}
