package orchestrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/extract"
	"github.com/nsdconnect/crawler/extract/fswalk"
	"github.com/nsdconnect/crawler/policy"
	"github.com/nsdconnect/crawler/publish"
	"github.com/nsdconnect/crawler/queue"
	"github.com/nsdconnect/crawler/transform"

	_ "github.com/nsdconnect/crawler/transform/bagcopy"
	_ "github.com/nsdconnect/crawler/transform/contentclean"
)

// fakeIndex is the in-memory publish.Index + extract.IndexChecker used by
// every scenario below: it records every Upsert/Delete call and answers
// Exists from a caller-seeded map.
type fakeIndex struct {
	mu      sync.Mutex
	present map[string]bool
	upserts []*docmodel.Document
	deletes []string
}

func newFakeIndex() *fakeIndex { return &fakeIndex{present: map[string]bool{}} }

func (f *fakeIndex) Exists(_ context.Context, docID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present[docID], nil
}

func (f *fakeIndex) Upsert(_ context.Context, doc *docmodel.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, doc)
	f.present[doc.ID()] = true
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, docID)
	delete(f.present, docID)
	return nil
}

func (f *fakeIndex) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

// pipelineOf builds a *transform.Pipeline from registered step names,
// falling back to bag-copy for anything unregistered (mirrors
// cmd/connectord's buildPipeline).
func pipelineOf(names ...string) *transform.Pipeline {
	bagCopy, ok := transform.Lookup("bag_copy")
	Expect(ok).To(BeTrue(), "bag_copy must be registered")
	steps := make([]transform.Step, len(names))
	for i, n := range names {
		steps[i] = transform.Step{Name: n}
	}
	p, err := transform.Build(steps, bagCopy)
	Expect(err).NotTo(HaveOccurred())
	return p
}

// runCrawl wires a filesystem Source against one full
// extract/transform/publish/orchestrate stack and blocks until the crawl
// completes (spec §4.6's one-shot lifecycle, as cmd/connectord drives it).
// srcRoot and queueRoot are deliberately distinct directories: the queue's
// own lock/phase files must never fall inside the tree being crawled.
func runCrawl(srcRoot, queueRoot string, crawlType queue.CrawlType, since time.Time, ignore *policy.List, idx *fakeIndex, pipeline *transform.Pipeline) (*queue.CrawlQueue, error) {
	q := queue.New(queueRoot)
	o := New(q, nil)

	extractCh := make(chan queue.Payload, ChannelDepth)
	publishCh := make(chan queue.Payload, ChannelDepth)

	build := func() Phases {
		src := &fswalk.Source{Root: srcRoot}
		ex := extract.New(extract.Config{
			IDPrefix:  "x_",
			CrawlType: crawlType,
			URLScheme: "file://",
			DocType:   "generic",
		}, src, ignore, q, idx, nil, codec.XML, extractCh)

		worker := transform.NewWorker(q, pipeline, mustBagCopy(), codec.XML, extractCh, publishCh, 0)
		pub := publish.New(q, idx, codec.XML, publishCh, 0)
		return Phases{Extract: ex, Transform: worker, Publish: pub}
	}

	err := o.Run(context.Background(), crawlType, since, build)
	return q, err
}

func mustBagCopy() transform.Transformer {
	f, _ := transform.Lookup("bag_copy")
	return f("")
}

func writeFile(dir, name, content string, mtime time.Time) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	Expect(os.Chtimes(path, mtime, mtime)).To(Succeed())
	return path
}

// mkTempDir returns a fresh scratch directory and a cleanup func, since
// these specs run under Ginkgo v1 (no per-It testing.TB to hang a
// TempDir() call off of).
func mkTempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "orchestrate-e2e-")
	Expect(err).NotTo(HaveOccurred())
	return dir, func() { os.RemoveAll(dir) }
}

var _ = Describe("Single file, full crawl (S1)", func() {
	It("extracts, transforms, and publishes exactly one document, then tears down the queue", func() {
		srcRoot, cleanupSrc := mkTempDir()
		defer cleanupSrc()
		queueRoot, cleanupQueue := mkTempDir()
		defer cleanupQueue()

		content := "Hello,\tWorld!\n\nThis   is   a   plain   test   file.\n"
		mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		writeFile(srcRoot, "a.txt", content, mtime)

		idx := newFakeIndex()
		q, err := runCrawl(srcRoot, queueRoot, queue.Full, time.Time{}, nil, idx, pipelineOf("content_clean"))
		Expect(err).NotTo(HaveOccurred())

		Expect(idx.upsertCount()).To(Equal(1))
		doc := idx.upserts[0]

		wantID := "x_" + docmodel.IDHash(filepath.Join(srcRoot, "a.txt"))
		Expect(doc.ID()).To(Equal(wantID))
		Expect(doc.Bag.Get(docmodel.FieldFileName).Value()).To(Equal("a.txt"))
		Expect(doc.Bag.Get(docmodel.FieldFileSize).Value()).To(Equal(fmt.Sprintf("%d", len(content))))
		Expect(doc.Bag.Get(docmodel.FieldMimeType).Value()).To(Equal("text/plain"))
		Expect(doc.Bag.ContentField()).NotTo(BeNil())
		Expect(doc.Bag.ContentField().Value()).NotTo(ContainSubstring("\t"))
		Expect(doc.Bag.ContentField().Value()).NotTo(ContainSubstring("\n"))

		Expect(q.IsActive()).To(BeFalse())
		_, statErr := os.Stat(filepath.Join(queueRoot, "queue", strconv.FormatUint(q.CrawlID(), 10)))
		Expect(os.IsNotExist(statErr)).To(BeTrue(), "expected the per-crawl directory to be removed")
		_, lockErr := os.Stat(filepath.Join(queueRoot, "queue", "lock.txt"))
		Expect(os.IsNotExist(lockErr)).To(BeTrue(), "expected the lockfile to be gone")
	})
})

var _ = Describe("Ignore list skips a file (S2)", func() {
	It("traverses only the non-ignored file", func() {
		srcRoot, cleanupSrc := mkTempDir()
		defer cleanupSrc()
		queueRoot, cleanupQueue := mkTempDir()
		defer cleanupQueue()

		now := time.Now()
		writeFile(srcRoot, "a.txt", "keep me", now)
		writeFile(srcRoot, "b.log", "drop me", now)

		ignorePath := filepath.Join(queueRoot, "ignore.txt")
		Expect(os.WriteFile(ignorePath, []byte(`\.log$`+"\n"), 0o644)).To(Succeed())
		ignore, err := policy.Load(ignorePath)
		Expect(err).NotTo(HaveOccurred())

		idx := newFakeIndex()
		_, err = runCrawl(srcRoot, queueRoot, queue.Full, time.Time{}, ignore, idx, pipelineOf("bag_copy"))
		Expect(err).NotTo(HaveOccurred())

		Expect(idx.upsertCount()).To(Equal(1))
		Expect(idx.upserts[0].Bag.Get(docmodel.FieldFileName).Value()).To(Equal("a.txt"))
	})
})

var _ = Describe("Incremental skip (S3)", func() {
	It("does not enqueue, persist, or call the index for an unmodified indexed file", func() {
		srcRoot, cleanupSrc := mkTempDir()
		defer cleanupSrc()
		queueRoot, cleanupQueue := mkTempDir()
		defer cleanupQueue()

		mtime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		writeFile(srcRoot, "a.txt", "unchanged", mtime)

		wantID := "x_" + docmodel.IDHash(filepath.Join(srcRoot, "a.txt"))
		idx := newFakeIndex()
		idx.present[wantID] = true

		since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		q, err := runCrawl(srcRoot, queueRoot, queue.Incremental, since, nil, idx, pipelineOf("bag_copy"))
		Expect(err).NotTo(HaveOccurred())

		Expect(idx.upsertCount()).To(Equal(0))
		Expect(q.IsActive()).To(BeFalse())
	})
})

var _ = Describe("Lock contention (S5)", func() {
	It("rejects a concurrent start and allows a fresh one after finish", func() {
		root, cleanup := mkTempDir()
		defer cleanup()
		q := queue.New(root)

		Expect(q.Start(queue.Full, time.Time{})).To(Succeed())

		second := queue.New(root)
		err := second.Start(queue.Full, time.Time{})
		Expect(err).To(HaveOccurred())
		Expect(cmn.ClassOf(err)).To(Equal(cmn.ClassCrawlAlreadyActive))

		Expect(q.Finish(false)).To(Succeed())
		Expect(q.IsActive()).To(BeFalse())

		third := queue.New(root)
		Expect(third.Start(queue.Full, time.Time{})).To(Succeed())
		Expect(third.Finish(false)).To(Succeed())
	})
})

// gatedSource lets a test control exactly when each of N synthetic entries
// is "opened", so cancellation can be injected deterministically between
// two specific documents (spec §4.6 "graceful abort").
type gatedSource struct {
	total   int
	opened  chan int
	proceed chan struct{}
}

func (s *gatedSource) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	for i := 0; i < s.total; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		idx := i
		entry := extract.Entry{
			LogicalKey: fmt.Sprintf("/virtual/doc-%d.txt", idx),
			Name:       fmt.Sprintf("doc-%d.txt", idx),
			Size:       5,
			ModTime:    time.Now(),
			Open: func() (io.ReadCloser, error) {
				s.opened <- idx
				select {
				case <-s.proceed:
					return io.NopCloser(strings.NewReader("hello")), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
	return nil
}

var _ = Describe("Graceful abort (S6)", func() {
	It("lets the in-flight document finish, emits CRAWL_ABORT, and still tears the queue down", func() {
		root, cleanup := mkTempDir()
		defer cleanup()
		q := queue.New(root)
		o := New(q, nil)

		gs := &gatedSource{total: 100, opened: make(chan int), proceed: make(chan struct{}, 1)}
		idx := newFakeIndex()

		extractCh := make(chan queue.Payload, ChannelDepth)
		publishCh := make(chan queue.Payload, ChannelDepth)
		build := func() Phases {
			ex := extract.New(extract.Config{IDPrefix: "x_", CrawlType: queue.Full, DocType: "generic"}, gs, nil, q, idx, nil, codec.XML, extractCh)
			worker := transform.NewWorker(q, pipelineOf("bag_copy"), mustBagCopy(), codec.XML, extractCh, publishCh, 0)
			pub := publish.New(q, idx, codec.XML, publishCh, 0)
			return Phases{Extract: ex, Transform: worker, Publish: pub}
		}

		ctx, cancel := context.WithCancel(context.Background())
		runErr := make(chan error, 1)
		go func() { runErr <- o.Run(ctx, queue.Full, time.Time{}, build) }()

		Expect(<-gs.opened).To(Equal(0))
		gs.proceed <- struct{}{} // let the first document complete end to end

		Expect(<-gs.opened).To(Equal(1)) // second document now blocked in Open
		cancel()

		var err error
		Eventually(runErr, 2*time.Second).Should(Receive(&err))
		Expect(err).To(HaveOccurred())
		Expect(cmn.ClassOf(err)).To(Equal(cmn.ClassCancelled))
		Expect(o.State()).To(Equal(Closed))

		Expect(idx.upsertCount()).To(Equal(1), "the in-flight document should have completed before abort")
		Expect(q.IsActive()).To(BeFalse())
		_, statErr := os.Stat(filepath.Join(root, "queue", strconv.FormatUint(q.CrawlID(), 10)))
		Expect(os.IsNotExist(statErr)).To(BeTrue(), "expected the per-crawl directory to be removed even on abort")
	})
})
