package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/detect"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/metrics"
	"github.com/nsdconnect/crawler/policy"
	"github.com/nsdconnect/crawler/queue"
)

// Config parameterizes one Extractor run against one Source (spec §4.3,
// §6 config keys under `.extract.*`).
type Config struct {
	IDPrefix         string
	CrawlType        queue.CrawlType
	Since            time.Time
	CSVRowToDocument bool
	ValidationMode   bool
	URLScheme        string // prefixed to LogicalKey for nsd_url, e.g. "file://"
	DocType          string // the type stamped on every extracted document
}

// Extractor implements the source-agnostic part of spec §4.3: the
// incremental gate (step 3), document population and persistence (step
// 4), CSV row expansion (step 5), and terminal sentinel emission (step
// 6). Step 1 (Follow-gated directory pre-visit) lives inside each
// filesystem-shaped Source, since only a hierarchical source has
// directories to pre-visit.
type Extractor struct {
	cfg    Config
	src    Source
	ignore *policy.List
	q      *queue.CrawlQueue
	idx    IndexChecker
	det    detect.Detector
	codec  codec.Codec
	ch     chan<- queue.Payload
}

// New constructs an Extractor. det and c default to detect.Default and
// codec.XML respectively when nil.
func New(cfg Config, src Source, ignore *policy.List, q *queue.CrawlQueue, idx IndexChecker, det detect.Detector, c codec.Codec, ch chan<- queue.Payload) *Extractor {
	if det == nil {
		det = detect.Default
	}
	if c == nil {
		c = codec.XML
	}
	return &Extractor{cfg: cfg, src: src, ignore: ignore, q: q, idx: idx, det: det, codec: c, ch: ch}
}

// Run walks the Source to completion (or until ctx is cancelled),
// emitting CRAWL_FINISH or CRAWL_ABORT as the channel's final message
// (spec §4.3 step 6, §5 ordering guarantees).
func (e *Extractor) Run(ctx context.Context) error {
	walkErr := e.src.Walk(ctx, func(entry Entry) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.ignore != nil && !e.ignore.Empty() && e.ignore.IsMatchedNormalized(entry.LogicalKey) {
			return nil
		}
		if err := e.visit(ctx, entry); err != nil {
			glog.Warningf("extract: skipping %s: %v", entry.LogicalKey, err)
		}
		return nil
	})

	if ctx.Err() != nil {
		e.emit(queue.AbortPayload())
		return cmn.ErrCancelled("extract: shutdown requested")
	}
	if walkErr != nil {
		glog.Errorf("extract: walk of source failed: %v", walkErr)
		e.emit(queue.AbortPayload())
		return cmn.ErrExtractionFailed(walkErr, "walk failed")
	}
	e.emit(queue.FinishPayload())
	return nil
}

func (e *Extractor) emit(p queue.Payload) {
	if e.ch != nil {
		e.ch <- p
	}
}

// visit runs spec §4.3 steps 2-5 for one source entry.
func (e *Extractor) visit(ctx context.Context, entry Entry) error {
	docID := e.cfg.IDPrefix + docmodel.IDHash(entry.LogicalKey)

	if e.cfg.CrawlType == queue.Incremental {
		proceed, err := e.incrementalGate(ctx, docID, entry.ModTime)
		if err != nil {
			return cmn.ErrExtractionFailed(err, "incremental gate for %s", entry.LogicalKey)
		}
		if !proceed {
			return nil
		}
	}

	rc, err := entry.Open()
	if err != nil {
		return cmn.ErrExtractionFailed(err, "opening %s", entry.LogicalKey)
	}
	defer rc.Close()

	mimeType, text, err := e.det.Detect(entry.Name, rc)
	if err != nil {
		glog.Warningf("extract: content detection failed for %s: %v", entry.LogicalKey, err)
	}

	if e.cfg.CSVRowToDocument && detect.IsCSV(mimeType) {
		return e.expandCSV(entry, text)
	}

	doc := e.newDocument(docID, entry, mimeType, text)
	return e.persist(doc)
}

// incrementalGate implements spec §4.3 step 3. The cuckoo filter only
// caches a docID once idx.Exists has confirmed it present this crawl, so
// it can never substitute for the real lookup on a docID's first sighting
// (e.g. a revisit via a symlink loop or duplicate CSV-expanded key).
func (e *Extractor) incrementalGate(ctx context.Context, docID string, mtime time.Time) (bool, error) {
	if e.idx == nil {
		return true, nil
	}
	if e.q != nil && e.q.MaybeSeen(docID) {
		return mtime.After(e.q.LastModified()), nil
	}
	exists, err := e.idx.Exists(ctx, docID)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	if e.q != nil {
		e.q.MarkSeen(docID)
	}
	return mtime.After(e.q.LastModified()), nil
}

// newDocument builds a fresh document and populates the reserved fields
// spec §4.3 step 4 names.
func (e *Extractor) newDocument(docID string, entry Entry, mimeType, text string) *docmodel.Document {
	doc := docmodel.New(entry.Name, e.cfg.DocType)
	b := doc.Bag
	b.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, docID))
	b.Set(docmodel.NewField(docmodel.FieldURL, docmodel.Text, e.cfg.URLScheme+entry.LogicalKey))
	b.Set(docmodel.NewField(docmodel.FieldURLView, docmodel.Text, e.cfg.URLScheme+entry.LogicalKey))
	b.Set(docmodel.NewField(docmodel.FieldURLDisplay, docmodel.Text, entry.Name))
	b.Set(docmodel.NewField(docmodel.FieldFileName, docmodel.Text, entry.Name))
	b.Set(docmodel.NewField(docmodel.FieldFileSize, docmodel.Long, fmt.Sprintf("%d", entry.Size)))
	b.Set(docmodel.NewField(docmodel.FieldDocCreatedTS, docmodel.DateTime, entry.ModTime.UTC().Format(time.RFC3339)))
	b.Set(docmodel.NewField(docmodel.FieldDocModifiedTS, docmodel.DateTime, entry.ModTime.UTC().Format(time.RFC3339)))
	b.Set(docmodel.NewField(docmodel.FieldCrawlType, docmodel.Text, string(e.cfg.CrawlType)))
	b.Set(docmodel.NewField(docmodel.FieldMimeType, docmodel.Text, mimeType))

	if text != "" {
		content := docmodel.NewField("content", docmodel.Text, text)
		content.SetFeature(docmodel.FeatIsContent, "true")
		b.Set(content)
	}

	b.Set(docmodel.NewField(docmodel.FieldDocHash, docmodel.Text, docmodel.DocHash(doc)))
	return doc
}

// expandCSV implements spec §4.3 step 5: the parent file is not itself
// enqueued in this mode, only its per-row documents.
func (e *Extractor) expandCSV(entry Entry, data string) error {
	r := csv.NewReader(strings.NewReader(data))
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return cmn.ErrExtractionFailed(err, "reading CSV header for %s", entry.LogicalKey)
	}

	rowNum := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cmn.ErrExtractionFailed(err, "reading CSV row %d of %s", rowNum, entry.LogicalKey)
		}
		rowNum++

		logicalKey := fmt.Sprintf("%s#row:%d:%s", entry.LogicalKey, rowNum, strings.Join(row, ","))
		docID := e.cfg.IDPrefix + docmodel.IDHash(logicalKey)
		doc := docmodel.New(fmt.Sprintf("%s#%d", entry.Name, rowNum), e.cfg.DocType)
		b := doc.Bag
		b.Set(docmodel.NewField(docmodel.FieldID, docmodel.Text, docID))
		b.Set(docmodel.NewField(docmodel.FieldURL, docmodel.Text, e.cfg.URLScheme+entry.LogicalKey))
		b.Set(docmodel.NewField(docmodel.FieldFileName, docmodel.Text, entry.Name))
		b.Set(docmodel.NewField(docmodel.FieldCrawlType, docmodel.Text, string(e.cfg.CrawlType)))
		b.Set(docmodel.NewField(docmodel.FieldMimeType, docmodel.Text, "text/csv"))
		for i, col := range header {
			var v string
			if i < len(row) {
				v = row[i]
			}
			b.Set(docmodel.NewField(col, docmodel.Text, v))
		}
		b.Set(docmodel.NewField(docmodel.FieldDocHash, docmodel.Text, docmodel.DocHash(doc)))

		if err := e.persist(doc); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) persist(doc *docmodel.Document) error {
	if e.cfg.ValidationMode {
		return nil
	}
	docID := doc.ID()
	fpath := e.q.DocPath(queue.Extract, docID, e.codec)
	if err := codec.Save(fpath, e.codec, doc); err != nil {
		metrics.Dropped("extract", "io_failed")
		return cmn.ErrIOFailed(err, "persisting %s", fpath)
	}
	metrics.DocsExtracted.Inc()
	e.emit(queue.DocPayload(docID))
	return nil
}
