// Package publish implements the crawl engine's third phase: dequeuing a
// document id from the Publish channel, sending the document to an index
// sink, and deleting the on-disk copy on success (spec §4.5).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package publish

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/cmn/cos"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/metrics"
	"github.com/nsdconnect/crawler/queue"
)

// Index is the sink a Publisher drives: upsert a live document, delete a
// tombstone, and answer exists() for the extractor's incremental gate
// (spec §4.5, §4.3 step 3). publish/buntindex and publish/httpindex each
// supply one.
type Index interface {
	Exists(ctx context.Context, docID string) (bool, error)
	Upsert(ctx context.Context, doc *docmodel.Document) error
	Delete(ctx context.Context, docID string) error
}

// DefaultPollTimeout is the Publish channel poll interval used when no
// config value is supplied (spec §5 "Timeouts", default 60s).
const DefaultPollTimeout = 60 * time.Second

// Publisher is the long-lived worker owning the Publish phase; it
// implements cos.Runner so the orchestrator's run group can manage it
// alongside the extract and transform workers.
type Publisher struct {
	q           *queue.CrawlQueue
	idx         Index
	codec       codec.Codec
	in          <-chan queue.Payload
	pollTimeout time.Duration
	stop        *cos.StopCh
}

func New(q *queue.CrawlQueue, idx Index, c codec.Codec, in <-chan queue.Payload, pollTimeout time.Duration) *Publisher {
	if c == nil {
		c = codec.XML
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Publisher{q: q, idx: idx, codec: c, in: in, pollTimeout: pollTimeout, stop: cos.NewStopCh()}
}

// Stop requests cooperative shutdown; Run observes it at its next poll
// and returns cmn.ErrCancelled.
func (p *Publisher) Stop(err error) {
	if err != nil {
		glog.Warningf("publish: stop requested: %v", err)
	}
	p.stop.Close()
}

// Run drains the Publish channel until a terminal sentinel, the stop
// signal, or the channel closing (spec §4.5, §5 "Timeouts").
func (p *Publisher) Run() error {
	ctx := context.Background()
	for {
		select {
		case <-p.stop.Listen():
			return cmn.ErrCancelled("publish: shutdown requested")
		case payload, ok := <-p.in:
			if !ok {
				return nil
			}
			if payload.IsAbort() {
				glog.Infof("publish: abort sentinel observed, discarding remaining work")
				return cmn.ErrCancelled("publish: crawl aborted")
			}
			if payload.IsTerminal() {
				glog.Infof("publish: finish sentinel observed, draining")
				return p.drain(ctx)
			}
			metrics.SetQueueDepth("publish", len(p.in))
			p.processOne(ctx, payload)
		case <-time.After(p.pollTimeout):
			// No work within pollTimeout; re-poll unless shutdown was
			// requested meanwhile (spec §5 "Timeouts").
			if p.stop.IsClosed() {
				return cmn.ErrCancelled("publish: shutdown requested")
			}
		}
	}
}

// drain processes every item already buffered in the channel (none
// remain once the FINISH sentinel itself has been received, since a
// phase's terminal sentinel is always the last message it sends — spec
// §5 "Ordering guarantees") then returns.
func (p *Publisher) drain(ctx context.Context) error {
	for {
		select {
		case payload, ok := <-p.in:
			if !ok || payload.IsTerminal() {
				return nil
			}
			p.processOne(ctx, payload)
		default:
			return nil
		}
	}
}

// processOne loads, publishes, and — on success — deletes the on-disk
// copy of one document. A transient failure (IOFailed reading the file,
// or any error from the index) is logged and the file is left in place
// for retry on the next crawl (spec §4.5, §7 propagation policy).
func (p *Publisher) processOne(ctx context.Context, payload queue.Payload) {
	fpath := p.q.DocPath(queue.Publish, payload.DocID, p.codec)
	doc, err := codec.Load(fpath, p.codec)
	if err != nil {
		glog.Warningf("publish %s: load failed, leaving for retry: %v", payload.DocID, cmn.ErrIOFailed(err, "loading %s", fpath))
		return
	}

	if err := p.send(ctx, doc); err != nil {
		glog.Warningf("publish %s: %v", payload.DocID, cmn.ErrPublishFailed(err, "sending to index"))
		return
	}
	metrics.DocsPublished.Inc()

	if err := cos.RemoveFile(fpath); err != nil {
		glog.Errorf("publish %s: sent but failed to remove %s: %v", payload.DocID, fpath, err)
	}
}

// send dispatches to Index.Delete for a tombstone or Index.Upsert
// otherwise (spec §4.5).
func (p *Publisher) send(ctx context.Context, doc *docmodel.Document) error {
	if f := doc.Bag.Get(docmodel.FieldIsDeleted); f != nil && f.Value() == "true" {
		return p.idx.Delete(ctx, doc.ID())
	}
	return p.idx.Upsert(ctx, doc)
}
