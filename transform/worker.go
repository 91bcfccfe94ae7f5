package transform

import (
	"time"

	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/cmn/cos"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/metrics"
	"github.com/nsdconnect/crawler/queue"
)

// DefaultPollTimeout mirrors publish.DefaultPollTimeout (spec §5
// "Timeouts", default 60s); the transform phase polls its input channel
// on the same cadence.
const DefaultPollTimeout = 60 * time.Second

// Worker is the long-lived Transform phase: dequeue an id, run the
// pipeline, hand the result to the Publish phase, forward sentinels
// (spec §4.4, §2 "Data/Control flow"). It implements cos.Runner.
type Worker struct {
	q           *queue.CrawlQueue
	pipeline    *Pipeline
	bagCopy     Transformer
	codec       codec.Codec
	in          <-chan queue.Payload
	out         chan<- queue.Payload
	pollTimeout time.Duration
	stop        *cos.StopCh
}

func NewWorker(q *queue.CrawlQueue, p *Pipeline, bagCopy Transformer, c codec.Codec, in <-chan queue.Payload, out chan<- queue.Payload, pollTimeout time.Duration) *Worker {
	if c == nil {
		c = codec.XML
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Worker{q: q, pipeline: p, bagCopy: bagCopy, codec: c, in: in, out: out, pollTimeout: pollTimeout, stop: cos.NewStopCh()}
}

func (w *Worker) Stop(err error) {
	if err != nil {
		glog.Warningf("transform: stop requested: %v", err)
	}
	w.stop.Close()
}

func (w *Worker) Run() error {
	for {
		select {
		case <-w.stop.Listen():
			w.forward(queue.AbortPayload())
			return cmn.ErrCancelled("transform: shutdown requested")
		case payload, ok := <-w.in:
			if !ok {
				return nil
			}
			if payload.IsAbort() {
				glog.Infof("transform: abort sentinel observed, discarding remaining work")
				w.forward(queue.AbortPayload())
				return cmn.ErrCancelled("transform: crawl aborted")
			}
			if payload.IsTerminal() {
				glog.Infof("transform: finish sentinel observed, draining")
				return w.drain()
			}
			metrics.SetQueueDepth("transform", len(w.in))
			w.processOne(payload)
		case <-time.After(w.pollTimeout):
			if w.stop.IsClosed() {
				w.forward(queue.AbortPayload())
				return cmn.ErrCancelled("transform: shutdown requested")
			}
		}
	}
}

// drain processes whatever is already buffered, then forwards
// CRAWL_FINISH — the phase's terminal sentinel is always the last thing
// it sends (spec §5 "Ordering guarantees").
func (w *Worker) drain() error {
	for {
		select {
		case payload, ok := <-w.in:
			if !ok || payload.IsTerminal() {
				w.forward(queue.FinishPayload())
				return nil
			}
			w.processOne(payload)
		default:
			w.forward(queue.FinishPayload())
			return nil
		}
	}
}

func (w *Worker) forward(p queue.Payload) {
	if w.out != nil {
		w.out <- p
	}
}

// processOne loads the extracted document, runs it through the pipeline,
// hands it to the Publish phase, and emits its id downstream. A
// structurally unchanged result (every step was bag-copy, or the
// pipeline is empty) uses the cheaper rename-only Transition; any real
// change uses TransitionWithDoc's write-then-delete (spec §9 open
// question 2).
func (w *Worker) processOne(payload queue.Payload) {
	docID := payload.DocID
	fpath := w.q.DocPath(queue.Extract, docID, w.codec)
	src, err := codec.Load(fpath, w.codec)
	if err != nil {
		glog.Warningf("transform %s: load failed, dropping: %v", docID, cmn.ErrIOFailed(err, "loading %s", fpath))
		metrics.Dropped("transform", "load_failed")
		return
	}

	dst, err := w.pipeline.Execute(src, w.bagCopy)
	if err != nil {
		glog.Warningf("transform %s: %v", docID, err)
		dst, err = w.bagCopy.Process(src)
		if err != nil {
			glog.Errorf("transform %s: bag-copy fallback failed, dropping: %v", docID, err)
			metrics.Dropped("transform", "pipeline_error")
			return
		}
	}

	if dst.Equal(src) {
		if err := w.q.Transition(queue.Extract, queue.Publish, docID, w.codec); err != nil {
			glog.Warningf("transform %s: transition failed, dropping: %v", docID, err)
			metrics.Dropped("transform", "transition_failed")
			return
		}
	} else {
		if err := w.q.TransitionWithDoc(queue.Extract, queue.Publish, docID, dst, w.codec); err != nil {
			glog.Warningf("transform %s: transition-with-doc failed, dropping: %v", docID, err)
			metrics.Dropped("transform", "transition_failed")
			return
		}
	}
	metrics.DocsTransformed.Inc()
	w.forward(queue.DocPayload(docID))
}
