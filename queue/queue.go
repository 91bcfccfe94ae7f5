package queue

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
	"golang.org/x/sys/unix"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/cmn/cos"
	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
)

const (
	lockFileName = "lock.txt"
	seenFilterCapacity = 1 << 20 // incremental-skip cuckoo filter entries
)

// CrawlType distinguishes a full crawl from an incremental one (spec §3).
type CrawlType string

const (
	Full        CrawlType = "full"
	Incremental CrawlType = "incremental"
)

// CrawlQueue owns the on-disk workspace for one crawl: the lockfile, the
// three phase directories, and the latched phase-complete flags (spec
// §4.1). Only one crawl may be active per BaseDir at a time.
type CrawlQueue struct {
	BaseDir string

	mtx           sync.Mutex
	crawlID       uint64
	sessionToken  string
	crawlType     CrawlType
	lastModified  time.Time
	phaseComplete map[Phase]bool
	lockFile      *os.File
	seen          *cuckoo.Filter
	shuttingDown  bool
}

func New(baseDir string) *CrawlQueue {
	return &CrawlQueue{
		BaseDir:       baseDir,
		phaseComplete: map[Phase]bool{},
		seen:          cuckoo.NewFilter(seenFilterCapacity),
	}
}

func (q *CrawlQueue) queueDir() string  { return filepath.Join(q.BaseDir, "queue") }
func (q *CrawlQueue) lockPath() string  { return filepath.Join(q.queueDir(), lockFileName) }
func (q *CrawlQueue) crawlDir() string  { return filepath.Join(q.queueDir(), strconv.FormatUint(q.crawlID, 10)) }

// PhaseDir returns the on-disk directory owned by phase for the active
// crawl.
func (q *CrawlQueue) PhaseDir(phase Phase) string {
	return filepath.Join(q.crawlDir(), string(phase))
}

// DocPath returns the path a document id occupies within phase's
// directory, for codec c's file extension.
func (q *CrawlQueue) DocPath(phase Phase, docID string, c codec.Codec) string {
	return filepath.Join(q.PhaseDir(phase), docID+c.Ext())
}

// Start allocates a new crawlId, creates the three phase directories, and
// exclusively creates the lockfile (spec §4.1). Fails with
// CrawlAlreadyActive if a crawl is already active under BaseDir.
func (q *CrawlQueue) Start(crawlType CrawlType, since time.Time) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.isActiveLocked() {
		return cmn.ErrCrawlAlreadyActive(q.BaseDir)
	}

	if err := os.MkdirAll(q.queueDir(), 0o755); err != nil {
		return cmn.ErrIOFailed(err, "creating queue dir %s", q.queueDir())
	}

	id := crawlID()
	q.crawlID = id
	q.crawlType = crawlType
	q.lastModified = since
	q.phaseComplete = map[Phase]bool{}
	q.sessionToken = shortSessionToken()

	for _, p := range []Phase{Extract, Transform, Publish} {
		if err := os.MkdirAll(q.PhaseDir(p), 0o755); err != nil {
			return cmn.ErrIOFailed(err, "creating phase dir %s", q.PhaseDir(p))
		}
	}

	f, err := os.OpenFile(q.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return cmn.ErrCrawlAlreadyActive(q.BaseDir)
		}
		return cmn.ErrIOFailed(err, "creating lockfile %s", q.lockPath())
	}
	// Advisory flock in addition to O_EXCL: guards against a stale lockfile
	// left by a killed process on the same host (SPEC_FULL.md §4.1); the
	// O_EXCL check above remains authoritative across hosts/NFS.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		glog.Warningf("advisory flock failed on %s (continuing, O_EXCL is authoritative): %v", q.lockPath(), err)
	}
	if _, err := f.WriteString(strconv.FormatUint(id, 10)); err != nil {
		cos.Close(f)
		return cmn.ErrIOFailed(err, "writing lockfile %s", q.lockPath())
	}
	q.lockFile = f

	glog.Infof("crawl %d (%s) started: type=%s base=%s", id, q.sessionToken, crawlType, q.BaseDir)
	return nil
}

func (q *CrawlQueue) isActiveLocked() bool {
	if q.crawlID == 0 {
		return false
	}
	_, err := os.Stat(q.lockPath())
	return err == nil
}

// IsActive reports whether a crawl is active: crawlId != 0 and the
// lockfile exists (spec §4.1).
func (q *CrawlQueue) IsActive() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.isActiveLocked()
}

func (q *CrawlQueue) CrawlID() uint64       { return q.crawlID }
func (q *CrawlQueue) CrawlType() CrawlType  { return q.crawlType }
func (q *CrawlQueue) LastModified() time.Time { return q.lastModified }

// RequestShutdown marks the queue as shutting down; IsPhaseComplete begins
// returning true for every phase from this point on (spec §4.1).
func (q *CrawlQueue) RequestShutdown() {
	q.mtx.Lock()
	q.shuttingDown = true
	q.mtx.Unlock()
}

// IsPhaseComplete reports true iff the application is shutting down, the
// phase was already marked complete, or payload is a terminal sentinel;
// in the last case it latches the phase as complete (spec §4.1, §3
// invariant 3: a phase completes at most once).
func (q *CrawlQueue) IsPhaseComplete(phase Phase, payload Payload) bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if q.shuttingDown || q.phaseComplete[phase] {
		return true
	}
	if payload.IsTerminal() {
		q.phaseComplete[phase] = true
		return true
	}
	return false
}

// Transition performs the rename-only handoff: <src>/<docId>.ext ->
// <dst>/<docId>.ext, used when the document is unchanged across the
// transition (spec §4.1, §9 open question 2).
func (q *CrawlQueue) Transition(src, dst Phase, docID string, c codec.Codec) error {
	from := q.DocPath(src, docID, c)
	to := q.DocPath(dst, docID, c)
	if _, err := os.Stat(from); err != nil {
		return cmn.ErrIOFailed(err, "transition %s: source %s absent", docID, from)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return cmn.ErrIOFailed(err, "creating dest dir for %s", docID)
	}
	if err := os.Rename(from, to); err != nil {
		return cmn.ErrIOFailed(err, "renaming %s -> %s", from, to)
	}
	return nil
}

// TransitionWithDoc writes document to <dst>/<docId>.ext, then deletes
// <src>/<docId>.ext: write-then-delete ordering, so a crash mid-handoff
// leaves a transient duplicate recovered by idempotent re-processing,
// never a loss (spec §4.1, §3 invariant 1's rename/write guarantee).
func (q *CrawlQueue) TransitionWithDoc(src, dst Phase, docID string, d *docmodel.Document, c codec.Codec) error {
	to := q.DocPath(dst, docID, c)
	if err := codec.Save(to, c, d); err != nil {
		return cmn.ErrIOFailed(err, "writing %s", to)
	}
	from := q.DocPath(src, docID, c)
	if err := cos.RemoveFile(from); err != nil {
		return cmn.ErrIOFailed(err, "removing %s after handoff", from)
	}
	return nil
}

// MaybeSeen consults the cuckoo-filter incremental-skip cache, which holds
// only docIDs recorded by MarkSeen: a hit lets the incremental gate skip
// the index round trip and go straight to the mtime comparison; a miss
// means the caller consults the authoritative index (SPEC_FULL.md §4.1).
func (q *CrawlQueue) MaybeSeen(docID string) bool {
	return q.seen.Lookup([]byte(docID))
}

// MarkSeen records docID in the incremental-skip cache after a confirmed
// index hit.
func (q *CrawlQueue) MarkSeen(docID string) {
	q.seen.InsertUnique([]byte(docID))
}

// Finish releases the crawl: Clear() if keepQueue, else Reset() (spec
// §4.1, §4.6 DRAINING/ABORTED -> CLOSED).
func (q *CrawlQueue) Finish(keepQueue bool) error {
	q.mtx.Lock()
	active := q.isActiveLocked()
	q.mtx.Unlock()
	if !active {
		return nil
	}
	if keepQueue {
		return q.clear()
	}
	return q.reset()
}

// clear releases the lock and resets phase flags, but leaves the per-crawl
// directories (and any files remaining in publish/, the durable retry
// queue per spec §9 open question 4) on disk.
func (q *CrawlQueue) clear() error {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.releaseLockedLocked()
}

// reset clears plus recursively deletes every per-crawl directory,
// including the durable publish-retry queue (spec §9 open question 4:
// reset() is the only operation that garbage-collects it).
func (q *CrawlQueue) reset() error {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	dir := q.crawlDir()
	if err := q.releaseLockedLocked(); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return cmn.ErrIOFailed(err, "removing crawl dir %s", dir)
	}
	return nil
}

func (q *CrawlQueue) releaseLockedLocked() error {
	if q.lockFile != nil {
		cos.Close(q.lockFile)
		q.lockFile = nil
	}
	if err := cos.RemoveFile(q.lockPath()); err != nil {
		return cmn.ErrIOFailed(err, "removing lockfile %s", q.lockPath())
	}
	glog.Infof("crawl %d (%s) finished", q.crawlID, q.sessionToken)
	q.crawlID = 0
	q.phaseComplete = map[Phase]bool{}
	return nil
}

// crawlID allocates a new 64-bit crawl identifier: CRC32 of a fresh UUID,
// widened to uint64 (spec §4.1 "UUID->CRC32 or equivalent 64-bit unique
// value").
func crawlID() uint64 {
	u := uuid.New()
	return uint64(crc32.ChecksumIEEE([]byte(u.String())))
}

// shortSessionToken mints a short, human-readable token used only in log
// lines, never as crawlId itself.
func shortSessionToken() string {
	id, err := shortid.Generate()
	if err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return strings.ToLower(id)
}
