// Package orchestrate drives the crawl lifecycle state machine and the
// three-worker run group (spec §4.6): INIT -> ACQUIRE_LOCK -> RUNNING ->
// DRAINING/ABORTED -> CLOSED.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/nsdconnect/crawler/cmn/cos"
	"github.com/nsdconnect/crawler/extract"
	"github.com/nsdconnect/crawler/queue"
)

// State names one point in the crawl lifecycle (spec §4.6).
type State string

const (
	Init        State = "INIT"
	AcquireLock State = "ACQUIRE_LOCK"
	Running     State = "RUNNING"
	Draining    State = "DRAINING"
	Aborted     State = "ABORTED"
	Closed      State = "CLOSED"
)

// ChannelDepth is the default bounded-channel depth between phases
// (spec §4.6 "default depth configurable, >= 1").
const ChannelDepth = 64

// Orchestrator owns the crawl-lifecycle state machine: it acquires the
// crawl lock, wires the three bounded phase channels, runs the three
// phase workers to completion under a runGroup, and releases the lock.
type Orchestrator struct {
	q      *queue.CrawlQueue
	leader LeaderElector // nil unless .cluster.leader_election is configured
	state  atomic.String
	mtx    sync.Mutex
}

// LeaderElector gates crawl-lock acquisition on winning Kubernetes leader
// election (spec §4.6 ".cluster.leader_election"); see
// orchestrate/k8slease for the concrete client-go-backed implementation.
// When nil, the filesystem lockfile alone is authoritative.
type LeaderElector interface {
	// RunAsLeader blocks until ctx is done, invoking fn each time this
	// replica becomes leader and stopping it (via fn's own cos.Runner
	// contract, left to the caller) when leadership is lost.
	RunAsLeader(ctx context.Context, fn func(ctx context.Context))
}

func New(q *queue.CrawlQueue, leader LeaderElector) *Orchestrator {
	o := &Orchestrator{q: q, leader: leader}
	o.state.Store(string(Init))
	return o
}

func (o *Orchestrator) State() State {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.mtx.Lock()
	o.state.Store(string(s))
	o.mtx.Unlock()
	glog.Infof("orchestrate: state -> %s", s)
}

// Phases bundles the three long-lived workers the orchestrator runs
// together, already constructed against their shared channels.
type Phases struct {
	Extract   *extract.Extractor
	Transform cos.Runner
	Publish   cos.Runner
}

// Run drives one full crawl lifecycle: ACQUIRE_LOCK, then RUNNING with
// all three phases joined via a runGroup, then DRAINING/ABORTED ->
// CLOSED (spec §4.6). build is called only after the lock is held, so it
// can safely construct the phase workers against q's now-valid crawl
// directories.
func (o *Orchestrator) Run(ctx context.Context, crawlType queue.CrawlType, since time.Time, build func() Phases) error {
	o.setState(Init)
	o.setState(AcquireLock)

	if o.leader != nil {
		var runErr error
		done := make(chan struct{})
		o.leader.RunAsLeader(ctx, func(leaderCtx context.Context) {
			runErr = o.runLocked(leaderCtx, crawlType, since, build)
			close(done)
		})
		<-done
		return runErr
	}
	return o.runLocked(ctx, crawlType, since, build)
}

// runLocked performs CrawlQueue.start (the authoritative lockfile
// acquisition, spec §4.1) and, on success, runs the three phases.
func (o *Orchestrator) runLocked(ctx context.Context, crawlType queue.CrawlType, since time.Time, build func() Phases) error {
	if err := o.q.Start(crawlType, since); err != nil {
		// INIT -> ACQUIRE_LOCK fails: do not start workers (spec §4.6).
		return err
	}

	o.setState(Running)
	phases := build()

	extractCtx, cancelExtract := context.WithCancel(ctx)
	defer cancelExtract()

	rg := newRunGroup()
	rg.add("extract", runnerFunc{
		run:  func() error { return phases.Extract.Run(extractCtx) },
		stop: func(error) { cancelExtract() },
	})
	rg.add("transform", phases.Transform)
	rg.add("publish", phases.Publish)

	err := rg.run()

	if err != nil {
		// Any non-nil runner error — a structural failure or a
		// cooperative-cancellation Stop cascade — takes the ABORTED path;
		// an orderly FINISH-driven drain returns nil from every phase.
		o.setState(Aborted)
	} else {
		o.setState(Draining)
	}

	// DRAINING -> CLOSED / ABORTED -> CLOSED: all workers joined;
	// CrawlQueue.finish(keepQueue=false) (spec §4.6, invariant 3).
	if finishErr := o.q.Finish(false); finishErr != nil {
		glog.Errorf("orchestrate: finish failed: %v", finishErr)
		if err == nil {
			err = finishErr
		}
	}
	o.setState(Closed)
	return err
}

// runnerFunc adapts a pair of plain functions to cos.Runner, used for
// extract.Extractor whose Run takes a context rather than implementing
// the interface directly.
type runnerFunc struct {
	run  func() error
	stop func(error)
}

func (r runnerFunc) Run() error     { return r.run() }
func (r runnerFunc) Stop(err error) { r.stop(err) }

// runGroup starts every named Runner concurrently and waits for all of
// them to join, the same shape as the teacher's ais/daemon.go
// rungroup{rs map[string]cos.Runner, errCh chan error} — generalized from
// "cluster daemon run group" to "three crawl-phase workers". Unlike the
// teacher's peer-service runners, ours form a pipeline: Extract, then
// Transform, then Publish exit one after another as each observes its
// own FINISH sentinel, so a nil-returning exit does not, by itself,
// broadcast Stop to the others. Stop is only broadcast once some runner
// returns a genuine (non-nil) error, so the remaining phases abort
// instead of draining a pipeline that can no longer make progress.
type runGroup struct {
	rs    map[string]cos.Runner
	errCh chan error
}

func newRunGroup() *runGroup { return &runGroup{rs: map[string]cos.Runner{}} }

func (g *runGroup) add(name string, r cos.Runner) { g.rs[name] = r }

func (g *runGroup) run() error {
	g.errCh = make(chan error, len(g.rs))
	for name, r := range g.rs {
		go func(name string, r cos.Runner) {
			err := r.Run()
			if err != nil {
				glog.Warningf("orchestrate: runner %q exited: %v", name, err)
			}
			g.errCh <- err
		}(name, r)
	}

	var first error
	stopped := false
	for i := 0; i < len(g.rs); i++ {
		err := <-g.errCh
		if err != nil {
			if first == nil {
				first = err
			}
			if !stopped {
				stopped = true
				for _, r := range g.rs {
					r.Stop(first)
				}
			}
		}
	}
	return first
}
