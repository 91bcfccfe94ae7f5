package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/docmodel"
	"github.com/nsdconnect/crawler/docmodel/codec"
	"github.com/nsdconnect/crawler/extract"
	"github.com/nsdconnect/crawler/extract/fswalk"
	"github.com/nsdconnect/crawler/orchestrate"
	"github.com/nsdconnect/crawler/policy"
	"github.com/nsdconnect/crawler/publish"
	"github.com/nsdconnect/crawler/publish/buntindex"
	"github.com/nsdconnect/crawler/publish/httpindex"
	"github.com/nsdconnect/crawler/queue"
	"github.com/nsdconnect/crawler/transform"
	"github.com/nsdconnect/crawler/transform/bagcopy"
)

// runTask wires one task's Extract/Transform/Publish phases and drives
// them through an orchestrate.Orchestrator for one full crawl lifecycle
// (spec §4.6). The filesystem is the only Source wired here; a
// deployment that needs a remote Source (extract/s3, extract/azureblob,
// ...) constructs its own Extractor against orchestrate.Orchestrator
// directly rather than through this CLI, which targets the
// fully-specified "hard part" of spec.md's in-scope filesystem crawler.
func runTask(ctx context.Context, tc taskConfig) error {
	idx, err := openIndex(tc)
	if err != nil {
		return err
	}
	if closer, ok := idx.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	q := queue.New(tc.QueueDir)

	var follow, ignore *policy.List
	if tc.FollowFile != "" {
		if follow, err = policy.Load(tc.FollowFile); err != nil {
			return err
		}
	}
	if tc.IgnoreFile != "" {
		if ignore, err = policy.Load(tc.IgnoreFile); err != nil {
			return err
		}
	}

	pipeline, err := buildPipeline(tc)
	if err != nil {
		return err
	}

	since := readSince(tc)

	extractCh := make(chan queue.Payload, orchestrate.ChannelDepth)
	publishCh := make(chan queue.Payload, orchestrate.ChannelDepth)

	o := orchestrate.New(q, nil)
	build := func() orchestrate.Phases {
		src := &fswalk.Source{Root: tc.SourceDir, Follow: follow}
		extractor := extract.New(extract.Config{
			IDPrefix:         tc.IDValuePrefix,
			CrawlType:        tc.CrawlType,
			CSVRowToDocument: tc.CSVRowToDoc,
			ValidationMode:   tc.ValidationMode,
			URLScheme:        tc.URLScheme,
			DocType:          tc.DocType,
		}, src, ignore, q, idx, nil, codec.XML, extractCh)

		worker := transform.NewWorker(q, pipeline, bagcopy.New(), codec.XML, extractCh, publishCh, tc.PollTimeout)
		publisher := publish.New(q, idx, codec.XML, publishCh, tc.PollTimeout)

		return orchestrate.Phases{Extract: extractor, Transform: worker, Publish: publisher}
	}

	runErr := o.Run(ctx, tc.CrawlType, since, build)
	if runErr == nil && !tc.ValidationMode {
		writeSince(tc, time.Now())
	}
	return runErr
}

// sinceMarker returns the path of the file tracking this task's last
// successfully-completed crawl, consulted by incremental crawls (spec
// §4.3 step 3 "last-modified comparison") — spec.md names the property
// source and the index as the inputs to this decision but not where a
// standalone CLI run persists the boundary between invocations, so
// connectord keeps it next to the task's own queue directory.
func sinceMarker(tc taskConfig) string {
	return filepath.Join(tc.QueueDir, ".last_success")
}

func readSince(tc taskConfig) time.Time {
	if tc.CrawlType != queue.Incremental || tc.ValidationMode {
		return time.Time{}
	}
	data, err := os.ReadFile(sinceMarker(tc))
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}
	}
	return t
}

func writeSince(tc taskConfig, at time.Time) {
	path := sinceMarker(tc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		glog.Warningf("connectord: task %q: recording last-success time: %v", tc.Name, err)
		return
	}
	if err := os.WriteFile(path, []byte(at.UTC().Format(time.RFC3339)), 0o644); err != nil {
		glog.Warningf("connectord: task %q: recording last-success time: %v", tc.Name, err)
	}
}

func openIndex(tc taskConfig) (publish.Index, error) {
	if !tc.UploadEnabled {
		return noopIndex{}, nil
	}
	if tc.RequestURI != "" {
		return httpindex.New(tc.RequestURI, tc.AuthTokenFile), nil
	}
	return buntindex.Open(tc.IndexPath)
}

// noopIndex backs a task that has publish.upload_enabled = false (spec
// §6 ".publish.upload_enabled"): documents still flow through Extract
// and Transform, but nothing is sent downstream and the incremental
// gate always treats every document as new.
type noopIndex struct{}

func (noopIndex) Exists(context.Context, string) (bool, error)     { return false, nil }
func (noopIndex) Upsert(context.Context, *docmodel.Document) error { return nil }
func (noopIndex) Delete(context.Context, string) error             { return nil }
