// Task configuration: one named crawl job read out of the dotted-key
// property bag under "tasks.<name>.*", mirroring spec.md §6's
// ".extract.*"/".transform.*"/".publish.*"/".queue.*" keys but scoped
// per task so one config file can name several independent crawls
// ("--run all" runs every name in "tasks.names" in turn).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"time"

	"github.com/nsdconnect/crawler/cmn"
	"github.com/nsdconnect/crawler/propsrc"
	"github.com/nsdconnect/crawler/queue"
	"github.com/nsdconnect/crawler/transform"
)

// taskConfig is one task's fully-resolved configuration.
type taskConfig struct {
	Name string

	// ValidationMode is set by main from --test rather than read out of
	// the bag: it is a CLI-selected run mode, not a per-task property.
	ValidationMode bool

	SourceDir     string
	DocType       string
	IDValuePrefix string
	URLScheme     string
	FollowFile    string
	IgnoreFile    string
	CSVRowToDoc   bool

	QueueDir    string
	PollTimeout time.Duration
	CrawlType   queue.CrawlType

	PipeLine     []string
	TransformCfg map[string]string // name -> ".transform.<name>_file" path

	UploadEnabled bool
	RequestURI    string
	AuthTokenFile string
	IndexPath     string // publish/buntindex path, used when RequestURI is empty
}

// loadTask reads one task's config out of bag under "tasks.<name>.".
func loadTask(bag *propsrc.Bag, name string) (taskConfig, error) {
	prefix := "tasks." + name + "."
	tc := taskConfig{
		Name:          name,
		SourceDir:     bag.String(prefix + "source_dir"),
		DocType:       bag.StringOr(prefix+"doc_type", "generic"),
		IDValuePrefix: bag.String(prefix + "id_value_prefix"),
		URLScheme:     bag.StringOr(prefix+"url_scheme", "file://"),
		FollowFile:    bag.String(prefix + "follow_file"),
		IgnoreFile:    bag.String(prefix + "ignore_file"),
		CSVRowToDoc:   bag.Bool(prefix + "csv_row_to_document"),

		QueueDir:    bag.StringOr(prefix+"queue_dir", "./"+name+"-queue"),
		PollTimeout: pollTimeout(bag, prefix),
		CrawlType:   queue.CrawlType(bag.StringOr(prefix+"crawl_type", string(queue.Full))),

		PipeLine:     bag.Strings(prefix + "transform.pipe_line"),
		TransformCfg: map[string]string{},

		UploadEnabled: bag.Bool(prefix + "publish.upload_enabled"),
		RequestURI:    bag.String(prefix + "publish.request_uri"),
		AuthTokenFile: bag.String(prefix + "publish.auth_token_file"),
		IndexPath:     bag.StringOr(prefix+"publish.index_path", "./"+name+"-index.db"),
	}
	if tc.SourceDir == "" {
		return tc, cmn.ErrConfigInvalid("task %q: tasks.%s.source_dir is required", name, name)
	}
	for _, step := range tc.PipeLine {
		key := prefix + "transform." + step + "_file"
		if v := bag.String(key); v != "" {
			tc.TransformCfg[step] = v
		}
	}
	return tc, nil
}

// pollTimeout reads ".queue.poll_timeout" (spec §6, seconds), task-scoped
// first and falling back to a shared top-level value; 0 means "let each
// phase worker use its own default" (spec §5 "Timeouts").
func pollTimeout(bag *propsrc.Bag, prefix string) time.Duration {
	if secs := bag.Int(prefix + "queue.poll_timeout"); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if secs := bag.Int("queue.poll_timeout"); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// buildPipeline resolves a task's transform.pipe_line into a
// transform.Pipeline, collapsing unknown names to bag-copy (spec §4.4).
func buildPipeline(tc taskConfig) (*transform.Pipeline, error) {
	steps := make([]transform.Step, 0, len(tc.PipeLine))
	for _, name := range tc.PipeLine {
		steps = append(steps, transform.Step{Name: name, ConfigPath: tc.TransformCfg[name]})
	}
	bagCopyFactory, ok := transform.Lookup("bag_copy")
	if !ok {
		return nil, fmt.Errorf("connectord: bag_copy transformer not registered")
	}
	return transform.Build(steps, bagCopyFactory)
}
