// Package extract implements the extractor driver shared by every crawl
// source: the incremental gate, document population, MIME/text detection,
// hashing, persistence, CSV row expansion, and terminal sentinel emission
// (spec §4.3 steps 2-6). Package extract/fswalk, extract/s3,
// extract/azureblob, extract/gcs, extract/hdfs and extract/sftp each
// supply a Source; the driver here is written once against the
// interface.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package extract

import (
	"context"
	"io"
	"time"
)

// Entry is one walkable item a Source yields: a filesystem file, an S3
// object, an Azure blob, and so on.
type Entry struct {
	LogicalKey string // path, object key, or blob name: the hash input for nsd_id
	Name       string // display name, typically the last path segment
	Size       int64
	ModTime    time.Time
	Open       func() (io.ReadCloser, error)
}

// Source abstracts the origin a crawl extracts documents from. Walk
// visits every entry in some source-defined order, calling visit once
// per entry; it returns ctx.Err() (or wraps it) when asked to stop early.
type Source interface {
	Walk(ctx context.Context, visit func(Entry) error) error
}

// IndexChecker is the subset of publish.Index the incremental gate
// consults (spec §4.3 step 3).
type IndexChecker interface {
	Exists(ctx context.Context, docID string) (bool, error)
}
