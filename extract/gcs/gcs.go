// Package gcs implements extract.Source against a Google Cloud Storage
// bucket using cloud.google.com/go/storage (SPEC_FULL.md §4.3's
// object-storage source expansion).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/nsdconnect/crawler/extract"
)

// Source walks every object under Prefix in Bucket.
type Source struct {
	Bucket *storage.BucketHandle
	Prefix string
}

var _ extract.Source = (*Source)(nil)

// New builds a Source from an already-authenticated storage.Client.
func New(client *storage.Client, bucket, prefix string) *Source {
	return &Source{Bucket: client.Bucket(bucket), Prefix: prefix}
}

func (s *Source) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	it := s.Bucket.Objects(ctx, &storage.Query{Prefix: s.Prefix})
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		name := attrs.Name
		entry := extract.Entry{
			LogicalKey: name,
			Name:       name,
			Size:       attrs.Size,
			ModTime:    attrs.Updated,
			Open:       s.opener(name),
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
}

func (s *Source) opener(name string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return s.Bucket.Object(name).NewReader(context.Background())
	}
}
