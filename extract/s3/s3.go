// Package s3 implements extract.Source against an S3-compatible bucket
// using the teacher's own AWS SDK dependency (spec §1 scope: "web
// resources" generalized to object-storage crawl sources, SPEC_FULL.md
// §4.3).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package s3

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/nsdconnect/crawler/extract"
)

// Source walks every object under Prefix in Bucket.
type Source struct {
	Bucket string
	Prefix string
	Client *s3.S3
}

var _ extract.Source = (*Source)(nil)

// New builds a Source from a shared AWS session (region/credentials
// resolved the usual SDK way: env, shared config, IAM role).
func New(bucket, prefix string, sess *session.Session) *Source {
	return &Source{Bucket: bucket, Prefix: prefix, Client: s3.New(sess)}
}

func (s *Source) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix),
	}
	var walkErr error
	err := s.Client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if ctx.Err() != nil {
				walkErr = ctx.Err()
				return false
			}
			key := aws.StringValue(obj.Key)
			entry := extract.Entry{
				LogicalKey: key,
				Name:       key,
				Size:       aws.Int64Value(obj.Size),
				ModTime:    aws.TimeValue(obj.LastModified),
				Open:       s.opener(key),
			}
			if err := visit(entry); err != nil {
				walkErr = err
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return walkErr
}

func (s *Source) opener(key string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		out, err := s.Client.GetObject(&s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}
}
