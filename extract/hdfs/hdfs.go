// Package hdfs implements extract.Source against an HDFS namenode using
// github.com/colinmarc/hdfs/v2 (SPEC_FULL.md §4.3's object-storage source
// expansion — the teacher's own distributed-filesystem dependency).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package hdfs

import (
	"context"
	"io"
	"os"

	"github.com/colinmarc/hdfs/v2"
	"github.com/golang/glog"

	"github.com/nsdconnect/crawler/extract"
)

// Source walks Root on an HDFS cluster, depth-first.
type Source struct {
	Root   string
	Client *hdfs.Client
}

var _ extract.Source = (*Source)(nil)

// New builds a Source against the namenode addresses in addrs.
func New(addrs []string, root string) (*Source, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{Addresses: addrs})
	if err != nil {
		return nil, err
	}
	return &Source{Root: root, Client: client}, nil
}

func (s *Source) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	var walkErr error
	s.Client.Walk(s.Root, func(path string, fi os.FileInfo, err error) error {
		if ctx.Err() != nil {
			walkErr = ctx.Err()
			return ctx.Err()
		}
		if err != nil {
			glog.Warningf("hdfs: skipping unreadable %s: %v", path, err)
			return nil // unreadable: log and continue (spec §4.3 step 2)
		}
		if fi.IsDir() {
			return nil
		}
		entry := extract.Entry{
			LogicalKey: path,
			Name:       fi.Name(),
			Size:       fi.Size(),
			ModTime:    fi.ModTime(),
			Open:       s.opener(path),
		}
		if err := visit(entry); err != nil {
			walkErr = err
			return err
		}
		return nil
	})
	return walkErr
}

func (s *Source) opener(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return s.Client.Open(path)
	}
}
