// Package sftp implements extract.Source against a remote SFTP root
// using github.com/pkg/sftp over golang.org/x/crypto/ssh (SPEC_FULL.md
// §4.3's object-storage source expansion).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package sftp

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/nsdconnect/crawler/extract"
)

// Source walks Root on a remote host over an established SSH connection.
type Source struct {
	Root   string
	Client *sftp.Client
}

var _ extract.Source = (*Source)(nil)

// New dials addr over SSH and opens an SFTP session rooted at root.
func New(addr string, cfg *ssh.ClientConfig, root string) (*Source, error) {
	conn, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Source{Root: root, Client: client}, nil
}

func (s *Source) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	walker := s.Client.Walk(s.Root)
	for walker.Step() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := walker.Err(); err != nil {
			glog.Warningf("sftp: skipping unreadable %s: %v", walker.Path(), err)
			continue // unreadable: log and continue (spec §4.3 step 2)
		}
		fi := walker.Stat()
		if fi.IsDir() {
			continue
		}
		path := walker.Path()
		entry := extract.Entry{
			LogicalKey: path,
			Name:       fi.Name(),
			Size:       fi.Size(),
			ModTime:    fi.ModTime(),
			Open:       s.opener(path),
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) opener(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := s.Client.Open(path)
		if err != nil {
			return nil, err
		}
		return asReadCloser(f), nil
	}
}

// asReadCloser adapts *sftp.File (which already implements io.ReadCloser)
// through an explicit conversion point, keeping the opener's return type
// stable if the client ever wraps the handle.
func asReadCloser(f *sftp.File) io.ReadCloser {
	return f
}
