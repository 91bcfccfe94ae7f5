// Package azureblob implements extract.Source against an Azure Blob
// Storage container using github.com/Azure/azure-storage-blob-go
// (SPEC_FULL.md §4.3's object-storage source expansion).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package azureblob

import (
	"context"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/nsdconnect/crawler/extract"
)

// Source walks every blob under Prefix in a single container.
type Source struct {
	ContainerURL azblob.ContainerURL
	Prefix       string
}

var _ extract.Source = (*Source)(nil)

// New builds a Source from an account name, a SharedKeyCredential, and a
// container name.
func New(accountName, accountKey, containerName, prefix string) (*Source, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	u, err := url.Parse("https://" + accountName + ".blob.core.windows.net/" + containerName)
	if err != nil {
		return nil, err
	}
	return &Source{ContainerURL: azblob.NewContainerURL(*u, pipeline), Prefix: prefix}, nil
}

func (s *Source) Walk(ctx context.Context, visit func(extract.Entry) error) error {
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := s.ContainerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: s.Prefix,
		})
		if err != nil {
			return err
		}
		for _, item := range resp.Segment.BlobItems {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			name := item.Name
			entry := extract.Entry{
				LogicalKey: name,
				Name:       name,
				Size:       *item.Properties.ContentLength,
				ModTime:    item.Properties.LastModified,
				Open:       s.opener(name),
			}
			if err := visit(entry); err != nil {
				return err
			}
		}
		marker = resp.NextMarker
	}
	return nil
}

func (s *Source) opener(name string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		blobURL := s.ContainerURL.NewBlobURL(name)
		resp, err := blobURL.Download(context.Background(), 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			return nil, err
		}
		return resp.Body(azblob.RetryReaderOptions{}), nil
	}
}
