// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcs implements the fs.FS interface using Google Cloud Storage.
// Object generations provide the compare-and-swap that fs.FS requires.
package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"cloud.google.com/go/storage"
	"golang.org/x/benchtrack/storage/fs"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// impl is an fs.FS backed by Google Cloud Storage.
type impl struct {
	bucket *storage.BucketHandle
}

// NewFS constructs an FS that writes to the provided bucket.
// On AppEngine, ctx must be a request-derived Context.
func NewFS(ctx context.Context, bucketName string, opts ...option.ClientOption) (fs.FS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &impl{client.Bucket(bucketName)}, nil
}

func (g *impl) ReadFile(ctx context.Context, name string) ([]byte, int64, error) {
	r, err := g.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, fs.ErrNotExist
	}
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return data, r.Attrs.Generation, nil
}

func (g *impl) WriteFile(ctx context.Context, name string, data []byte, gen int64) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := g.bucket.Object(name).If(conditions(gen)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		// Cancelling the context aborts the upload.
		cancel()
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		if isPrecondition(err) {
			return 0, fs.ErrPrecondition
		}
		return 0, err
	}
	return w.Attrs().Generation, nil
}

// conditions returns the write preconditions for an object expected
// to be at generation gen.
func conditions(gen int64) storage.Conditions {
	if gen == 0 {
		return storage.Conditions{DoesNotExist: true}
	}
	return storage.Conditions{GenerationMatch: gen}
}

func isPrecondition(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func (g *impl) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	sort.Strings(names)
	return names, nil
}

