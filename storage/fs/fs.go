// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs provides a versioned blob filesystem interface for the
// storage app, and a benchseries.Backend on top of it.
package fs

import (
	"context"
	"errors"
)

var (
	// ErrNotExist is returned by ReadFile for a missing file.
	ErrNotExist = errors.New("file does not exist")

	// ErrPrecondition is returned by WriteFile when the file's
	// current generation is not the expected one.
	ErrPrecondition = errors.New("generation precondition failed")
)

// An FS stores named files, each with a generation number that
// changes on every write. Implementations must be safe for
// concurrent use.
type FS interface {
	// ReadFile returns the contents and generation of name.
	ReadFile(ctx context.Context, name string) (data []byte, gen int64, err error)

	// WriteFile replaces name with data if its generation is
	// still gen, where 0 means the file must not exist, and
	// returns the new generation. The write is atomic: readers
	// see the old or the new contents, never a mix.
	WriteFile(ctx context.Context, name string, data []byte, gen int64) (int64, error)

	// List returns the sorted names of all files beginning with
	// prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
