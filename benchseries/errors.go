// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"errors"
	"fmt"
)

// Backends return these sentinel errors, possibly wrapped.
var (
	// ErrNotExist is returned by Backend.Load for a group key that
	// has never been saved.
	ErrNotExist = errors.New("snapshot does not exist")

	// ErrConflict is returned by Backend.Save when the stored
	// version no longer matches the expected version.
	ErrConflict = errors.New("snapshot version conflict")
)

// A NotFoundError reports a query for an unknown group, series or
// commit. Callers usually treat it as empty history.
type NotFoundError struct {
	GroupKey string
	Name     string // benchmark name, if the series was missing
	SHA      string // commit, if a range bound was unknown
}

func (e *NotFoundError) Error() string {
	switch {
	case e.SHA != "":
		return fmt.Sprintf("group %q: commit %s not found", e.GroupKey, e.SHA)
	case e.Name != "":
		return fmt.Sprintf("group %q: series %q not found", e.GroupKey, e.Name)
	}
	return fmt.Sprintf("group %q not found", e.GroupKey)
}

// A ConflictError reports that an append lost the race for a group
// key on every attempt.
type ConflictError struct {
	GroupKey string
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("group %q: giving up after %d attempts: %v", e.GroupKey, e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// A StorageError reports a failure of the backing store. The
// operation that returned it did not modify the store.
type StorageError struct {
	Op       string // "load" or "save"
	GroupKey string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s group %q: %v", e.Op, e.GroupKey, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
