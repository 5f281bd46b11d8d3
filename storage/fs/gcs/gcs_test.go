// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

func TestConditions(t *testing.T) {
	if got, want := conditions(0), (storage.Conditions{DoesNotExist: true}); got != want {
		t.Errorf("conditions(0) = %+v, want %+v", got, want)
	}
	if got, want := conditions(42), (storage.Conditions{GenerationMatch: 42}); got != want {
		t.Errorf("conditions(42) = %+v, want %+v", got, want)
	}
}

func TestIsPrecondition(t *testing.T) {
	for _, test := range []struct {
		err  error
		want bool
	}{
		{&googleapi.Error{Code: http.StatusPreconditionFailed}, true},
		{fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed}), true},
		{&googleapi.Error{Code: http.StatusNotFound}, false},
		{errors.New("boom"), false},
	} {
		if got := isPrecondition(test.err); got != test.want {
			t.Errorf("isPrecondition(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}
