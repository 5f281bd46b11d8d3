// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

var noPuncDate = regexp.MustCompile("^[0-9]{8}T[0-9]{6}$")

// gitDate is the format of "git log --format=%ci".
const gitDate = "2006-01-02 15:04:05 -0700"

// ParseTime parses a commit timestamp and returns it in UTC.
//
// It accepts RFC 3339 (with or without fractional seconds), the
// compact form 20211229T213212 (taken to be UTC), and the ISO-like
// form git prints for %ci.
func ParseTime(in string) (time.Time, error) {
	if noPuncDate.MatchString(in) {
		in = in[0:4] + "-" + in[4:6] + "-" + in[6:11] + ":" + in[11:13] + ":" + in[13:15] + "+00:00"
	}
	t, err := time.Parse(time.RFC3339Nano, in)
	if err != nil {
		var err2 error
		if t, err2 = time.Parse(gitDate, in); err2 != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// UnmarshalJSON accepts either an object or a bare name string.
func (p *Person) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Name)
	}
	type person Person
	return json.Unmarshal(data, (*person)(p))
}

// timestampError is returned by Commit.UnmarshalJSON for an
// unparseable timestamp. DecodeRun turns it into a Violation.
type timestampError struct {
	value string
	err   error
}

func (e *timestampError) Error() string {
	return fmt.Sprintf("cannot parse timestamp %q: %v", e.value, e.err)
}

// UnmarshalJSON decodes a commit. The identity may be given as "sha"
// or, as some harnesses emit it, "id".
func (c *Commit) UnmarshalJSON(data []byte) error {
	var raw struct {
		SHA       string `json:"sha"`
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Author    Person `json:"author"`
		Committer Person `json:"committer"`
		Message   string `json:"message"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Commit{
		SHA:       raw.SHA,
		Author:    raw.Author,
		Committer: raw.Committer,
		Message:   raw.Message,
		URL:       raw.URL,
	}
	if c.SHA == "" {
		c.SHA = raw.ID
	}
	if raw.Timestamp != "" {
		t, err := ParseTime(raw.Timestamp)
		if err != nil {
			return &timestampError{raw.Timestamp, err}
		}
		c.Timestamp = t
	}
	return nil
}

// DecodeRun reads one JSON Run payload from r.
//
// Malformed JSON and unparseable timestamps are reported as a
// *ValidationError. DecodeRun does not validate the decoded Run; call
// Run.Validate for that.
func DecodeRun(r io.Reader) (*Run, error) {
	var run Run
	if err := json.NewDecoder(r).Decode(&run); err != nil {
		e := new(ValidationError)
		var te *timestampError
		var ue *json.UnmarshalTypeError
		switch {
		case errors.As(err, &te):
			e.Add("commit.timestamp", "%v", te)
		case errors.As(err, &ue):
			field := ue.Field
			if field == "" {
				field = "payload"
			}
			e.Add(field, "expected %v, got JSON %s", ue.Type, ue.Value)
		default:
			e.Add("payload", "malformed JSON: %v", err)
		}
		return nil, e
	}
	return &run, nil
}

// EncodeRun writes run to w as indented JSON.
func EncodeRun(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(run)
}
