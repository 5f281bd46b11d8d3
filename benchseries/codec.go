// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the document layout written by MarshalSnapshot.
//
// The layout only ever gains fields. UnmarshalSnapshot reads every
// version up to SchemaVersion and refuses newer documents rather than
// dropping fields it does not know about on the next save.
const SchemaVersion = 1

// MarshalSnapshot encodes s as a JSON document.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	doc := *s
	doc.Schema = SchemaVersion
	if doc.Series == nil {
		doc.Series = map[string]*Series{}
	}
	return json.Marshal(&doc)
}

// UnmarshalSnapshot decodes a document written by MarshalSnapshot.
// The returned Snapshot has Version 0; backends set it.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Schema > SchemaVersion {
		return nil, fmt.Errorf("snapshot of group %q has schema %d, newer than supported %d", s.Group, s.Schema, SchemaVersion)
	}
	// Documents written before the schema field existed are version 0.
	// They have the same layout.
	s.Schema = SchemaVersion
	if s.Series == nil {
		s.Series = make(map[string]*Series)
	}
	for name, ser := range s.Series {
		if ser == nil {
			delete(s.Series, name)
			continue
		}
		if ser.Name == "" {
			ser.Name = name
		}
	}
	return &s, nil
}
