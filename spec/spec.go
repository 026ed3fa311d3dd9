/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package spec decodes the compiled definition blobs produced offline into
// data-only specification records.
//
// A blob is a fixed 12-byte header followed by a length-prefixed
// flatbuffers payload:
//
//	offset  size  field
//	0       4     magic "DFXB"
//	4       2     format version (little endian)
//	6       1     domain tag (apis.Domain)
//	7       1     flags (reserved, must be zero)
//	8       4     payload length (little endian)
//	12      n     payload (specfb.Blob)
//
// The header is validated before the payload is touched. Any mismatch or
// malformed payload yields a *DecodeError and no records.
package spec

import (
	"dirpx.dev/defx/apis"
)

// Meta is the metadata every definition carries regardless of domain.
type Meta struct {
	// ID is the canonical identifier.
	ID string
	// Name is the primary, human-facing name. Empty means "same as ID".
	Name string
	// Description is the long description.
	Description string
	// Short is the one-line description.
	Short string
	// Keys are secondary lookup keys (aliases, config keys).
	Keys []string
	// Priority orders conflicting definitions; larger wins.
	Priority int32
	// Source is the declared origin of the definition.
	Source apis.SourceRank
}

// DisplayName returns Name, or ID when Name is empty.
func (m Meta) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Strings returns every string of the metadata, for declaration.
func (m Meta) Strings() []string {
	out := make([]string, 0, 4+len(m.Keys))
	out = append(out, m.ID, m.DisplayName(), m.Description, m.Short)
	return append(out, m.Keys...)
}

// Spec is one decoded definition: common metadata plus domain payload
// fields kept as strings. A Spec is immutable once decoded.
type Spec struct {
	Meta
	// Fields holds the domain payload, keyed by field name.
	Fields map[string]string
}

// Field returns the payload field named key and whether it was present.
func (s Spec) Field(key string) (string, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// FieldOr returns the payload field named key, or def when absent.
func (s Spec) FieldOr(key, def string) string {
	if v, ok := s.Fields[key]; ok {
		return v
	}
	return def
}
