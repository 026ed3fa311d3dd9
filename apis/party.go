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

package apis

import (
	"fmt"
	"strings"
)

// SourceRank orders the origins a definition can come from.
// A higher rank wins a conflict when priorities are equal:
// Runtime > Module > Builtin.
type SourceRank uint8

const (
	// SourceBuiltin marks definitions compiled into the editor core.
	SourceBuiltin SourceRank = iota
	// SourceModule marks definitions shipped by compiled-in extension modules.
	SourceModule
	// SourceRuntime marks definitions registered at runtime (plugins).
	SourceRuntime
)

// String returns a short, stable identifier for the source rank.
// Unknown values are rendered as "Unknown(<n>)" and never panic.
func (r SourceRank) String() string {
	switch r {
	case SourceBuiltin:
		return "builtin"
	case SourceModule:
		return "module"
	case SourceRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// ParseSourceRank parses the textual form produced by SourceRank.String,
// case-insensitively and ignoring surrounding whitespace.
func ParseSourceRank(s string) (SourceRank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "builtin":
		return SourceBuiltin, nil
	case "module":
		return SourceModule, nil
	case "runtime":
		return SourceRuntime, nil
	case "":
		return SourceBuiltin, fmt.Errorf("defx: empty source rank")
	default:
		return SourceBuiltin, fmt.Errorf("defx: unknown source rank %q", s)
	}
}

// Valid reports whether r is one of the defined ranks.
func (r SourceRank) Valid() bool { return r <= SourceRuntime }

// MarshalText implements encoding.TextMarshaler.
func (r SourceRank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("defx: cannot marshal unknown source rank %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// On failure *r is left unchanged.
func (r *SourceRank) UnmarshalText(text []byte) error {
	v, err := ParseSourceRank(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Party is the comparable metadata used to resolve conflicts between two
// claims on the same canonical ID or key.
//
// Larger Priority values win. Ties fall through to Source and then to a
// stage-specific final tie-break (ingest ordinal for canonical IDs,
// canonical ID order for keys). The same rule is used at build time and
// at runtime registration.
type Party struct {
	// Priority is the declared priority; larger is stronger.
	Priority int32
	// Source is where the definition came from.
	Source SourceRank
	// Ordinal is the ingest position assigned by the index builder.
	// It increases monotonically across the lifetime of a registry.
	Ordinal uint64
}

// String renders the party as "<source>(p=<priority>,#<ordinal>)".
func (p Party) String() string {
	return fmt.Sprintf("%s(p=%d,#%d)", p.Source, p.Priority, p.Ordinal)
}
