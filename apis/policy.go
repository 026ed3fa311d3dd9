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

// DuplicatePolicy controls how two definitions claiming the same canonical
// ID are resolved.
//
// # Values
//
//   - ByPriority: deterministic Party precedence (default).
//   - FirstWins: the earliest ingested claim keeps the ID.
//   - LastWins: the latest ingested claim takes the ID.
//   - PanicOnDuplicate: any duplicate aborts the build.
//
// # Contract
//
//   - The policy applies to canonical IDs only. Key collisions (names and
//     aliases) are always resolved by Party precedence and are never fatal.
//   - PanicOnDuplicate is meant for development builds, to surface
//     accidental domain composition early. At build time it makes the build
//     fail without producing an index; at runtime registration it makes the
//     offending registration fail. It never crashes a running editor.
//   - Adding values is allowed; existing values MUST NOT change meaning.
type DuplicatePolicy int

const (
	// ByPriority resolves duplicates by Party precedence: higher priority,
	// then higher source rank, then later ingest ordinal.
	ByPriority DuplicatePolicy = iota

	// FirstWins keeps the claim that was ingested first.
	FirstWins

	// LastWins keeps the claim that was ingested last.
	LastWins

	// PanicOnDuplicate rejects every duplicate canonical ID.
	PanicOnDuplicate
)

// String returns a human-readable representation of the policy.
//
// Known values map to "priority", "first-wins", "last-wins" and "panic".
// Unknown values are rendered as "Unknown(<n>)" and never panic, so
// corrupted values can still be logged.
func (p DuplicatePolicy) String() string {
	switch p {
	case ByPriority:
		return "priority"
	case FirstWins:
		return "first-wins"
	case LastWins:
		return "last-wins"
	case PanicOnDuplicate:
		return "panic"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParsePolicy parses a textual representation of a DuplicatePolicy.
//
// It accepts the tokens produced by String, case-insensitively and with
// surrounding whitespace trimmed. On failure it returns ByPriority and a
// non-nil error; callers MUST NOT rely on the returned value in that case.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ByPriority, fmt.Errorf("defx: empty duplicate policy")
	}

	switch strings.ToLower(trimmed) {
	case "priority":
		return ByPriority, nil
	case "first-wins":
		return FirstWins, nil
	case "last-wins":
		return LastWins, nil
	case "panic":
		return PanicOnDuplicate, nil
	default:
		return ByPriority, fmt.Errorf("defx: unknown duplicate policy %q", s)
	}
}

// MustParsePolicy is like ParsePolicy but panics on invalid input.
// Use it only for hard-coded values.
func MustParsePolicy(s string) DuplicatePolicy {
	p, err := ParsePolicy(s)
	if err != nil {
		panic(err)
	}
	return p
}

// MarshalText implements encoding.TextMarshaler.
//
// Unknown values return an error instead of an "Unknown(...)" token, so
// invalid states are never written to configuration files.
func (p DuplicatePolicy) MarshalText() ([]byte, error) {
	switch p {
	case ByPriority, FirstWins, LastWins, PanicOnDuplicate:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("defx: cannot marshal unknown duplicate policy %d", p)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
// On failure *p is not modified.
func (p *DuplicatePolicy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
