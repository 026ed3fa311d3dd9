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

// Domain tags one family of definitions. Each domain has its own registry,
// its own blob, and its own payload type.
//
// The numeric value is written into blob headers, so existing values MUST
// NOT be renumbered.
type Domain uint8

const (
	// DomainUnknown is the zero value and never tags a valid blob.
	DomainUnknown Domain = iota
	// DomainActions holds editor actions (compiled-in handlers).
	DomainActions
	// DomainCommands holds ex-style commands (compiled-in handlers).
	DomainCommands
	// DomainOptions holds configuration options (spec-only).
	DomainOptions
	// DomainHooks holds event hooks (compiled-in handlers, event-indexed).
	DomainHooks
	// DomainLanguages holds language definitions (spec-only).
	DomainLanguages
)

// Domains lists every valid domain in initialization order.
var Domains = []Domain{DomainOptions, DomainLanguages, DomainActions, DomainCommands, DomainHooks}

// String returns the stable, lower-case domain name.
func (d Domain) String() string {
	switch d {
	case DomainActions:
		return "actions"
	case DomainCommands:
		return "commands"
	case DomainOptions:
		return "options"
	case DomainHooks:
		return "hooks"
	case DomainLanguages:
		return "languages"
	case DomainUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// Valid reports whether d tags a real domain.
func (d Domain) Valid() bool { return d >= DomainActions && d <= DomainLanguages }

// ParseDomain parses a domain name (case-insensitive, whitespace trimmed).
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "actions":
		return DomainActions, nil
	case "commands":
		return DomainCommands, nil
	case "options":
		return DomainOptions, nil
	case "hooks":
		return DomainHooks, nil
	case "languages":
		return DomainLanguages, nil
	default:
		return DomainUnknown, fmt.Errorf("defx: unknown domain %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Domain) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("defx: cannot marshal unknown domain %d", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Domain) UnmarshalText(text []byte) error {
	v, err := ParseDomain(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
