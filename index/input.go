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

// Package index builds the immutable per-domain index: a dense entry table,
// a canonical-ID map, name and alias key maps, event groups, and an
// append-only collision log.
//
// Building is two-phase per input (see package buildctx): every input
// declares its strings, all declared strings are interned in one batch,
// then each entry is constructed and assigned the next dense ID in ingest
// order. Conflicts are then resolved one input at a time:
//
//   - Canonical IDs follow the configured apis.DuplicatePolicy. Under
//     ByPriority the higher priority wins, then the higher source rank,
//     then the later ingest ordinal. Losers stay in the table but are
//     bound nowhere.
//   - Names and aliases are resolved by priority, then source rank, then
//     the lexicographically smaller canonical ID. This rule does not
//     depend on ingest order.
//   - Canonical bindings live in their own map, consulted first at lookup
//     time, so no name or alias can ever displace a canonical ID.
//
// An Index is never mutated. Extend derives a new Index from an existing
// one; all maps are persistent, so an append touches only the new entry's
// keys and a replacement only the union of the old and new key sets.
package index

import (
	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/spec"
	"dirpx.dev/defx/symbol"
)

// Input is one definition source fed to the builder.
type Input[P any] interface {
	// Party returns the input's priority and source rank. The ordinal is
	// ignored; the builder assigns it.
	Party() apis.Party
	// Declare pushes every string Build will ask for.
	Declare(c *buildctx.Collector)
	// Build constructs the entry through x. ID and Party are filled in by
	// the builder.
	Build(x *buildctx.Context) (Entry[P], error)
}

// Entry is the symbolized, fully resolved form of a definition.
// Entries are immutable once built and shared by pointer between
// snapshots.
type Entry[P any] struct {
	ID          apis.ID
	Canonical   symbol.Symbol
	Name        symbol.Symbol
	Description symbol.Symbol
	Short       symbol.Symbol
	// Keys are the secondary lookup keys, deduplicated, without the
	// canonical ID or the name.
	Keys  []symbol.Symbol
	Party apis.Party
	// Group is the event the entry is indexed under; zero means none.
	Group   uint32
	Payload P
}

// Def is an Input described by spec metadata. It serves both built-in
// definitions and definitions linked from decoded specs.
type Def[P any] struct {
	Meta spec.Meta
	// Strings are extra payload strings the payload constructor interns.
	Strings []string
	// Group is copied to Entry.Group.
	Group uint32
	// Payload constructs the payload. A nil Payload leaves it zero.
	Payload func(x *buildctx.Context) (P, error)
}

// Party returns the metadata's priority and source rank.
func (d Def[P]) Party() apis.Party {
	return apis.Party{Priority: d.Meta.Priority, Source: d.Meta.Source}
}

// Declare pushes the metadata strings and the payload strings.
func (d Def[P]) Declare(c *buildctx.Collector) {
	c.Push(d.Meta.Strings()...)
	c.Push(d.Strings...)
}

// Build constructs the entry from the metadata and the payload constructor.
func (d Def[P]) Build(x *buildctx.Context) (Entry[P], error) {
	e := Entry[P]{
		Canonical:   x.Sym(d.Meta.ID),
		Name:        x.Sym(d.Meta.DisplayName()),
		Description: x.Sym(d.Meta.Description),
		Short:       x.Sym(d.Meta.Short),
		Keys:        x.Syms(d.Meta.Keys),
		Group:       d.Group,
	}
	if d.Payload != nil {
		p, err := d.Payload(x)
		if err != nil {
			return e, err
		}
		e.Payload = p
	}
	return e, nil
}
