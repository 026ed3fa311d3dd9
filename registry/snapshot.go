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

package registry

import (
	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/resolver"
	"dirpx.dev/defx/symbol"
)

// Layer groups runtime registrations so they can be unloaded together.
// Built-in definitions and plain Register calls live in the nil layer,
// which cannot be unloaded.
type Layer struct {
	ID   uuid.UUID
	Name string
}

// NewLayer returns a layer with a fresh random ID.
func NewLayer(name string) Layer {
	return Layer{ID: uuid.New(), Name: name}
}

// record is one accepted ingest, kept so a layer can be replayed away.
type record[P any] struct {
	input   index.Input[P]
	ordinal uint64
	layer   uuid.UUID
}

// Snapshot is an immutable, versioned view of one domain. Any number of
// goroutines may read it concurrently; it is never modified after
// publication and stays valid while referenced.
type Snapshot[P any] struct {
	domain apis.Domain
	gen    uint64
	ix     *index.Index[P]
	syms   *symbol.Frozen
	chain  resolver.Chain
	log    *immutable.List[record[P]]
	layers []Layer
	// retired holds collisions from before an unload that the rebuilt
	// index no longer reproduces.
	retired *immutable.List[apis.Collision]
}

// Lookup resolves key through the canonical, name and alias stages.
// It performs one interner lookup, at most three map lookups and one
// table access, and does not allocate.
func (s *Snapshot[P]) Lookup(key string) (Handle[P], bool) {
	sym, ok := s.syms.Lookup(key)
	if !ok || sym == symbol.None {
		return Handle[P]{}, false
	}
	return s.LookupSymbol(sym)
}

// LookupSymbol resolves an already interned key.
func (s *Snapshot[P]) LookupSymbol(sym symbol.Symbol) (Handle[P], bool) {
	id, stage, ok := s.chain.Find(s.ix, uint32(sym))
	if !ok {
		return Handle[P]{}, false
	}
	e, _ := s.ix.Entry(id)
	return Handle[P]{snap: s, entry: e, stage: stage}, true
}

// Entries returns handles for the live entries in ID order.
func (s *Snapshot[P]) Entries() []Handle[P] {
	return s.handles(s.ix.Entries())
}

// Group returns handles for the live entries of group g, ordered by
// priority ascending, then name.
func (s *Snapshot[P]) Group(g uint32) []Handle[P] {
	return s.handles(s.ix.Group(g))
}

func (s *Snapshot[P]) handles(es []*index.Entry[P]) []Handle[P] {
	if len(es) == 0 {
		return nil
	}
	out := make([]Handle[P], len(es))
	for i, e := range es {
		out[i] = Handle[P]{snap: s, entry: e, stage: apis.StageCanonical}
	}
	return out
}

// Len returns the number of live entries.
func (s *Snapshot[P]) Len() int { return s.ix.Len() }

// Collisions returns the collision log of this snapshot. Collisions of
// unloaded layers come first, then the log of the current index.
func (s *Snapshot[P]) Collisions() []apis.Collision {
	cur := s.ix.Collisions()
	if s.retired == nil || s.retired.Len() == 0 {
		return cur
	}
	out := make([]apis.Collision, 0, s.retired.Len()+len(cur))
	itr := s.retired.Iterator()
	for !itr.Done() {
		_, c := itr.Next()
		out = append(out, c)
	}
	return append(out, cur...)
}

// Domain returns the domain of the snapshot.
func (s *Snapshot[P]) Domain() apis.Domain { return s.domain }

// Generation returns the snapshot's generation number. The initial
// snapshot is generation 1; each publication increments it.
func (s *Snapshot[P]) Generation() uint64 { return s.gen }

// Symbols returns the symbol table of the snapshot.
func (s *Snapshot[P]) Symbols() *symbol.Frozen { return s.syms }

// Index returns the underlying index.
func (s *Snapshot[P]) Index() *index.Index[P] { return s.ix }

// String resolves a symbol of this snapshot.
func (s *Snapshot[P]) String(sym symbol.Symbol) string { return s.syms.Resolve(sym) }

// Layers returns the loaded layers, in load order.
func (s *Snapshot[P]) Layers() []Layer {
	return append([]Layer(nil), s.layers...)
}

func (s *Snapshot[P]) layer(id uuid.UUID) (Layer, bool) {
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// derive returns the successor snapshot over ix and syms.
func (s *Snapshot[P]) derive(ix *index.Index[P], syms *symbol.Frozen, log *immutable.List[record[P]], layers []Layer) *Snapshot[P] {
	return &Snapshot[P]{
		domain:  s.domain,
		gen:     s.gen + 1,
		ix:      ix,
		syms:    syms,
		chain:   s.chain,
		log:     log,
		layers:  layers,
		retired: s.retired,
	}
}

// retire returns the successor's retired log: s's retired collisions plus
// those of s's index that next no longer records.
func (s *Snapshot[P]) retire(next *index.Index[P]) *immutable.List[apis.Collision] {
	out := s.retired
	if out == nil {
		out = immutable.NewList[apis.Collision]()
	}
	kept := make(map[apis.Collision]int)
	for _, c := range next.Collisions() {
		kept[c]++
	}
	for _, c := range s.ix.Collisions() {
		if kept[c] > 0 {
			kept[c]--
			continue
		}
		out = out.Append(c)
	}
	return out
}

// Handle is a resolved reference to one entry. It pins the snapshot it
// was resolved against, so it stays valid and unchanged however the
// registry moves on. The zero Handle is invalid.
type Handle[P any] struct {
	snap  *Snapshot[P]
	entry *index.Entry[P]
	stage apis.Stage
}

// Valid reports whether the handle refers to an entry.
func (h Handle[P]) Valid() bool { return h.entry != nil }

// Snapshot returns the pinned snapshot.
func (h Handle[P]) Snapshot() *Snapshot[P] { return h.snap }

// Entry returns the underlying entry.
func (h Handle[P]) Entry() *index.Entry[P] { return h.entry }

// ID returns the entry's table row in the pinned snapshot.
func (h Handle[P]) ID() apis.ID { return h.entry.ID }

// Stage returns the stage the key matched at.
func (h Handle[P]) Stage() apis.Stage { return h.stage }

// Canonical returns the canonical ID.
func (h Handle[P]) Canonical() string { return h.snap.syms.Resolve(h.entry.Canonical) }

// Name returns the primary name.
func (h Handle[P]) Name() string { return h.snap.syms.Resolve(h.entry.Name) }

// Description returns the long description.
func (h Handle[P]) Description() string { return h.snap.syms.Resolve(h.entry.Description) }

// Short returns the one-line description.
func (h Handle[P]) Short() string { return h.snap.syms.Resolve(h.entry.Short) }

// Keys returns the secondary keys.
func (h Handle[P]) Keys() []string {
	out := make([]string, len(h.entry.Keys))
	for i, k := range h.entry.Keys {
		out[i] = h.snap.syms.Resolve(k)
	}
	return out
}

// Party returns the entry's precedence metadata.
func (h Handle[P]) Party() apis.Party { return h.entry.Party }

// Payload returns the domain payload.
func (h Handle[P]) Payload() P { return h.entry.Payload }

// Info returns a plain-string description of the entry.
func (h Handle[P]) Info() apis.Info {
	return apis.Info{
		ID:          h.entry.ID,
		Stage:       h.stage,
		Canonical:   h.Canonical(),
		Name:        h.Name(),
		Description: h.Description(),
		Keys:        h.Keys(),
		Party:       h.entry.Party,
	}
}
