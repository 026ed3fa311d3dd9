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

package index

import (
	"github.com/benbjohnson/immutable"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/symbol"
)

// Index is the immutable lookup structure of one domain.
// It is safe for concurrent reads; lookups never allocate.
type Index[P any] struct {
	table      *immutable.List[*Entry[P]]
	canonical  *immutable.Map[symbol.Symbol, apis.ID]
	names      *immutable.Map[symbol.Symbol, slot]
	aliases    *immutable.Map[symbol.Symbol, slot]
	groups     *immutable.Map[uint32, []apis.ID]
	collisions *immutable.List[apis.Collision]
	live       int
	next       uint64
}

var _ apis.Keyspace = (*Index[struct{}])(nil)

// Empty returns an index without entries.
func Empty[P any]() *Index[P] {
	return &Index[P]{
		table:      immutable.NewList[*Entry[P]](),
		canonical:  symbol.NewMap[apis.ID](),
		names:      symbol.NewMap[slot](),
		aliases:    symbol.NewMap[slot](),
		groups:     immutable.NewMap[uint32, []apis.ID](groupHasher{}),
		collisions: immutable.NewList[apis.Collision](),
	}
}

// Bound returns the entry bound to sym at the given stage.
func (ix *Index[P]) Bound(stage apis.Stage, sym uint32) (apis.ID, bool) {
	s := symbol.Symbol(sym)
	switch stage {
	case apis.StageCanonical:
		return ix.canonical.Get(s)
	case apis.StageName:
		if sl, ok := ix.names.Get(s); ok {
			return sl.winner, true
		}
	case apis.StageAlias:
		if sl, ok := ix.aliases.Get(s); ok {
			return sl.winner, true
		}
	}
	return 0, false
}

// Entry returns the table entry with the given ID. Entries that lost a
// canonical conflict are still in the table; see Live.
func (ix *Index[P]) Entry(id apis.ID) (*Entry[P], bool) {
	if int(id) >= ix.table.Len() {
		return nil, false
	}
	return ix.table.Get(int(id)), true
}

// Live reports whether id currently owns its canonical ID.
func (ix *Index[P]) Live(id apis.ID) bool {
	e, ok := ix.Entry(id)
	if !ok {
		return false
	}
	owner, ok := ix.canonical.Get(e.Canonical)
	return ok && owner == id
}

// Entries returns the live entries in ID order.
func (ix *Index[P]) Entries() []*Entry[P] {
	out := make([]*Entry[P], 0, ix.live)
	itr := ix.table.Iterator()
	for !itr.Done() {
		i, e := itr.Next()
		if ix.Live(apis.ID(i)) {
			out = append(out, e)
		}
	}
	return out
}

// Group returns the live entries indexed under group g, ordered by
// priority ascending, then name ascending.
func (ix *Index[P]) Group(g uint32) []*Entry[P] {
	ids, ok := ix.groups.Get(g)
	if !ok {
		return nil
	}
	out := make([]*Entry[P], len(ids))
	for i, id := range ids {
		out[i] = ix.table.Get(int(id))
	}
	return out
}

// Claims returns the IDs of every live claim on sym at a name or alias
// stage, winner first.
func (ix *Index[P]) Claims(stage apis.Stage, sym symbol.Symbol) []apis.ID {
	var (
		sl slot
		ok bool
	)
	switch stage {
	case apis.StageName:
		sl, ok = ix.names.Get(sym)
	case apis.StageAlias:
		sl, ok = ix.aliases.Get(sym)
	}
	if !ok {
		return nil
	}
	out := make([]apis.ID, 0, len(sl.claims))
	out = append(out, sl.winner)
	for _, c := range sl.claims {
		if c.id != sl.winner {
			out = append(out, c.id)
		}
	}
	return out
}

// Collisions returns the collision log in event order.
func (ix *Index[P]) Collisions() []apis.Collision {
	out := make([]apis.Collision, 0, ix.collisions.Len())
	itr := ix.collisions.Iterator()
	for !itr.Done() {
		_, c := itr.Next()
		out = append(out, c)
	}
	return out
}

// Len returns the number of live entries.
func (ix *Index[P]) Len() int { return ix.live }

// TableLen returns the number of table rows, including entries that lost
// a canonical conflict.
func (ix *Index[P]) TableLen() int { return ix.table.Len() }

// NextOrdinal returns the ordinal the next ingested input receives.
func (ix *Index[P]) NextOrdinal() uint64 { return ix.next }

type groupHasher struct{}

func (groupHasher) Hash(g uint32) uint32 { return symbol.Hasher{}.Hash(symbol.Symbol(g)) }

func (groupHasher) Equal(a, b uint32) bool { return a == b }
