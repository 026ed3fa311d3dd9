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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	golog "github.com/ipfs/go-log/v2"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/symbol"
)

var log = golog.Logger("defx/index")

var (
	// ErrDuplicate is wrapped by *DuplicateError.
	ErrDuplicate = errors.New("defx(index): duplicate canonical id")
	// ErrEmptyID is returned for an entry whose canonical ID is empty.
	ErrEmptyID = errors.New("defx(index): empty canonical id")
)

// DuplicateError is returned under apis.PanicOnDuplicate when two inputs
// share a canonical ID. No index is produced.
type DuplicateError struct {
	// Collisions lists every duplicate found, in ingest order.
	Collisions []apis.Collision
}

func (e *DuplicateError) Error() string {
	first := e.Collisions[0]
	msg := fmt.Sprintf("defx(index): duplicate canonical id %q: existing %s, incoming %s",
		first.Key, first.Existing, first.Incoming)
	if n := len(e.Collisions) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Unwrap returns ErrDuplicate.
func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// Change classifies what applying one input did to the index.
type Change uint8

const (
	// Appended means the input introduced a new canonical ID.
	Appended Change = iota
	// Replaced means the input displaced the entry that owned its
	// canonical ID.
	Replaced
	// Lost means the input lost its canonical conflict and is bound
	// nowhere.
	Lost
)

func (c Change) String() string {
	switch c {
	case Appended:
		return "append"
	case Replaced:
		return "replace"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Delta describes the effect of one input.
type Delta struct {
	Change Change
	// ID is the table row assigned to the input.
	ID apis.ID
	// Previous is the displaced entry for Replaced, or the entry that
	// kept the canonical ID for Lost.
	Previous apis.ID
	// KeysTouched counts the name and alias bindings written or removed.
	KeysTouched int
	// Collision is the canonical-ID collision, if any.
	Collision *apis.Collision
}

// Build constructs an index from inputs in one batch. The returned symbol
// table covers every string of the index.
func Build[P any](inputs []Input[P], cfg apis.Config) (*Index[P], *symbol.Frozen, error) {
	ix, syms, _, err := Extend(Empty[P](), symbol.Empty(), inputs, cfg)
	return ix, syms, err
}

// Extend derives a new index from ix by ingesting inputs after its
// existing entries. ix and syms are not modified. The cost is
// proportional to the inputs and their keys, not to the size of ix.
//
// Building an index in one batch and extending it one input at a time
// yield the same bindings.
func Extend[P any](ix *Index[P], syms *symbol.Frozen, inputs []Input[P], cfg apis.Config) (*Index[P], *symbol.Frozen, []Delta, error) {
	if ix == nil {
		ix = Empty[P]()
	}
	if syms == nil {
		syms = symbol.Empty()
	}
	ords := make([]uint64, len(inputs))
	for i := range ords {
		ords[i] = ix.next + uint64(i)
	}
	return extend(ix, syms, inputs, ords, ix.next+uint64(len(inputs)), cfg)
}

// Replay builds a fresh index from inputs, keeping their original ingest
// ordinals. next is the ordinal of the replayed index's next input; it is
// never lower than any replayed ordinal. Replay is used to drop inputs
// (unloading a layer) without disturbing the precedence of the rest.
func Replay[P any](inputs []Input[P], ordinals []uint64, next uint64, cfg apis.Config) (*Index[P], *symbol.Frozen, error) {
	if len(inputs) != len(ordinals) {
		return nil, nil, fmt.Errorf("defx(index): replay: %d inputs, %d ordinals", len(inputs), len(ordinals))
	}
	for _, o := range ordinals {
		if o >= next {
			next = o + 1
		}
	}
	ix, syms, _, err := extend(Empty[P](), symbol.Empty(), inputs, ordinals, next, cfg)
	return ix, syms, err
}

func extend[P any](ix *Index[P], syms *symbol.Frozen, inputs []Input[P], ords []uint64, next uint64, cfg apis.Config) (*Index[P], *symbol.Frozen, []Delta, error) {
	t := begin(ix, syms, cfg)

	// Declare, then intern every declared string in one batch.
	decls := make([]*buildctx.Collector, len(inputs))
	for i, in := range inputs {
		c := buildctx.NewCollector()
		in.Declare(c)
		decls[i] = c
		t.symbols.InternAll(c.Strings())
	}

	entries := make([]*Entry[P], len(inputs))
	var errs []error
	for i, in := range inputs {
		e, err := t.construct(in, decls[i], ords[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.ID = apis.ID(t.table.Len())
		t.table = t.table.Append(e)
		entries[i] = e
	}
	if len(errs) > 0 {
		return nil, nil, nil, errors.Join(errs...)
	}

	deltas := make([]Delta, len(entries))
	for i, e := range entries {
		deltas[i] = t.apply(e)
	}
	if len(t.dups) > 0 {
		return nil, nil, nil, &DuplicateError{Collisions: t.dups}
	}

	out := t.commit(next)
	log.Debugw("index extended", "inputs", len(inputs), "live", out.live, "rows", out.table.Len(),
		"collisions", out.collisions.Len()-ix.collisions.Len())
	return out, t.symbols.Freeze(), deltas, nil
}

// txn accumulates one extension over persistent copies of the index maps.
type txn[P any] struct {
	cfg        apis.Config
	symbols    *symbol.Interner
	table      *immutable.List[*Entry[P]]
	canonical  *immutable.Map[symbol.Symbol, apis.ID]
	names      *immutable.Map[symbol.Symbol, slot]
	aliases    *immutable.Map[symbol.Symbol, slot]
	groups     *immutable.Map[uint32, []apis.ID]
	collisions *immutable.List[apis.Collision]
	live       int
	dups       []apis.Collision
}

func begin[P any](ix *Index[P], syms *symbol.Frozen, cfg apis.Config) *txn[P] {
	return &txn[P]{
		cfg:        cfg,
		symbols:    syms.Thaw(),
		table:      ix.table,
		canonical:  ix.canonical,
		names:      ix.names,
		aliases:    ix.aliases,
		groups:     ix.groups,
		collisions: ix.collisions,
		live:       ix.live,
	}
}

func (t *txn[P]) commit(next uint64) *Index[P] {
	return &Index[P]{
		table:      t.table,
		canonical:  t.canonical,
		names:      t.names,
		aliases:    t.aliases,
		groups:     t.groups,
		collisions: t.collisions,
		live:       t.live,
		next:       next,
	}
}

func (t *txn[P]) construct(in Input[P], decl *buildctx.Collector, ordinal uint64) (*Entry[P], error) {
	label := fmt.Sprintf("#%d", ordinal)
	if strs := decl.Strings(); len(strs) > 0 {
		label = strs[0]
	}
	x := buildctx.NewContext(label, decl, t.symbols, !t.cfg.LenientStrings)
	e, err := in.Build(x)
	if err == nil {
		err = x.Err()
	}
	if err == nil && e.Canonical == symbol.None {
		err = ErrEmptyID
	}
	if err != nil {
		return nil, fmt.Errorf("defx(index): entry %s: %w", label, err)
	}
	e.Party = in.Party()
	e.Party.Ordinal = ordinal
	e.Keys = normalizeKeys(&e)
	return &e, nil
}

// normalizeKeys drops empty keys, duplicates, and keys equal to the
// entry's own canonical ID or name.
func normalizeKeys[P any](e *Entry[P]) []symbol.Symbol {
	if len(e.Keys) == 0 {
		return nil
	}
	out := make([]symbol.Symbol, 0, len(e.Keys))
	for _, k := range e.Keys {
		if k == symbol.None || k == e.Canonical || k == e.Name {
			continue
		}
		dup := false
		for _, o := range out {
			if o == k {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}
	return out
}

func (t *txn[P]) str(s symbol.Symbol) string { return t.symbols.Resolve(s) }

func (t *txn[P]) claimOf(e *Entry[P]) claim {
	return claim{id: e.ID, party: e.Party, canon: t.str(e.Canonical)}
}

func (t *txn[P]) record(c apis.Collision) {
	t.collisions = t.collisions.Append(c)
}

// apply resolves e against the current bindings.
func (t *txn[P]) apply(e *Entry[P]) Delta {
	d := Delta{ID: e.ID}
	ownerID, taken := t.canonical.Get(e.Canonical)
	if !taken {
		t.canonical = t.canonical.Set(e.Canonical, e.ID)
		t.live++
		t.shadows(e)
		d.Change = Appended
		d.KeysTouched = t.bind(e)
		t.groupAdd(e)
		return d
	}

	owner := t.table.Get(int(ownerID))
	col := apis.Collision{
		Key:      t.str(e.Canonical),
		Stage:    apis.StageCanonical,
		Existing: t.claimOf(owner).claimant(),
		Incoming: t.claimOf(e).claimant(),
	}
	d.Previous = ownerID
	d.Collision = &col

	switch {
	case t.cfg.Policy == apis.PanicOnDuplicate:
		col.Resolution = apis.Rejected
		t.dups = append(t.dups, col)
		d.Change = Lost
	case canonicalBeats(t.cfg.Policy, e.Party, owner.Party):
		col.Resolution = apis.ReplacedExisting
		t.canonical = t.canonical.Set(e.Canonical, e.ID)
		d.KeysTouched = t.unbind(owner) + t.bind(e)
		t.groupRemove(owner)
		t.groupAdd(e)
		d.Change = Replaced
	default:
		col.Resolution = apis.KeptExisting
		d.Change = Lost
	}
	t.record(col)
	return d
}

// shadows records existing name and alias bindings that a new canonical
// ID now shadows.
func (t *txn[P]) shadows(e *Entry[P]) {
	incoming := t.claimOf(e).claimant()
	for _, st := range []struct {
		stage apis.Stage
		m     *immutable.Map[symbol.Symbol, slot]
	}{{apis.StageName, t.names}, {apis.StageAlias, t.aliases}} {
		sl, ok := st.m.Get(e.Canonical)
		if !ok {
			continue
		}
		t.record(apis.Collision{
			Key:        incoming.Canonical,
			Stage:      st.stage,
			Existing:   sl.find(sl.winner).claimant(),
			Incoming:   incoming,
			Resolution: apis.ShadowedByCanonical,
		})
	}
}

func (t *txn[P]) bind(e *Entry[P]) int {
	c := t.claimOf(e)
	n := 0
	if e.Name != symbol.None && e.Name != e.Canonical {
		t.names = t.bindKey(t.names, t.aliases, apis.StageName, e.Name, c)
		n++
	}
	for _, k := range e.Keys {
		t.aliases = t.bindKey(t.aliases, t.names, apis.StageAlias, k, c)
		n++
	}
	return n
}

// bindKey adds c to the slot of key in m. across is the map of the other
// key stage: a name and an alias on the same string never compete on
// precedence, the name wins by stage order, but the pair is recorded.
func (t *txn[P]) bindKey(m, across *immutable.Map[symbol.Symbol, slot], stage apis.Stage, key symbol.Symbol, c claim) *immutable.Map[symbol.Symbol, slot] {
	if ownerID, ok := t.canonical.Get(key); ok && ownerID != c.id {
		owner := t.table.Get(int(ownerID))
		t.record(apis.Collision{
			Key:        t.str(key),
			Stage:      stage,
			Existing:   t.claimOf(owner).claimant(),
			Incoming:   c.claimant(),
			Resolution: apis.ShadowedByCanonical,
		})
	}
	if other, ok := across.Get(key); ok && other.winner != c.id {
		t.record(apis.Collision{
			Key:        t.str(key),
			Stage:      stage,
			Existing:   other.find(other.winner).claimant(),
			Incoming:   c.claimant(),
			Resolution: apis.ShadowedByName,
		})
	}
	sl, ok := m.Get(key)
	if !ok {
		return m.Set(key, slot{winner: c.id, claims: []claim{c}})
	}
	prev := sl.find(sl.winner)
	next, won := sl.with(c)
	res := apis.KeptExisting
	if won {
		res = apis.ReplacedExisting
	}
	t.record(apis.Collision{
		Key:        t.str(key),
		Stage:      stage,
		Existing:   prev.claimant(),
		Incoming:   c.claimant(),
		Resolution: res,
	})
	return m.Set(key, next)
}

func (t *txn[P]) unbind(e *Entry[P]) int {
	n := 0
	if e.Name != symbol.None && e.Name != e.Canonical {
		t.names = unbindKey(t.names, e.Name, e.ID)
		n++
	}
	for _, k := range e.Keys {
		t.aliases = unbindKey(t.aliases, k, e.ID)
		n++
	}
	return n
}

func unbindKey(m *immutable.Map[symbol.Symbol, slot], key symbol.Symbol, id apis.ID) *immutable.Map[symbol.Symbol, slot] {
	sl, ok := m.Get(key)
	if !ok {
		return m
	}
	next, ok := sl.without(id)
	if !ok {
		return m.Delete(key)
	}
	return m.Set(key, next)
}

// groupLess orders group members by priority ascending, then name, then
// ingest ordinal.
func (t *txn[P]) groupLess(a, b *Entry[P]) bool {
	if a.Party.Priority != b.Party.Priority {
		return a.Party.Priority < b.Party.Priority
	}
	if an, bn := t.str(a.Name), t.str(b.Name); an != bn {
		return strings.Compare(an, bn) < 0
	}
	return a.Party.Ordinal < b.Party.Ordinal
}

func (t *txn[P]) groupAdd(e *Entry[P]) {
	if e.Group == 0 {
		return
	}
	ids, _ := t.groups.Get(e.Group)
	pos := sort.Search(len(ids), func(i int) bool {
		return t.groupLess(e, t.table.Get(int(ids[i])))
	})
	out := make([]apis.ID, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, e.ID)
	out = append(out, ids[pos:]...)
	t.groups = t.groups.Set(e.Group, out)
}

func (t *txn[P]) groupRemove(e *Entry[P]) {
	if e.Group == 0 {
		return
	}
	ids, ok := t.groups.Get(e.Group)
	if !ok {
		return
	}
	out := make([]apis.ID, 0, len(ids))
	for _, id := range ids {
		if id != e.ID {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		t.groups = t.groups.Delete(e.Group)
		return
	}
	t.groups = t.groups.Set(e.Group, out)
}
