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

package index_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/config"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/spec"
	"dirpx.dev/defx/symbol"
)

func def(id, name string, prio int32, src apis.SourceRank, keys ...string) index.Input[string] {
	return index.Def[string]{Meta: spec.Meta{ID: id, Name: name, Priority: prio, Source: src, Keys: keys}}
}

type hit struct {
	Canonical string
	Stage     apis.Stage
}

// find walks canonical, name and alias bindings in order.
func find(ix *index.Index[string], syms *symbol.Frozen, key string) (hit, bool) {
	sym, ok := syms.Lookup(key)
	if !ok {
		return hit{}, false
	}
	for _, st := range []apis.Stage{apis.StageCanonical, apis.StageName, apis.StageAlias} {
		if id, ok := ix.Bound(st, uint32(sym)); ok {
			e, _ := ix.Entry(id)
			return hit{Canonical: syms.Resolve(e.Canonical), Stage: st}, true
		}
	}
	return hit{}, false
}

func mustFind(t *testing.T, ix *index.Index[string], syms *symbol.Frozen, key string) hit {
	t.Helper()
	h, ok := find(ix, syms, key)
	if !ok {
		t.Fatalf("lookup(%q): not found", key)
	}
	return h
}

func build(t *testing.T, cfg apis.Config, inputs ...index.Input[string]) (*index.Index[string], *symbol.Frozen) {
	t.Helper()
	ix, syms, err := index.Build(inputs, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix, syms
}

func TestBuild_PluginAliasOverridesBuiltin(t *testing.T) {
	ix, syms := build(t, config.DefaultConfig(),
		def("quit", "", 0, apis.SourceBuiltin, "q"),
		def("quick-open", "", 10, apis.SourceRuntime, "q"),
	)

	if got, want := mustFind(t, ix, syms, "q"), (hit{"quick-open", apis.StageAlias}); got != want {
		t.Fatalf("lookup(q) = %+v, want %+v", got, want)
	}
	if got, want := mustFind(t, ix, syms, "quit"), (hit{"quit", apis.StageCanonical}); got != want {
		t.Fatalf("lookup(quit) = %+v, want %+v", got, want)
	}

	want := []apis.Collision{{
		Key:        "q",
		Stage:      apis.StageAlias,
		Existing:   apis.Claimant{Canonical: "quit", Party: apis.Party{Source: apis.SourceBuiltin, Ordinal: 0}},
		Incoming:   apis.Claimant{Canonical: "quick-open", Party: apis.Party{Priority: 10, Source: apis.SourceRuntime, Ordinal: 1}},
		Resolution: apis.ReplacedExisting,
	}}
	if diff := cmp.Diff(want, ix.Collisions()); diff != "" {
		t.Fatalf("Collisions mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_CanonicalPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		policy apis.DuplicatePolicy
		first  index.Input[string]
		second index.Input[string]
		want   string // alias of the winner
	}{
		{"equal party later wins", apis.ByPriority,
			def("save", "", 0, apis.SourceBuiltin, "s1"), def("save", "", 0, apis.SourceBuiltin, "s2"), "s2"},
		{"priority beats order", apis.ByPriority,
			def("save", "", 5, apis.SourceBuiltin, "s1"), def("save", "", 0, apis.SourceRuntime, "s2"), "s1"},
		{"source rank breaks priority tie", apis.ByPriority,
			def("save", "", 0, apis.SourceModule, "s1"), def("save", "", 0, apis.SourceBuiltin, "s2"), "s1"},
		{"first wins", apis.FirstWins,
			def("save", "", 0, apis.SourceBuiltin, "s1"), def("save", "", 99, apis.SourceRuntime, "s2"), "s1"},
		{"last wins", apis.LastWins,
			def("save", "", 99, apis.SourceRuntime, "s1"), def("save", "", 0, apis.SourceBuiltin, "s2"), "s2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix, syms := build(t, config.NewConfig(config.WithPolicy(tc.policy)), tc.first, tc.second)

			if ix.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", ix.Len())
			}
			if ix.TableLen() != 2 {
				t.Fatalf("TableLen() = %d, want 2 (loser keeps its row)", ix.TableLen())
			}
			if _, ok := find(ix, syms, tc.want); !ok {
				t.Fatalf("winner alias %q not bound", tc.want)
			}
			loser := "s1"
			if tc.want == "s1" {
				loser = "s2"
			}
			if h, ok := find(ix, syms, loser); ok {
				t.Fatalf("loser alias %q bound to %+v", loser, h)
			}

			cols := ix.Collisions()
			if len(cols) != 1 || cols[0].Stage != apis.StageCanonical || cols[0].Key != "save" {
				t.Fatalf("Collisions() = %v, want one canonical collision on save", cols)
			}
		})
	}
}

func TestBuild_PanicOnDuplicate(t *testing.T) {
	ix, syms, err := index.Build([]index.Input[string]{
		def("save", "", 0, apis.SourceBuiltin),
		def("quit", "", 0, apis.SourceBuiltin),
		def("save", "", 0, apis.SourceModule),
		def("quit", "", 0, apis.SourceModule),
	}, config.Development())

	if ix != nil || syms != nil {
		t.Fatal("Build produced an index despite duplicates")
	}
	if !errors.Is(err, index.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	var de *index.DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, want *DuplicateError", err)
	}
	var keys []string
	for _, c := range de.Collisions {
		if c.Resolution != apis.Rejected {
			t.Errorf("resolution = %v, want Rejected", c.Resolution)
		}
		keys = append(keys, c.Key)
	}
	if diff := cmp.Diff([]string{"save", "quit"}, keys); diff != "" {
		t.Fatalf("duplicate keys mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UndeclaredPayloadString(t *testing.T) {
	in := index.Def[string]{
		Meta: spec.Meta{ID: "goto-line"},
		Payload: func(x *buildctx.Context) (string, error) {
			x.Sym("line-number")
			return "goto", nil
		},
	}

	_, _, err := index.Build([]index.Input[string]{in}, config.DefaultConfig())
	if !errors.Is(err, buildctx.ErrUndeclared) {
		t.Fatalf("strict: err = %v, want ErrUndeclared", err)
	}
	var ue *buildctx.UndeclaredError
	if !errors.As(err, &ue) || ue.String != "line-number" || ue.Entry != "goto-line" {
		t.Fatalf("strict: err = %v, want UndeclaredError naming line-number", err)
	}

	ix, syms, err := index.Build([]index.Input[string]{in}, config.NewConfig(config.WithLenientStrings(true)))
	if err != nil {
		t.Fatalf("lenient: Build: %v", err)
	}
	if _, ok := syms.Lookup("line-number"); !ok {
		t.Fatal("lenient: late string not interned")
	}
	if ix.Len() != 1 {
		t.Fatalf("lenient: Len() = %d, want 1", ix.Len())
	}

	in.Strings = []string{"line-number"}
	if _, _, err := index.Build([]index.Input[string]{in}, config.DefaultConfig()); err != nil {
		t.Fatalf("declared: Build: %v", err)
	}
}

func TestBuild_EmptyCanonicalID(t *testing.T) {
	_, _, err := index.Build([]index.Input[string]{def("", "nameless", 0, apis.SourceBuiltin)}, config.DefaultConfig())
	if !errors.Is(err, index.ErrEmptyID) {
		t.Fatalf("err = %v, want ErrEmptyID", err)
	}
}

func TestExtend_AppendsTouchOnlyNewKeys(t *testing.T) {
	const n = 10000
	cfg := config.DefaultConfig()
	ix, syms := index.Empty[string](), symbol.Empty()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("cmd-%05d", i)
		next, nextSyms, deltas, err := index.Extend(ix, syms,
			[]index.Input[string]{def(id, "Command "+id, 0, apis.SourceRuntime, "k"+id)}, cfg)
		if err != nil {
			t.Fatalf("Extend(%s): %v", id, err)
		}
		d := deltas[0]
		if d.Change != index.Appended || d.KeysTouched != 2 || d.ID != apis.ID(i) {
			t.Fatalf("Extend(%s) delta = %+v, want append of row %d touching 2 keys", id, d, i)
		}
		if ix.Len() != i {
			t.Fatalf("previous index mutated: Len() = %d, want %d", ix.Len(), i)
		}
		ix, syms = next, nextSyms
	}

	if ix.Len() != n {
		t.Fatalf("Len() = %d, want %d", ix.Len(), n)
	}
	if got := mustFind(t, ix, syms, "Command cmd-04242"); got != (hit{"cmd-04242", apis.StageName}) {
		t.Fatalf("name lookup = %+v", got)
	}
	if got := mustFind(t, ix, syms, "kcmd-09999"); got != (hit{"cmd-09999", apis.StageAlias}) {
		t.Fatalf("alias lookup = %+v", got)
	}
	if len(ix.Collisions()) != 0 {
		t.Fatalf("unexpected collisions: %v", ix.Collisions())
	}
}

func TestExtend_ReplaceRebindsUnionOfKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	ix, syms := build(t, cfg, def("save", "Save", 0, apis.SourceBuiltin, "s", "w"))

	next, nextSyms, deltas, err := index.Extend(ix, syms,
		[]index.Input[string]{def("save", "Save All", 1, apis.SourceRuntime, "S")}, cfg)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	d := deltas[0]
	if d.Change != index.Replaced || d.Previous != 0 || d.KeysTouched != 5 {
		t.Fatalf("delta = %+v, want replace of row 0 touching 5 keys", d)
	}
	for _, gone := range []string{"s", "w", "Save"} {
		if h, ok := find(next, nextSyms, gone); ok {
			t.Fatalf("old key %q still bound to %+v", gone, h)
		}
	}
	for _, key := range []string{"S", "Save All", "save"} {
		if h := mustFind(t, next, nextSyms, key); h.Canonical != "save" {
			t.Fatalf("lookup(%q) = %+v", key, h)
		}
	}
	if id, _ := next.Bound(apis.StageCanonical, uint32(mustSym(t, nextSyms, "save"))); id != d.ID {
		t.Fatalf("canonical bound to %d, want new row %d", id, d.ID)
	}

	// The old snapshot still answers with the old entry.
	if h := mustFind(t, ix, syms, "s"); h.Canonical != "save" {
		t.Fatalf("old index lookup(s) = %+v", h)
	}
}

func TestExtend_LosingInputIsReported(t *testing.T) {
	cfg := config.DefaultConfig()
	ix, syms := build(t, cfg, def("save", "", 5, apis.SourceBuiltin))

	next, _, deltas, err := index.Extend(ix, syms, []index.Input[string]{def("save", "", 1, apis.SourceRuntime, "x")}, cfg)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	d := deltas[0]
	if d.Change != index.Lost || d.Collision == nil || d.Collision.Resolution != apis.KeptExisting {
		t.Fatalf("delta = %+v, want lost with KeptExisting collision", d)
	}
	if d.KeysTouched != 0 {
		t.Fatalf("KeysTouched = %d, want 0", d.KeysTouched)
	}
	if next.Live(d.ID) {
		t.Fatal("losing row is live")
	}
}

func TestCanonicalIsNeverDisplaced(t *testing.T) {
	orders := map[string][]index.Input[string]{
		"canonical first": {
			def("w", "", 0, apis.SourceBuiltin),
			def("write", "", 100, apis.SourceRuntime, "w"),
		},
		"alias first": {
			def("write", "", 100, apis.SourceRuntime, "w"),
			def("w", "", 0, apis.SourceBuiltin),
		},
	}
	for name, inputs := range orders {
		t.Run(name, func(t *testing.T) {
			ix, syms := build(t, config.DefaultConfig(), inputs...)

			if got := mustFind(t, ix, syms, "w"); got != (hit{"w", apis.StageCanonical}) {
				t.Fatalf("lookup(w) = %+v, want canonical w", got)
			}
			cols := ix.Collisions()
			if len(cols) != 1 || cols[0].Resolution != apis.ShadowedByCanonical {
				t.Fatalf("Collisions() = %v, want one ShadowedByCanonical", cols)
			}
			if w := cols[0].Winner(); w.Canonical != "w" {
				t.Fatalf("Winner() = %v, want canonical owner w", w)
			}
			if l := cols[0].Loser(); l.Canonical != "write" {
				t.Fatalf("Loser() = %v, want write", l)
			}
		})
	}
}

func TestNameShadowsAliasIsRecorded(t *testing.T) {
	write := def("write", "Save", 0, apis.SourceBuiltin)
	plugin := def("plugin:save", "", 100, apis.SourceRuntime, "Save")
	builtinParty := func(ord uint64) apis.Party { return apis.Party{Source: apis.SourceBuiltin, Ordinal: ord} }
	pluginParty := func(ord uint64) apis.Party {
		return apis.Party{Priority: 100, Source: apis.SourceRuntime, Ordinal: ord}
	}

	cases := []struct {
		name   string
		inputs []index.Input[string]
		want   apis.Collision
	}{
		{
			name:   "name first",
			inputs: []index.Input[string]{write, plugin},
			want: apis.Collision{
				Key:        "Save",
				Stage:      apis.StageAlias,
				Existing:   apis.Claimant{Canonical: "write", Party: builtinParty(0)},
				Incoming:   apis.Claimant{Canonical: "plugin:save", Party: pluginParty(1)},
				Resolution: apis.ShadowedByName,
			},
		},
		{
			name:   "alias first",
			inputs: []index.Input[string]{plugin, write},
			want: apis.Collision{
				Key:        "Save",
				Stage:      apis.StageName,
				Existing:   apis.Claimant{Canonical: "plugin:save", Party: pluginParty(0)},
				Incoming:   apis.Claimant{Canonical: "write", Party: builtinParty(1)},
				Resolution: apis.ShadowedByName,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix, syms := build(t, config.DefaultConfig(), tc.inputs...)

			if got := mustFind(t, ix, syms, "Save"); got != (hit{"write", apis.StageName}) {
				t.Fatalf("lookup(Save) = %+v, want name of write", got)
			}
			if diff := cmp.Diff([]apis.Collision{tc.want}, ix.Collisions()); diff != "" {
				t.Fatalf("Collisions mismatch (-want +got):\n%s", diff)
			}
			c := ix.Collisions()[0]
			if c.Winner().Canonical != "write" || c.Loser().Canonical != "plugin:save" {
				t.Fatalf("Winner/Loser = %v/%v, want write/plugin:save", c.Winner(), c.Loser())
			}
		})
	}
}

func TestKeyTieBreakIsOrderIndependent(t *testing.T) {
	a := def("aaa", "", 0, apis.SourceModule, "x")
	b := def("bbb", "", 0, apis.SourceModule, "x")

	for _, inputs := range [][]index.Input[string]{{a, b}, {b, a}} {
		ix, syms := build(t, config.DefaultConfig(), inputs...)
		if got := mustFind(t, ix, syms, "x"); got.Canonical != "aaa" {
			t.Fatalf("lookup(x) = %+v, want aaa", got)
		}
		if claims := ix.Claims(apis.StageAlias, mustSym(t, syms, "x")); len(claims) != 2 {
			t.Fatalf("Claims(x) = %v, want 2 claims", claims)
		}
	}
}

func TestBatchEqualsIncremental(t *testing.T) {
	inputs := []index.Input[string]{
		def("quit", "Quit", 0, apis.SourceBuiltin, "q", "exit"),
		def("write", "Write", 0, apis.SourceBuiltin, "w"),
		def("write-quit", "", 0, apis.SourceBuiltin, "wq", "x"),
		def("quick-open", "", 10, apis.SourceRuntime, "q"),
		def("exit", "", 0, apis.SourceModule),
		def("write", "Write Buffer", 0, apis.SourceModule, "w", "W"),
		def("xplode", "", 0, apis.SourceModule, "x"),
	}
	cfg := config.DefaultConfig()
	batch, batchSyms := build(t, cfg, inputs...)

	inc, incSyms := index.Empty[string](), symbol.Empty()
	for _, in := range inputs {
		var err error
		inc, incSyms, _, err = index.Extend(inc, incSyms, []index.Input[string]{in}, cfg)
		if err != nil {
			t.Fatalf("Extend: %v", err)
		}
	}

	keys := []string{"quit", "Quit", "q", "exit", "write", "Write", "Write Buffer", "w", "W", "wq", "x", "quick-open", "xplode", "nope"}
	for _, key := range keys {
		bh, bok := find(batch, batchSyms, key)
		ih, iok := find(inc, incSyms, key)
		if bh != ih || bok != iok {
			t.Errorf("lookup(%q): batch %+v/%v, incremental %+v/%v", key, bh, bok, ih, iok)
		}
	}
	if diff := cmp.Diff(batch.Collisions(), inc.Collisions()); diff != "" {
		t.Fatalf("collision logs differ (-batch +incremental):\n%s", diff)
	}
	if batch.Len() != inc.Len() {
		t.Fatalf("Len: batch %d, incremental %d", batch.Len(), inc.Len())
	}
}

func TestGroupsOrderAndReplacement(t *testing.T) {
	hook := func(id, name string, prio int32, src apis.SourceRank) index.Input[string] {
		return index.Def[string]{Meta: spec.Meta{ID: id, Name: name, Priority: prio, Source: src}, Group: 7}
	}
	cfg := config.DefaultConfig()
	ix, syms := build(t, cfg,
		hook("fmt", "format", 10, apis.SourceBuiltin),
		hook("lint", "lint", 0, apis.SourceBuiltin),
		hook("autosave", "autosave", 10, apis.SourceBuiltin),
		def("unrelated", "", 0, apis.SourceBuiltin),
	)

	names := func(ix *index.Index[string]) []string {
		var out []string
		for _, e := range ix.Group(7) {
			out = append(out, syms.Resolve(e.Canonical))
		}
		return out
	}
	if diff := cmp.Diff([]string{"lint", "autosave", "fmt"}, names(ix)); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}

	next, nextSyms, _, err := index.Extend(ix, syms, []index.Input[string]{hook("lint", "lint", 20, apis.SourceRuntime)}, cfg)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	syms = nextSyms
	if diff := cmp.Diff([]string{"autosave", "fmt", "lint"}, names(next)); diff != "" {
		t.Fatalf("group order after replace mismatch (-want +got):\n%s", diff)
	}
	if next.Group(8) != nil {
		t.Fatal("Group(8) should be empty")
	}
}

func TestReplayKeepsOrdinals(t *testing.T) {
	a := def("save", "", 0, apis.SourceBuiltin, "a")
	b := def("save", "", 0, apis.SourceBuiltin, "b")

	ix, syms, err := index.Replay([]index.Input[string]{a, b}, []uint64{7, 3}, 0, config.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if _, ok := find(ix, syms, "a"); !ok {
		t.Fatal("input with the later ordinal should own save")
	}
	if ix.NextOrdinal() != 8 {
		t.Fatalf("NextOrdinal() = %d, want 8", ix.NextOrdinal())
	}

	if _, _, err := index.Replay([]index.Input[string]{a}, nil, 0, config.DefaultConfig()); err == nil {
		t.Fatal("Replay with mismatched ordinals: expected error")
	}
}

func TestBound_DoesNotAllocate(t *testing.T) {
	ix, syms := build(t, config.DefaultConfig(),
		def("quit", "Quit", 0, apis.SourceBuiltin, "q"),
		def("write", "", 0, apis.SourceBuiltin, "w"),
	)
	q := uint32(mustSym(t, syms, "q"))
	allocs := testing.AllocsPerRun(1000, func() {
		if _, ok := ix.Bound(apis.StageCanonical, q); ok {
			t.Fatal("q bound as canonical")
		}
		if _, ok := ix.Bound(apis.StageAlias, q); !ok {
			t.Fatal("q not bound as alias")
		}
	})
	if allocs != 0 {
		t.Fatalf("Bound allocs = %v, want 0", allocs)
	}
}

func mustSym(t *testing.T, syms *symbol.Frozen, s string) symbol.Symbol {
	t.Helper()
	sym, ok := syms.Lookup(s)
	if !ok {
		t.Fatalf("symbol %q not interned", s)
	}
	return sym
}
