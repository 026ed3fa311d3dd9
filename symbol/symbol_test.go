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

package symbol_test

import (
	"runtime"
	"strconv"
	"sync"
	"testing"

	"dirpx.dev/defx/symbol"
)

func TestIntern_DeduplicatesAndIsDense(t *testing.T) {
	in := symbol.NewInterner()

	a := in.Intern("quit")
	b := in.Intern("write")
	a2 := in.Intern("quit")

	if a != a2 {
		t.Fatalf("Intern(quit) twice: got %d and %d, want equal", a, a2)
	}
	if a == b {
		t.Fatalf("distinct strings share symbol %d", a)
	}
	if a != 1 || b != 2 {
		t.Fatalf("symbols = (%d,%d), want dense (1,2)", a, b)
	}
	if in.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", in.Len())
	}
	if got := in.Resolve(b); got != "write" {
		t.Fatalf("Resolve(%d) = %q, want write", b, got)
	}
}

func TestIntern_EmptyStringIsNone(t *testing.T) {
	in := symbol.NewInterner()
	if got := in.Intern(""); got != symbol.None {
		t.Fatalf(`Intern("") = %d, want None`, got)
	}
	if in.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", in.Len())
	}
	if got := in.Resolve(symbol.None); got != "" {
		t.Fatalf("Resolve(None) = %q, want empty", got)
	}
}

func TestResolve_UnknownSymbol(t *testing.T) {
	in := symbol.NewInterner()
	in.Intern("a")
	if got := in.Resolve(42); got != "" {
		t.Fatalf("Resolve(42) = %q, want empty", got)
	}
}

func TestFreeze_IsolatedFromLaterGrowth(t *testing.T) {
	in := symbol.NewInterner()
	q := in.Intern("quit")
	frozen := in.Freeze()

	w := in.Intern("write")

	if _, ok := frozen.Lookup("write"); ok {
		t.Fatal("frozen table sees a string interned after Freeze")
	}
	if got := frozen.Resolve(w); got != "" {
		t.Fatalf("frozen Resolve(%d) = %q, want empty", w, got)
	}
	if got, ok := frozen.Lookup("quit"); !ok || got != q {
		t.Fatalf("frozen Lookup(quit) = (%d,%v), want (%d,true)", got, ok, q)
	}
}

func TestThaw_ContinuesGeneration(t *testing.T) {
	in := symbol.NewInterner()
	q := in.Intern("quit")
	base := in.Freeze()

	next := base.Thaw()
	if got := next.Intern("quit"); got != q {
		t.Fatalf("thawed Intern(quit) = %d, want existing %d", got, q)
	}
	w := next.Intern("write")
	if w != q+1 {
		t.Fatalf("thawed Intern(write) = %d, want next dense %d", w, q+1)
	}
	if base.Len() != 1 {
		t.Fatalf("base Len() = %d after thaw growth, want 1", base.Len())
	}
	if next.Freeze().Len() != 2 {
		t.Fatalf("next Len() = %d, want 2", next.Freeze().Len())
	}
}

func TestFrozen_LookupDoesNotAllocate(t *testing.T) {
	in := symbol.NewInterner()
	for i := 0; i < 1000; i++ {
		in.Intern("key-" + strconv.Itoa(i))
	}
	f := in.Freeze()
	key := "key-517"

	allocs := testing.AllocsPerRun(100, func() {
		if _, ok := f.Lookup(key); !ok {
			t.Fatal("lookup miss")
		}
		_ = f.Resolve(3)
	})
	if allocs != 0 {
		t.Fatalf("Lookup/Resolve allocated %.1f times per run, want 0", allocs)
	}
}

func TestFrozen_ConcurrentReads(t *testing.T) {
	in := symbol.NewInterner()
	words := []string{"quit", "write", "edit", "split", "vsplit", "buffer"}
	syms := in.InternAll(words)
	f := in.Freeze()

	wg := sync.WaitGroup{}
	workers := runtime.GOMAXPROCS(0) * 4
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				j := (i + id) % len(words)
				if got, ok := f.Lookup(words[j]); !ok || got != syms[j] {
					t.Errorf("Lookup(%q) = (%d,%v), want (%d,true)", words[j], got, ok, syms[j])
					return
				}
				if got := f.Resolve(syms[j]); got != words[j] {
					t.Errorf("Resolve(%d) = %q, want %q", syms[j], got, words[j])
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestHasher_Distributes(t *testing.T) {
	h := symbol.Hasher{}
	seen := make(map[uint32]struct{})
	for i := symbol.Symbol(0); i < 4096; i++ {
		seen[h.Hash(i)] = struct{}{}
	}
	if len(seen) != 4096 {
		t.Fatalf("Hash collided on small symbols: %d distinct of 4096", len(seen))
	}
	if !h.Equal(7, 7) || h.Equal(7, 8) {
		t.Fatal("Equal mismatch")
	}
}
