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

// Package symbol interns strings into compact integer symbols.
//
// An Interner hands out dense symbols in first-seen order. Freezing it
// yields a Frozen table: an immutable, concurrency-safe view that can be
// shared by any number of snapshots. Thawing a Frozen table continues the
// same generation; symbols already handed out never change, and growth
// after the thaw is invisible to the Frozen table it came from.
//
// Storage is persistent (structurally shared), so thawing, growing and
// freezing again costs only the new strings, never a copy of the table.
package symbol

import (
	"github.com/benbjohnson/immutable"
)

// Symbol is an interned string identifier.
type Symbol uint32

// None is the reserved zero symbol. It stands for the empty string and is
// never handed out for a non-empty string.
const None Symbol = 0

// Interner deduplicates strings into symbols.
// It is not safe for concurrent use; freeze it to share.
type Interner struct {
	ids   *immutable.Map[string, Symbol]
	names *immutable.List[string]
}

// NewInterner returns an empty interner that only knows None.
func NewInterner() *Interner {
	return &Interner{
		ids:   immutable.NewMap[string, Symbol](stringHasher{}).Set("", None),
		names: immutable.NewList(""),
	}
}

// Intern returns the symbol of s, allocating the next dense symbol if s
// was not seen before in this generation. Intern("") returns None.
func (in *Interner) Intern(s string) Symbol {
	if id, ok := in.ids.Get(s); ok {
		return id
	}
	id := Symbol(in.names.Len())
	in.names = in.names.Append(s)
	in.ids = in.ids.Set(s, id)
	return id
}

// InternAll interns every string in order and returns their symbols.
func (in *Interner) InternAll(strs []string) []Symbol {
	out := make([]Symbol, len(strs))
	for i, s := range strs {
		out[i] = in.Intern(s)
	}
	return out
}

// Lookup returns the symbol of s without interning it.
func (in *Interner) Lookup(s string) (Symbol, bool) {
	return in.ids.Get(s)
}

// Resolve returns the string of sym, or "" for a symbol this generation
// never produced.
func (in *Interner) Resolve(sym Symbol) string {
	return resolve(in.names, sym)
}

// Len returns the number of interned strings, not counting None.
func (in *Interner) Len() int { return in.names.Len() - 1 }

// Freeze returns an immutable view of the interner's current contents.
// The interner stays usable; later interning does not affect the view.
func (in *Interner) Freeze() *Frozen {
	return &Frozen{ids: in.ids, names: in.names}
}

// Frozen is a read-only symbol table. It is safe for concurrent use and
// its methods never allocate.
type Frozen struct {
	ids   *immutable.Map[string, Symbol]
	names *immutable.List[string]
}

// Empty returns a frozen table that only knows None.
func Empty() *Frozen { return NewInterner().Freeze() }

// Lookup returns the symbol of s, or false if s was never interned.
func (f *Frozen) Lookup(s string) (Symbol, bool) {
	return f.ids.Get(s)
}

// Resolve returns the string of sym, or "" for an unknown symbol.
func (f *Frozen) Resolve(sym Symbol) string {
	return resolve(f.names, sym)
}

// Len returns the number of interned strings, not counting None.
func (f *Frozen) Len() int { return f.names.Len() - 1 }

// Thaw returns an interner that continues this table's generation.
func (f *Frozen) Thaw() *Interner {
	return &Interner{ids: f.ids, names: f.names}
}

func resolve(names *immutable.List[string], sym Symbol) string {
	if int(sym) >= names.Len() {
		return ""
	}
	return names.Get(int(sym))
}
