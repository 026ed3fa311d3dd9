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

// Package buildctx implements the two-phase string declaration contract
// used to construct index entries.
//
// Phase one: every string an entry will need (ID, name, descriptions,
// keys, payload strings) is pushed into a Collector. The index builder
// interns all collected strings in one batch.
//
// Phase two: the entry is assembled through a Context that can only hand
// out symbols for strings its Collector declared. Asking for anything else
// is a contract violation. In strict mode the Context records a sticky
// *UndeclaredError naming the string and returns symbol.None, and the
// builder rejects the entry. In lenient mode the string is interned late
// and a warning names it. Neither mode ever yields a wrong symbol.
package buildctx

import (
	"errors"
	"fmt"
	"strings"

	golog "github.com/ipfs/go-log/v2"

	"dirpx.dev/defx/symbol"
)

var log = golog.Logger("defx/buildctx")

// ErrUndeclared is the sentinel wrapped by *UndeclaredError.
var ErrUndeclared = errors.New("defx(buildctx): undeclared string")

// UndeclaredError reports strings an entry used without declaring them.
type UndeclaredError struct {
	// Entry labels the entry being constructed (usually its canonical ID).
	Entry string
	// String is the first undeclared string.
	String string
	// Missing lists every undeclared string, in first-use order.
	Missing []string
}

func (e *UndeclaredError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "defx(buildctx): entry %q used undeclared string %q", e.Entry, e.String)
	if len(e.Missing) > 1 {
		fmt.Fprintf(&b, " (%d undeclared: %q)", len(e.Missing), e.Missing)
	}
	return b.String()
}

// Unwrap returns ErrUndeclared.
func (e *UndeclaredError) Unwrap() error { return ErrUndeclared }

// Collector gathers the strings an entry declares before construction.
// The empty string is always implicitly declared.
type Collector struct {
	seen map[string]struct{}
	strs []string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Push declares strs. Duplicates and empty strings are ignored.
func (c *Collector) Push(strs ...string) {
	for _, s := range strs {
		if s == "" {
			continue
		}
		if _, ok := c.seen[s]; ok {
			continue
		}
		c.seen[s] = struct{}{}
		c.strs = append(c.strs, s)
	}
}

// Has reports whether s was declared.
func (c *Collector) Has(s string) bool {
	if s == "" {
		return true
	}
	_, ok := c.seen[s]
	return ok
}

// Strings returns the declared strings in declaration order.
// The returned slice must not be modified.
func (c *Collector) Strings() []string { return c.strs }

// Len returns the number of distinct declared strings.
func (c *Collector) Len() int { return len(c.strs) }

// Context hands out symbols for declared strings during construction of
// one entry. It is not safe for concurrent use.
type Context struct {
	label      string
	declared   *Collector
	symbols    *symbol.Interner
	strict     bool
	err        *UndeclaredError
	violations []string
}

// NewContext returns a context over the strings declared in c, interning
// into in. label names the entry in error reports.
func NewContext(label string, c *Collector, in *symbol.Interner, strict bool) *Context {
	return &Context{label: label, declared: c, symbols: in, strict: strict}
}

// Sym returns the symbol for a declared string.
// For an undeclared string it returns symbol.None and records an error in
// strict mode, or interns late and logs a warning in lenient mode.
func (x *Context) Sym(s string) symbol.Symbol {
	if x.declared.Has(s) {
		return x.symbols.Intern(s)
	}
	x.violations = append(x.violations, s)
	if !x.strict {
		log.Warnw("undeclared string interned late", "entry", x.label, "string", s)
		return x.symbols.Intern(s)
	}
	if x.err == nil {
		x.err = &UndeclaredError{Entry: x.label, String: s}
	}
	x.err.Missing = append(x.err.Missing, s)
	return symbol.None
}

// Syms returns the symbols of strs, in order, following the same rules
// as Sym.
func (x *Context) Syms(strs []string) []symbol.Symbol {
	if len(strs) == 0 {
		return nil
	}
	out := make([]symbol.Symbol, len(strs))
	for i, s := range strs {
		out[i] = x.Sym(s)
	}
	return out
}

// Err returns the sticky contract violation, if any.
func (x *Context) Err() error {
	if x.err == nil {
		return nil
	}
	return x.err
}

// Violations returns every undeclared string seen, in first-use order,
// including strings interned late in lenient mode.
func (x *Context) Violations() []string { return x.violations }
