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

// Package link pairs decoded specification records with the compiled-in
// handlers that implement them.
//
// For handler-driven domains the pairing must be a strict bijection by
// canonical name: every spec has exactly one handler and every handler has
// exactly one spec. The linker never stops at the first problem; it scans
// everything and returns one *Report listing every discrepancy. A report is
// a startup-fatal condition: the binary and its embedded data are out of
// sync.
//
// Spec-only domains use Validate, which parses every record and aggregates
// all failures the same way.
package link

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/spec"
)

var (
	// ErrBijection is wrapped by reports of spec/handler mismatches.
	ErrBijection = errors.New("defx(link): spec/handler bijection violated")
	// ErrInvalid is wrapped by reports of spec-only validation failures.
	ErrInvalid = errors.New("defx(link): invalid specification")
)

// Handler is a compiled-in implementation exposing a stable canonical name.
type Handler interface {
	CanonicalName() string
}

// Linked pairs one spec with its handler.
type Linked[H Handler] struct {
	Spec    spec.Spec
	Handler H
}

// Invalid names one spec that failed domain validation.
type Invalid struct {
	ID  string
	Err error
}

// Report aggregates every linking or validation problem of one domain.
type Report struct {
	Domain apis.Domain
	// DuplicateHandlers lists names claimed by more than one handler.
	DuplicateHandlers []string
	// DuplicateSpecs lists IDs carried by more than one spec.
	DuplicateSpecs []string
	// MissingHandlers lists spec IDs without a handler.
	MissingHandlers []string
	// MissingSpecs lists handler names without a spec.
	MissingSpecs []string
	// Invalid lists specs rejected by domain validation.
	Invalid []Invalid
}

// Empty reports whether the report found no problem.
func (r *Report) Empty() bool {
	return len(r.DuplicateHandlers) == 0 && len(r.DuplicateSpecs) == 0 &&
		len(r.MissingHandlers) == 0 && len(r.MissingSpecs) == 0 && len(r.Invalid) == 0
}

// Count returns the total number of problems.
func (r *Report) Count() int {
	return len(r.DuplicateHandlers) + len(r.DuplicateSpecs) +
		len(r.MissingHandlers) + len(r.MissingSpecs) + len(r.Invalid)
}

func (r *Report) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "defx(link): domain %s: %d problem(s)", r.Domain, r.Count())
	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n  %s: %s", title, strings.Join(names, ", "))
	}
	section("duplicate handlers", r.DuplicateHandlers)
	section("duplicate specs", r.DuplicateSpecs)
	section("specs without handler", r.MissingHandlers)
	section("handlers without spec", r.MissingSpecs)
	for _, inv := range r.Invalid {
		fmt.Fprintf(&b, "\n  invalid %q: %v", inv.ID, inv.Err)
	}
	return b.String()
}

// Unwrap returns ErrInvalid for validation-only reports, ErrBijection otherwise.
func (r *Report) Unwrap() error {
	if len(r.Invalid) > 0 && r.Count() == len(r.Invalid) {
		return ErrInvalid
	}
	return ErrBijection
}

// ByName pairs specs and handlers by canonical name.
// On success the result follows spec order. On any mismatch it returns a
// *Report covering the whole scan and no pairs.
func ByName[H Handler](d apis.Domain, specs []spec.Spec, handlers []H) ([]Linked[H], error) {
	r := &Report{Domain: d}

	byName := make(map[string]H, len(handlers))
	handlerCount := make(map[string]int, len(handlers))
	for _, h := range handlers {
		name := h.CanonicalName()
		handlerCount[name]++
		if handlerCount[name] == 1 {
			byName[name] = h
		} else if handlerCount[name] == 2 {
			r.DuplicateHandlers = append(r.DuplicateHandlers, name)
		}
	}

	specCount := make(map[string]int, len(specs))
	for _, s := range specs {
		specCount[s.ID]++
		if specCount[s.ID] == 2 {
			r.DuplicateSpecs = append(r.DuplicateSpecs, s.ID)
		}
		if specCount[s.ID] == 1 && handlerCount[s.ID] == 0 {
			r.MissingHandlers = append(r.MissingHandlers, s.ID)
		}
	}
	for name := range handlerCount {
		if specCount[name] == 0 {
			r.MissingSpecs = append(r.MissingSpecs, name)
		}
	}

	if !r.Empty() {
		r.sort()
		return nil, r
	}

	out := make([]Linked[H], len(specs))
	for i, s := range specs {
		out[i] = Linked[H]{Spec: s, Handler: byName[s.ID]}
	}
	return out, nil
}

// Validate parses every spec with parse. It returns all parsed values in
// spec order, or a *Report listing every spec parse rejected.
func Validate[T any](d apis.Domain, specs []spec.Spec, parse func(spec.Spec) (T, error)) ([]T, error) {
	r := &Report{Domain: d}
	out := make([]T, 0, len(specs))
	for _, s := range specs {
		v, err := parse(s)
		if err != nil {
			r.Invalid = append(r.Invalid, Invalid{ID: s.ID, Err: err})
			continue
		}
		out = append(out, v)
	}
	if !r.Empty() {
		return nil, r
	}
	return out, nil
}

// Merge combines the reports of one domain into a single report. Nil
// errors are skipped and an error that is not a *Report is returned as is.
// Merge returns nil when every error is nil.
func Merge(errs ...error) error {
	var out *Report
	for _, err := range errs {
		if err == nil {
			continue
		}
		var r *Report
		if !errors.As(err, &r) {
			return err
		}
		if out == nil {
			out = &Report{Domain: r.Domain}
		}
		out.DuplicateHandlers = append(out.DuplicateHandlers, r.DuplicateHandlers...)
		out.DuplicateSpecs = append(out.DuplicateSpecs, r.DuplicateSpecs...)
		out.MissingHandlers = append(out.MissingHandlers, r.MissingHandlers...)
		out.MissingSpecs = append(out.MissingSpecs, r.MissingSpecs...)
		out.Invalid = append(out.Invalid, r.Invalid...)
	}
	if out == nil {
		return nil
	}
	out.sort()
	return out
}

func (r *Report) sort() {
	sort.Strings(r.DuplicateHandlers)
	sort.Strings(r.DuplicateSpecs)
	sort.Strings(r.MissingHandlers)
	sort.Strings(r.MissingSpecs)
}
