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

// Package action is the editor action domain: operations bound to keys
// and menus, each implemented by a compiled-in handler.
package action

import (
	"context"
	"errors"
	"fmt"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/link"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
	"dirpx.dev/defx/symbol"
)

// FieldCategory is the optional payload field grouping actions in menus
// and pickers.
const FieldCategory = "category"

// ErrUnknown is returned by Invoke for a key that resolves to nothing.
var ErrUnknown = errors.New("defx(action): unknown action")

// Args carries the invocation context of an action.
type Args struct {
	// Count is the numeric prefix typed before the action, or zero.
	Count int
	// Params are extra positional parameters.
	Params []string
}

// Fn implements an action.
type Fn func(ctx context.Context, args Args) error

// Handler is the code side of an action, linked to its spec by name.
type Handler struct {
	Name string
	Fn   Fn
}

// CanonicalName returns the handler's name.
func (h Handler) CanonicalName() string { return h.Name }

// Payload is the action entry payload.
type Payload struct {
	Fn       Fn
	Category symbol.Symbol
}

// Registry is the action registry.
type Registry = registry.Registry[Payload]

// Input is one action definition fed to the registry.
type Input = index.Input[Payload]

// Builtin returns the input of an action defined in code.
func Builtin(meta spec.Meta, category string, fn Fn) Input {
	return index.Def[Payload]{
		Meta:    meta,
		Strings: []string{category},
		Payload: func(x *buildctx.Context) (Payload, error) {
			return Payload{Fn: fn, Category: x.Sym(category)}, nil
		},
	}
}

// Link pairs action specs with handlers one to one.
func Link(specs []spec.Spec, handlers []Handler) ([]Input, error) {
	pairs, err := link.ByName(apis.DomainActions, specs, handlers)
	if err != nil {
		return nil, err
	}
	out := make([]Input, len(pairs))
	for i, p := range pairs {
		out[i] = Builtin(p.Spec.Meta, p.Spec.FieldOr(FieldCategory, ""), p.Handler.Fn)
	}
	return out, nil
}

// Domain describes the action domain for the startup builder.
func Domain(sources []builder.Source, builtins []Input, handlers []Handler) builder.Domain[Payload] {
	return builder.Domain[Payload]{
		Domain:   apis.DomainActions,
		Sources:  sources,
		Builtins: builtins,
		Link: func(specs []spec.Spec) ([]Input, error) {
			return Link(specs, handlers)
		},
	}
}

// Category returns the category of the action h refers to.
func Category(h registry.Handle[Payload]) string {
	return h.Snapshot().String(h.Payload().Category)
}

// InCategory returns the live actions of snap in category, in ID order.
func InCategory(snap *registry.Snapshot[Payload], category string) []registry.Handle[Payload] {
	sym, ok := snap.Symbols().Lookup(category)
	if !ok {
		return nil
	}
	var out []registry.Handle[Payload]
	for _, h := range snap.Entries() {
		if h.Payload().Category == sym {
			out = append(out, h)
		}
	}
	return out
}

// Invoke resolves key and runs the action.
func Invoke(ctx context.Context, reg *Registry, key string, args Args) error {
	h, ok := reg.Resolve(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, key)
	}
	if fn := h.Payload().Fn; fn != nil {
		return fn(ctx, args)
	}
	return nil
}
