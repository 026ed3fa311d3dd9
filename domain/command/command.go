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

// Package command is the ex-command domain: named commands typed at the
// command line, each bound to a handler and an argument arity.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/link"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
	"dirpx.dev/defx/symbol"
)

// Payload field names in command specs.
const (
	FieldUsage   = "usage"
	FieldMinArgs = "min_args"
	FieldMaxArgs = "max_args"
)

// Unbounded is the MaxArgs of a command that takes any number of arguments.
const Unbounded = -1

var (
	// ErrArgs is returned when a command is invoked with the wrong number
	// of arguments.
	ErrArgs = errors.New("defx(command): wrong number of arguments")
	// ErrUnknown is returned by Run for a key that resolves to nothing.
	ErrUnknown = errors.New("defx(command): unknown command")
)

// Fn runs a command.
type Fn func(ctx context.Context, args []string) error

// Handler is the code side of a command, linked to its spec by name.
type Handler struct {
	Name string
	Fn   Fn
}

// CanonicalName returns the handler's name.
func (h Handler) CanonicalName() string { return h.Name }

// Payload is the command entry payload.
type Payload struct {
	Fn      Fn
	Usage   symbol.Symbol
	MinArgs int
	MaxArgs int
}

// CheckArgs reports whether n arguments fit the command's arity.
func (p Payload) CheckArgs(n int) error {
	if n < p.MinArgs || (p.MaxArgs != Unbounded && n > p.MaxArgs) {
		max := "∞"
		if p.MaxArgs != Unbounded {
			max = strconv.Itoa(p.MaxArgs)
		}
		return fmt.Errorf("%w: got %d, want %d..%s", ErrArgs, n, p.MinArgs, max)
	}
	return nil
}

// Registry is the command registry.
type Registry = registry.Registry[Payload]

// Input is one command definition fed to the registry.
type Input = index.Input[Payload]

// Arity is the argument range of a command.
type Arity struct {
	Min, Max int
}

// Builtin returns the input of a command defined in code.
func Builtin(meta spec.Meta, usage string, arity Arity, fn Fn) index.Input[Payload] {
	return input(meta, usage, arity, fn)
}

func input(meta spec.Meta, usage string, arity Arity, fn Fn) index.Input[Payload] {
	return index.Def[Payload]{
		Meta:    meta,
		Strings: []string{usage},
		Payload: func(x *buildctx.Context) (Payload, error) {
			return Payload{Fn: fn, Usage: x.Sym(usage), MinArgs: arity.Min, MaxArgs: arity.Max}, nil
		},
	}
}

// ParseArity reads the min_args and max_args fields of s. Missing fields
// mean zero minimum and no maximum.
func ParseArity(s spec.Spec) (Arity, error) {
	a := Arity{Min: 0, Max: Unbounded}
	if v, ok := s.Field(FieldMinArgs); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return a, fmt.Errorf("%s %q: not a non-negative integer", FieldMinArgs, v)
		}
		a.Min = n
	}
	if v, ok := s.Field(FieldMaxArgs); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < Unbounded {
			return a, fmt.Errorf("%s %q: not an integer >= -1", FieldMaxArgs, v)
		}
		a.Max = n
	}
	if a.Max != Unbounded && a.Max < a.Min {
		return a, fmt.Errorf("%s %d below %s %d", FieldMaxArgs, a.Max, FieldMinArgs, a.Min)
	}
	return a, nil
}

// Link pairs command specs with handlers one to one and validates every
// spec's arity. Both kinds of failure are reported together.
func Link(specs []spec.Spec, handlers []Handler) ([]index.Input[Payload], error) {
	arities, verr := link.Validate(apis.DomainCommands, specs, ParseArity)
	pairs, lerr := link.ByName(apis.DomainCommands, specs, handlers)
	if err := link.Merge(lerr, verr); err != nil {
		return nil, err
	}
	out := make([]index.Input[Payload], len(pairs))
	for i, p := range pairs {
		out[i] = input(p.Spec.Meta, p.Spec.FieldOr(FieldUsage, ""), arities[i], p.Handler.Fn)
	}
	return out, nil
}

// Domain describes the command domain for the startup builder.
func Domain(sources []builder.Source, builtins []index.Input[Payload], handlers []Handler) builder.Domain[Payload] {
	return builder.Domain[Payload]{
		Domain:   apis.DomainCommands,
		Sources:  sources,
		Builtins: builtins,
		Link: func(specs []spec.Spec) ([]index.Input[Payload], error) {
			return Link(specs, handlers)
		},
	}
}

// Usage returns the usage string of the command h refers to.
func Usage(h registry.Handle[Payload]) string {
	return h.Snapshot().String(h.Payload().Usage)
}

// Run resolves key and runs the command with args after checking arity.
func Run(ctx context.Context, reg *Registry, key string, args []string) error {
	h, ok := reg.Resolve(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknown, key)
	}
	p := h.Payload()
	if err := p.CheckArgs(len(args)); err != nil {
		return fmt.Errorf("defx(command): %s: %w", h.Canonical(), err)
	}
	if p.Fn == nil {
		return nil
	}
	return p.Fn(ctx, args)
}
