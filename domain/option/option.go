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

// Package option is the editor option domain. Options are spec-only: they
// have no handler, only a typed value with a default and a scope.
//
// Option specs carry these payload fields:
//
//	type     bool | int | string | enum (default string)
//	default  default value, parsed according to type
//	values   comma-separated members, required for enum
//	scope    global | buffer (default global)
//	key      configuration-file key, bound as an extra alias
package option

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/link"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
	"dirpx.dev/defx/symbol"
)

// Payload field names in option specs.
const (
	FieldType    = "type"
	FieldDefault = "default"
	FieldValues  = "values"
	FieldScope   = "scope"
	FieldKey     = "key"
)

// ErrValue is returned for a value that does not fit an option's type.
var ErrValue = errors.New("defx(option): invalid value")

// Type is the value type of an option.
type Type uint8

const (
	String Type = iota
	Bool
	Int
	Enum
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Enum:
		return "enum"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return String, nil
	case "bool":
		return Bool, nil
	case "int":
		return Int, nil
	case "enum":
		return Enum, nil
	default:
		return String, fmt.Errorf("defx(option): unknown type %q", s)
	}
}

// Scope says where an option's value lives.
type Scope uint8

const (
	Global Scope = iota
	Buffer
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Buffer:
		return "buffer"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// ParseScope parses the textual form produced by Scope.String.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "":
		return Global, nil
	case "buffer":
		return Buffer, nil
	default:
		return Global, fmt.Errorf("defx(option): unknown scope %q", s)
	}
}

// Value is a typed option value.
type Value struct {
	Type Type
	Bool bool
	Int  int64
	// Str holds String and Enum values.
	Str string
}

func (v Value) String() string {
	switch v.Type {
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Int:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Str
	}
}

// Payload is the option entry payload.
type Payload struct {
	Type    Type
	Scope   Scope
	Default Value
	// Members are the allowed values of an Enum option.
	Members []symbol.Symbol
}

// Registry is the option registry.
type Registry = registry.Registry[Payload]

// Input is one option definition fed to the registry.
type Input = index.Input[Payload]

// Decl is a parsed option declaration.
type Decl struct {
	Meta    spec.Meta
	Type    Type
	Scope   Scope
	Default Value
	Members []string
}

// parse converts raw according to t; members restrict Enum values.
func parse(t Type, members []string, raw string) (Value, error) {
	v := Value{Type: t}
	switch t {
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return v, fmt.Errorf("%w: %q is not a bool", ErrValue, raw)
		}
		v.Bool = b
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return v, fmt.Errorf("%w: %q is not an int", ErrValue, raw)
		}
		v.Int = n
	case Enum:
		for _, m := range members {
			if m == raw {
				v.Str = raw
				return v, nil
			}
		}
		return v, fmt.Errorf("%w: %q is not one of %s", ErrValue, raw, strings.Join(members, ", "))
	default:
		v.Str = raw
	}
	return v, nil
}

// Parse validates an option spec.
func Parse(s spec.Spec) (Decl, error) {
	d := Decl{Meta: s.Meta}
	var err error
	if d.Type, err = ParseType(s.FieldOr(FieldType, "")); err != nil {
		return d, err
	}
	if d.Scope, err = ParseScope(s.FieldOr(FieldScope, "")); err != nil {
		return d, err
	}
	if raw := s.FieldOr(FieldValues, ""); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				d.Members = append(d.Members, m)
			}
		}
	}
	if d.Type == Enum && len(d.Members) == 0 {
		return d, fmt.Errorf("defx(option): enum without %s", FieldValues)
	}
	if d.Type != Enum && len(d.Members) > 0 {
		return d, fmt.Errorf("defx(option): %s on a %s option", FieldValues, d.Type)
	}

	raw, ok := s.Field(FieldDefault)
	switch {
	case ok:
		if d.Default, err = parse(d.Type, d.Members, raw); err != nil {
			return d, fmt.Errorf("default: %w", err)
		}
	case d.Type == Enum:
		d.Default = Value{Type: Enum, Str: d.Members[0]}
	default:
		d.Default = Value{Type: d.Type}
	}

	if key := s.FieldOr(FieldKey, ""); key != "" {
		d.Meta.Keys = append(append([]string(nil), d.Meta.Keys...), key)
	}
	return d, nil
}

// Declare returns the input of a declaration.
func Declare(d Decl) Input {
	strs := append([]string{d.Default.Str}, d.Members...)
	return index.Def[Payload]{
		Meta:    d.Meta,
		Strings: strs,
		Payload: func(x *buildctx.Context) (Payload, error) {
			return Payload{Type: d.Type, Scope: d.Scope, Default: d.Default, Members: x.Syms(d.Members)}, nil
		},
	}
}

// Link validates every option spec and reports all invalid ones together.
func Link(specs []spec.Spec) ([]Input, error) {
	decls, err := link.Validate(apis.DomainOptions, specs, Parse)
	if err != nil {
		return nil, err
	}
	out := make([]Input, len(decls))
	for i, d := range decls {
		out[i] = Declare(d)
	}
	return out, nil
}

// Domain describes the option domain for the startup builder.
func Domain(sources []builder.Source, builtins []Input) builder.Domain[Payload] {
	return builder.Domain[Payload]{
		Domain:   apis.DomainOptions,
		Sources:  sources,
		Builtins: builtins,
		Link:     Link,
	}
}

// Members returns the allowed values of the enum option h refers to.
func Members(h registry.Handle[Payload]) []string {
	ms := h.Payload().Members
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = h.Snapshot().String(m)
	}
	return out
}

// Check parses raw as a value of the option h refers to.
func Check(h registry.Handle[Payload], raw string) (Value, error) {
	v, err := parse(h.Payload().Type, Members(h), raw)
	if err != nil {
		return v, fmt.Errorf("defx(option): %s: %w", h.Canonical(), err)
	}
	return v, nil
}
