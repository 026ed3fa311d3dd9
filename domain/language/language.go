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

// Package language is the language domain. Languages are spec-only; their
// file extensions and well-known file names are bound as secondary keys,
// so detecting a file's language is an ordinary registry lookup.
package language

import (
	"fmt"
	"path/filepath"
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

// Payload field names in language specs.
const (
	FieldExtensions = "extensions"
	FieldFilenames  = "filenames"
	FieldComment    = "comment"
	FieldScope      = "scope"
)

// Payload is the language entry payload.
type Payload struct {
	// Comment is the line comment token.
	Comment symbol.Symbol
	// Scope is the grammar scope name.
	Scope symbol.Symbol
}

// Registry is the language registry.
type Registry = registry.Registry[Payload]

// Input is one language definition fed to the registry.
type Input = index.Input[Payload]

// Decl is a parsed language declaration.
type Decl struct {
	Meta       spec.Meta
	Extensions []string
	Filenames  []string
	Comment    string
	Scope      string
}

func list(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Parse validates a language spec. Extensions are normalized to carry a
// leading dot.
func Parse(s spec.Spec) (Decl, error) {
	d := Decl{
		Meta:      s.Meta,
		Filenames: list(s.FieldOr(FieldFilenames, "")),
		Comment:   s.FieldOr(FieldComment, ""),
		Scope:     s.FieldOr(FieldScope, ""),
	}
	for _, ext := range list(s.FieldOr(FieldExtensions, "")) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == "." {
			return d, fmt.Errorf("defx(language): empty extension")
		}
		d.Extensions = append(d.Extensions, ext)
	}
	for _, f := range d.Filenames {
		if strings.ContainsRune(f, '/') {
			return d, fmt.Errorf("defx(language): file name %q contains a path separator", f)
		}
	}
	return d, nil
}

// Declare returns the input of a declaration.
func Declare(d Decl) Input {
	meta := d.Meta
	keys := make([]string, 0, len(meta.Keys)+len(d.Extensions)+len(d.Filenames))
	keys = append(keys, meta.Keys...)
	keys = append(keys, d.Extensions...)
	meta.Keys = append(keys, d.Filenames...)
	return index.Def[Payload]{
		Meta:    meta,
		Strings: []string{d.Comment, d.Scope},
		Payload: func(x *buildctx.Context) (Payload, error) {
			return Payload{Comment: x.Sym(d.Comment), Scope: x.Sym(d.Scope)}, nil
		},
	}
}

// Link validates every language spec and reports all invalid ones together.
func Link(specs []spec.Spec) ([]Input, error) {
	decls, err := link.Validate(apis.DomainLanguages, specs, Parse)
	if err != nil {
		return nil, err
	}
	out := make([]Input, len(decls))
	for i, d := range decls {
		out[i] = Declare(d)
	}
	return out, nil
}

// Domain describes the language domain for the startup builder.
func Domain(sources []builder.Source, builtins []Input) builder.Domain[Payload] {
	return builder.Domain[Payload]{
		Domain:   apis.DomainLanguages,
		Sources:  sources,
		Builtins: builtins,
		Link:     Link,
	}
}

// Detect returns the language of the file at path: its base name is tried
// first, then its extension.
func Detect(reg *Registry, path string) (registry.Handle[Payload], bool) {
	snap := reg.Snapshot()
	base := filepath.Base(path)
	if h, ok := snap.Lookup(base); ok && h.Stage() == apis.StageAlias {
		return h, true
	}
	if ext := filepath.Ext(base); ext != "" {
		return snap.Lookup(ext)
	}
	return registry.Handle[Payload]{}, false
}

// Comment returns the line comment token of the language h refers to.
func Comment(h registry.Handle[Payload]) string {
	return h.Snapshot().String(h.Payload().Comment)
}

// Scope returns the grammar scope of the language h refers to.
func Scope(h registry.Handle[Payload]) string {
	return h.Snapshot().String(h.Payload().Scope)
}
