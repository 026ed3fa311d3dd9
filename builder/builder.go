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

// Package builder runs the startup pipeline of one domain: decode the
// domain's blobs, link the decoded specs to their handlers, and build the
// initial registry over built-in and linked inputs.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	golog "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
)

var log = golog.Logger("defx/builder")

// ErrNoLinker is returned when a domain has specs but no Link function.
var ErrNoLinker = errors.New("defx(builder): specs present but domain has no linker")

// Source is one compiled definition blob.
type Source struct {
	// Name labels the blob in errors, usually its file name.
	Name string
	// Domain is the domain the blob must declare. Zero means "the domain
	// being built".
	Domain apis.Domain
	Data   []byte
}

// ReadSource reads a blob file.
func ReadSource(d apis.Domain, path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("defx(builder): %w", err)
	}
	return Source{Name: filepath.Base(path), Domain: d, Data: data}, nil
}

// Domain describes how to build one domain registry.
type Domain[P any] struct {
	Domain apis.Domain
	// Sources are the domain's compiled blobs.
	Sources []Source
	// Builtins are inputs defined in code, ingested before linked specs.
	Builtins []index.Input[P]
	// Link turns decoded specs into inputs, failing with an aggregate
	// report when specs and handlers do not match.
	Link func(specs []spec.Spec) ([]index.Input[P], error)
}

// Load decodes sources concurrently. The result keeps source order; the
// first decode error cancels the rest and is returned.
func Load(ctx context.Context, sources ...Source) ([]spec.Spec, error) {
	out := make([][]spec.Spec, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			specs, err := spec.Decode(src.Name, src.Domain, src.Data)
			if err != nil {
				return err
			}
			out[i] = specs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, s := range out {
		n += len(s)
	}
	flat := make([]spec.Spec, 0, n)
	for _, s := range out {
		flat = append(flat, s...)
	}
	return flat, nil
}

// Build runs the pipeline for d and returns the domain's registry.
func Build[P any](ctx context.Context, d Domain[P], cfg apis.Config, opts ...registry.Option) (*registry.Registry[P], error) {
	sources := make([]Source, len(d.Sources))
	for i, src := range d.Sources {
		if src.Domain == apis.DomainUnknown {
			src.Domain = d.Domain
		}
		sources[i] = src
	}
	specs, err := Load(ctx, sources...)
	if err != nil {
		return nil, err
	}

	inputs := make([]index.Input[P], 0, len(d.Builtins)+len(specs))
	inputs = append(inputs, d.Builtins...)
	if len(specs) > 0 {
		if d.Link == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoLinker, d.Domain)
		}
		linked, err := d.Link(specs)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, linked...)
	}

	reg, err := registry.New(d.Domain, cfg, inputs, opts...)
	if err != nil {
		return nil, err
	}
	log.Debugw("domain built", "domain", d.Domain, "blobs", len(sources), "specs", len(specs),
		"builtins", len(d.Builtins), "entries", reg.Snapshot().Len())
	return reg, nil
}
