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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
)

// blob is one definition file read from disk with its validated header.
type blob struct {
	path   string
	header spec.Header
	source builder.Source
}

func readBlob(path string) (blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return blob{}, err
	}
	name := filepath.Base(path)
	h, err := spec.ReadHeader(name, data)
	if err != nil {
		return blob{}, err
	}
	if !h.Domain.Valid() {
		return blob{}, &spec.DecodeError{Blob: name, Domain: h.Domain, Err: spec.ErrDomain,
			Detail: fmt.Sprintf("unknown domain tag %d", uint8(h.Domain))}
	}
	return blob{
		path:   path,
		header: h,
		source: builder.Source{Name: name, Domain: h.Domain, Data: data},
	}, nil
}

// domainSet is the specs of one domain gathered from several blobs.
type domainSet struct {
	domain apis.Domain
	specs  []spec.Spec
}

// loadDomains reads every path, groups blobs by the domain in their
// header and decodes each group. Groups follow apis.Domains order and blob
// order is kept within a group.
func loadDomains(ctx context.Context, paths []string) ([]domainSet, error) {
	byDomain := make(map[apis.Domain][]builder.Source)
	for _, p := range paths {
		b, err := readBlob(p)
		if err != nil {
			return nil, err
		}
		byDomain[b.header.Domain] = append(byDomain[b.header.Domain], b.source)
	}

	var out []domainSet
	for _, d := range apis.Domains {
		sources, ok := byDomain[d]
		if !ok {
			continue
		}
		specs, err := builder.Load(ctx, sources...)
		if err != nil {
			return nil, err
		}
		out = append(out, domainSet{domain: d, specs: specs})
	}
	return out, nil
}

// specInputs wraps decoded specs as inputs whose payload is the spec
// itself, so any domain can be indexed without its compiled handlers.
func specInputs(specs []spec.Spec) []index.Input[spec.Spec] {
	out := make([]index.Input[spec.Spec], len(specs))
	for i, s := range specs {
		s := s
		out[i] = index.Def[spec.Spec]{
			Meta:    s.Meta,
			Payload: func(*buildctx.Context) (spec.Spec, error) { return s, nil },
		}
	}
	return out
}

// buildRegistry indexes one domain's specs under cfg.
func buildRegistry(cfg apis.Config, set domainSet) (*registry.Registry[spec.Spec], error) {
	r, err := registry.New[spec.Spec](set.domain, cfg, specInputs(set.specs))
	if err != nil {
		return nil, fmt.Errorf("domain %s: %w", set.domain, err)
	}
	return r, nil
}
