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

package builder_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/config"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/link"
	"dirpx.dev/defx/spec"
)

func meta(id string, keys ...string) spec.Meta {
	return spec.Meta{ID: id, Keys: keys, Source: apis.SourceModule}
}

func blob(t *testing.T, name string, d apis.Domain, metas ...spec.Meta) builder.Source {
	t.Helper()
	specs := make([]spec.Spec, len(metas))
	for i, m := range metas {
		specs[i] = spec.Spec{Meta: m}
	}
	data, err := spec.Encode(d, specs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return builder.Source{Name: name, Domain: d, Data: data}
}

type handler string

func (h handler) CanonicalName() string { return string(h) }

// linker pairs specs with handlers and turns each pair into an input whose
// payload is the handler name.
func linker(handlers ...handler) func([]spec.Spec) ([]index.Input[string], error) {
	return func(specs []spec.Spec) ([]index.Input[string], error) {
		pairs, err := link.ByName(apis.DomainCommands, specs, handlers)
		if err != nil {
			return nil, err
		}
		out := make([]index.Input[string], len(pairs))
		for i, p := range pairs {
			out[i] = index.Def[string]{Meta: p.Spec.Meta}
		}
		return out, nil
	}
}

func TestLoad_KeepsSourceOrder(t *testing.T) {
	specs, err := builder.Load(context.Background(),
		blob(t, "a.bin", apis.DomainCommands, meta("a1"), meta("a2")),
		blob(t, "b.bin", apis.DomainCommands, meta("b1")),
		blob(t, "c.bin", apis.DomainCommands),
		blob(t, "d.bin", apis.DomainCommands, meta("d1")),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"a1", "a2", "b1", "d1"}, ids); diff != "" {
		t.Fatalf("Load order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FirstErrorWins(t *testing.T) {
	good := blob(t, "good.bin", apis.DomainCommands, meta("a"))
	wrong := blob(t, "wrong.bin", apis.DomainOptions, meta("b"))
	wrong.Domain = apis.DomainCommands

	_, err := builder.Load(context.Background(), good, wrong)
	if !errors.Is(err, spec.ErrDomain) {
		t.Fatalf("err = %v, want ErrDomain", err)
	}
	var de *spec.DecodeError
	if !errors.As(err, &de) || de.Blob != "wrong.bin" {
		t.Fatalf("err = %v, want DecodeError naming wrong.bin", err)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := builder.Load(ctx, blob(t, "a.bin", apis.DomainCommands, meta("a"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuild_Pipeline(t *testing.T) {
	d := builder.Domain[string]{
		Domain: apis.DomainCommands,
		Sources: []builder.Source{
			{Name: "commands.bin", Data: blob(t, "", apis.DomainCommands, meta("write", "w"), meta("quit", "q")).Data},
		},
		Builtins: []index.Input[string]{
			index.Def[string]{Meta: spec.Meta{ID: "quit", Keys: []string{"exit"}}},
		},
		Link: linker("write", "quit"),
	}

	reg, err := builder.Build(context.Background(), d, config.DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Domain() != apis.DomainCommands {
		t.Fatalf("Domain() = %v", reg.Domain())
	}
	if n := reg.Snapshot().Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
	// The module spec outranks the builtin of the same ID.
	if h, ok := reg.Resolve("q"); !ok || h.Canonical() != "quit" || h.Party().Source != apis.SourceModule {
		t.Fatalf("Resolve(q) = %+v, %v", h.Info(), ok)
	}
	if _, ok := reg.Resolve("exit"); ok {
		t.Fatal("replaced builtin alias still bound")
	}
}

func TestBuild_LinkReport(t *testing.T) {
	d := builder.Domain[string]{
		Domain:  apis.DomainCommands,
		Sources: []builder.Source{blob(t, "commands.bin", apis.DomainCommands, meta("write"), meta("orphan"))},
		Link:    linker("write", "ghost"),
	}
	_, err := builder.Build(context.Background(), d, config.DefaultConfig())
	var rep *link.Report
	if !errors.As(err, &rep) {
		t.Fatalf("err = %v, want *link.Report", err)
	}
	if diff := cmp.Diff([]string{"orphan"}, rep.MissingHandlers); diff != "" {
		t.Fatalf("MissingHandlers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ghost"}, rep.MissingSpecs); diff != "" {
		t.Fatalf("MissingSpecs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NoLinker(t *testing.T) {
	d := builder.Domain[string]{
		Domain:  apis.DomainCommands,
		Sources: []builder.Source{blob(t, "commands.bin", apis.DomainCommands, meta("write"))},
	}
	if _, err := builder.Build(context.Background(), d, config.DefaultConfig()); !errors.Is(err, builder.ErrNoLinker) {
		t.Fatalf("err = %v, want ErrNoLinker", err)
	}
}

func TestReadSource(t *testing.T) {
	src := blob(t, "", apis.DomainCommands, meta("write"))
	path := filepath.Join(t.TempDir(), "commands.bin")
	if err := os.WriteFile(path, src.Data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := builder.ReadSource(apis.DomainCommands, path)
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if got.Name != "commands.bin" || got.Domain != apis.DomainCommands {
		t.Fatalf("ReadSource = %+v", got)
	}
	if _, err := builder.ReadSource(apis.DomainCommands, filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("ReadSource(missing): expected error")
	}
}
