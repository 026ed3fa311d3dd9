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

// Package registry publishes per-domain snapshots and accepts runtime
// registrations.
//
// Readers load the current Snapshot with one atomic pointer load and
// never block. Writers derive a successor snapshot from the current one
// (an incremental index extension) and publish it with compare-and-swap.
// A writer that loses the race MaxRetries times falls back to a
// writer-only mutex, so retries stay bounded. Readers never touch it.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"
	golog "github.com/ipfs/go-log/v2"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/config"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/resolver"
)

var log = golog.Logger("defx/registry")

var (
	// ErrLostPrecedence is returned when a registration loses its
	// canonical conflict. The current snapshot is unchanged.
	ErrLostPrecedence = errors.New("defx(registry): registration lost precedence")
	// ErrDuplicate is returned for a duplicate canonical ID under
	// apis.PanicOnDuplicate.
	ErrDuplicate = index.ErrDuplicate
	// ErrBuild is returned when an entry cannot be constructed.
	ErrBuild = errors.New("defx(registry): entry build failed")
	// ErrFrozen is returned by writes to a frozen registry.
	ErrFrozen = errors.New("defx(registry): registry is frozen")
	// ErrLayerExists is returned when a layer ID is loaded twice.
	ErrLayerExists = errors.New("defx(registry): layer already loaded")
	// ErrUnknownLayer is returned when unloading a layer that is not loaded.
	ErrUnknownLayer = errors.New("defx(registry): unknown layer")
)

// RegistrationError describes a refused registration.
type RegistrationError struct {
	Domain apis.Domain
	// Canonical is the canonical ID of the refused input, when known.
	Canonical string
	// Collision is the recorded canonical collision, if any.
	Collision *apis.Collision
	// Err is one of ErrLostPrecedence, ErrDuplicate or ErrBuild.
	Err error
	// Cause is the underlying build error for ErrBuild.
	Cause error
}

func (e *RegistrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "defx(registry): %s", e.Domain)
	if e.Canonical != "" {
		fmt.Fprintf(&b, " %q", e.Canonical)
	}
	b.WriteString(": ")
	b.WriteString(strings.TrimPrefix(e.Err.Error(), "defx(registry): "))
	if e.Collision != nil {
		fmt.Fprintf(&b, " (%s)", e.Collision.Winner())
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the sentinel and the cause.
func (e *RegistrationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	chain resolver.Chain
}

// WithChain sets the lookup stage chain. The default is
// canonical → name → alias.
func WithChain(c resolver.Chain) Option {
	return func(o *options) { o.chain = c }
}

// Registry holds the current snapshot of one domain.
type Registry[P any] struct {
	domain  apis.Domain
	cfg     apis.Config
	cur     atomic.Pointer[Snapshot[P]]
	frozen  atomic.Bool
	writeMu sync.Mutex

	rejectedMu sync.Mutex
	rejected   []apis.Collision
}

var _ apis.Registry = (*Registry[struct{}])(nil)

// New builds the initial snapshot from inputs and returns a registry
// publishing it. The inputs belong to the nil layer.
func New[P any](domain apis.Domain, cfg apis.Config, inputs []index.Input[P], opts ...Option) (*Registry[P], error) {
	cfg = config.Normalize(cfg)
	o := options{chain: resolver.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ix, syms, err := index.Build(inputs, cfg)
	if err != nil {
		return nil, fmt.Errorf("defx(registry): build %s: %w", domain, err)
	}
	l := immutable.NewListBuilder[record[P]]()
	for i, in := range inputs {
		l.Append(record[P]{input: in, ordinal: uint64(i)})
	}

	r := &Registry[P]{domain: domain, cfg: cfg}
	r.cur.Store(&Snapshot[P]{
		domain: domain,
		gen:    1,
		ix:     ix,
		syms:   syms,
		chain:  o.chain,
		log:    l.List(),
	})
	for _, c := range ix.Collisions() {
		log.Debugw("collision", "domain", domain, "collision", c.String())
	}
	log.Infow("registry built", "domain", domain, "entries", ix.Len(), "collisions", len(ix.Collisions()))
	return r, nil
}

// Snapshot returns the current snapshot.
func (r *Registry[P]) Snapshot() *Snapshot[P] { return r.cur.Load() }

// Resolve looks key up in the current snapshot. The returned handle pins
// that snapshot.
func (r *Registry[P]) Resolve(key string) (Handle[P], bool) {
	return r.cur.Load().Lookup(key)
}

// Domain returns the registry's domain.
func (r *Registry[P]) Domain() apis.Domain { return r.domain }

// Generation returns the generation of the current snapshot.
func (r *Registry[P]) Generation() uint64 { return r.cur.Load().gen }

// Config returns the registry's configuration.
func (r *Registry[P]) Config() apis.Config { return r.cfg }

// Lookup resolves key and describes the match in plain strings.
func (r *Registry[P]) Lookup(key string) (apis.Info, bool) {
	h, ok := r.Resolve(key)
	if !ok {
		return apis.Info{}, false
	}
	return h.Info(), true
}

// List describes every live entry of the current snapshot in ID order.
func (r *Registry[P]) List() []apis.Info {
	hs := r.cur.Load().Entries()
	out := make([]apis.Info, len(hs))
	for i, h := range hs {
		out[i] = h.Info()
	}
	return out
}

// Collisions returns the current snapshot's collision log followed by the
// collisions of refused runtime registrations.
func (r *Registry[P]) Collisions() []apis.Collision {
	out := r.cur.Load().Collisions()
	r.rejectedMu.Lock()
	defer r.rejectedMu.Unlock()
	return append(out, r.rejected...)
}

// Freeze refuses every later write. Startup code calls it once all
// definitions are in, when plugins are not supported.
func (r *Registry[P]) Freeze() {
	r.frozen.Store(true)
	log.Debugw("registry frozen", "domain", r.domain, "generation", r.Generation())
}

// Frozen reports whether Freeze was called.
func (r *Registry[P]) Frozen() bool { return r.frozen.Load() }

// Register ingests one input into the nil layer and publishes the
// resulting snapshot. It returns a handle to the new entry, pinned to the
// published snapshot. The cost is proportional to the input's keys, not
// to the size of the registry.
//
// An input that loses its canonical conflict is refused with a
// *RegistrationError; the current snapshot stays as it was.
func (r *Registry[P]) Register(in index.Input[P]) (Handle[P], error) {
	var id apis.ID
	next, err := r.publish(func(cur *Snapshot[P]) (*Snapshot[P], error) {
		ix, syms, deltas, err := index.Extend(cur.ix, cur.syms, []index.Input[P]{in}, r.cfg)
		if err != nil {
			return nil, r.refusal(err)
		}
		d := deltas[0]
		if d.Change == index.Lost {
			return nil, &RegistrationError{Domain: r.domain, Canonical: d.Collision.Key, Collision: d.Collision, Err: ErrLostPrecedence}
		}
		id = d.ID
		rec := record[P]{input: in, ordinal: cur.ix.NextOrdinal()}
		return cur.derive(ix, syms, cur.log.Append(rec), cur.layers), nil
	})
	if err != nil {
		return Handle[P]{}, err
	}
	e, _ := next.ix.Entry(id)
	h := Handle[P]{snap: next, entry: e, stage: apis.StageCanonical}
	log.Debugw("registered", "domain", r.domain, "canonical", h.Canonical(), "generation", next.gen)
	return h, nil
}

// RegisterLayer ingests inputs as one layer, atomically. Inputs that lose
// a canonical conflict are kept out of the bindings and recorded in the
// collision log, as in a startup build. A zero layer ID is replaced with
// a fresh one; the loaded layer is returned.
func (r *Registry[P]) RegisterLayer(layer Layer, inputs ...index.Input[P]) (Layer, error) {
	if layer.ID == uuid.Nil {
		layer.ID = uuid.New()
	}
	_, err := r.publish(func(cur *Snapshot[P]) (*Snapshot[P], error) {
		if _, ok := cur.layer(layer.ID); ok {
			return nil, fmt.Errorf("%w: %s", ErrLayerExists, layer.ID)
		}
		ix, syms, deltas, err := index.Extend(cur.ix, cur.syms, inputs, r.cfg)
		if err != nil {
			return nil, r.refusal(err)
		}
		recs := cur.log
		base := cur.ix.NextOrdinal()
		for i, in := range inputs {
			recs = recs.Append(record[P]{input: in, ordinal: base + uint64(i), layer: layer.ID})
		}
		for _, d := range deltas {
			if d.Change == index.Lost {
				log.Warnw("layer input lost precedence", "domain", r.domain, "layer", layer.Name, "collision", d.Collision.String())
			}
		}
		layers := append(cur.Layers(), layer)
		return cur.derive(ix, syms, recs, layers), nil
	})
	if err != nil {
		return Layer{}, err
	}
	log.Infow("layer loaded", "domain", r.domain, "layer", layer.Name, "id", layer.ID, "inputs", len(inputs))
	return layer, nil
}

// Unload removes a layer and publishes a snapshot rebuilt from the
// remaining ingest log. Remaining inputs keep their original ordinals, so
// their relative precedence is unchanged. Collisions recorded while the
// layer was loaded stay in the log. Handles into earlier snapshots stay
// valid.
func (r *Registry[P]) Unload(id uuid.UUID) error {
	_, err := r.publish(func(cur *Snapshot[P]) (*Snapshot[P], error) {
		if _, ok := cur.layer(id); !ok || id == uuid.Nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, id)
		}
		var (
			inputs []index.Input[P]
			ords   []uint64
		)
		kept := immutable.NewListBuilder[record[P]]()
		itr := cur.log.Iterator()
		for !itr.Done() {
			_, rec := itr.Next()
			if rec.layer == id {
				continue
			}
			inputs = append(inputs, rec.input)
			ords = append(ords, rec.ordinal)
			kept.Append(rec)
		}
		ix, syms, err := index.Replay(inputs, ords, cur.ix.NextOrdinal(), r.cfg)
		if err != nil {
			return nil, fmt.Errorf("defx(registry): unload %s: %w", id, err)
		}
		layers := make([]Layer, 0, len(cur.layers))
		for _, l := range cur.layers {
			if l.ID != id {
				layers = append(layers, l)
			}
		}
		next := cur.derive(ix, syms, kept.List(), layers)
		next.retired = cur.retire(ix)
		return next, nil
	})
	if err != nil {
		return err
	}
	log.Infow("layer unloaded", "domain", r.domain, "id", id)
	return nil
}

// refusal converts an index error into a *RegistrationError.
func (r *Registry[P]) refusal(err error) error {
	var de *index.DuplicateError
	if errors.As(err, &de) {
		c := de.Collisions[0]
		return &RegistrationError{Domain: r.domain, Canonical: c.Key, Collision: &c, Err: ErrDuplicate}
	}
	return &RegistrationError{Domain: r.domain, Err: ErrBuild, Cause: err}
}

// publish derives a successor of the current snapshot with next and
// installs it with compare-and-swap.
func (r *Registry[P]) publish(next func(cur *Snapshot[P]) (*Snapshot[P], error)) (*Snapshot[P], error) {
	attempt := func() (*Snapshot[P], bool, error) {
		if r.frozen.Load() {
			return nil, false, ErrFrozen
		}
		cur := r.cur.Load()
		s, err := next(cur)
		if err != nil {
			r.reject(err)
			return nil, false, err
		}
		return s, r.cur.CompareAndSwap(cur, s), nil
	}

	for i := 0; i < r.cfg.MaxRetries; i++ {
		s, ok, err := attempt()
		if err != nil || ok {
			return s, err
		}
	}
	log.Debugw("publication contended, serializing", "domain", r.domain, "retries", r.cfg.MaxRetries)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	for {
		s, ok, err := attempt()
		if err != nil || ok {
			return s, err
		}
	}
}

func (r *Registry[P]) reject(err error) {
	var re *RegistrationError
	if !errors.As(err, &re) || re.Collision == nil {
		return
	}
	log.Warnw("registration refused", "domain", r.domain, "collision", re.Collision.String())
	r.rejectedMu.Lock()
	r.rejected = append(r.rejected, *re.Collision)
	r.rejectedMu.Unlock()
}
