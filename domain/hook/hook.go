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

// Package hook is the editor hook domain: handlers run when an editor
// event fires. Every hook is indexed under its event, and dispatch runs
// an event's hooks in (priority ascending, name ascending) order.
package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/buildctx"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/index"
	"dirpx.dev/defx/link"
	"dirpx.dev/defx/registry"
	"dirpx.dev/defx/spec"
)

// FieldEvent is the payload field naming the hook's event.
const FieldEvent = "event"

// Event is an editor event hooks can attach to.
type Event uint32

const (
	EventUnknown Event = iota
	BufferOpen
	BufferSave
	BufferClose
	ModeChange
	EditorStart
	EditorQuit
)

// Events lists every defined event.
var Events = []Event{BufferOpen, BufferSave, BufferClose, ModeChange, EditorStart, EditorQuit}

// String returns a short, stable identifier for the event.
func (e Event) String() string {
	switch e {
	case BufferOpen:
		return "buffer-open"
	case BufferSave:
		return "buffer-save"
	case BufferClose:
		return "buffer-close"
	case ModeChange:
		return "mode-change"
	case EditorStart:
		return "editor-start"
	case EditorQuit:
		return "editor-quit"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(e))
	}
}

// ParseEvent parses the textual form produced by Event.String.
func ParseEvent(s string) (Event, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, e := range Events {
		if e.String() == key {
			return e, nil
		}
	}
	return EventUnknown, fmt.Errorf("defx(hook): unknown event %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	if e == EventUnknown || e > EditorQuit {
		return nil, fmt.Errorf("defx(hook): cannot marshal unknown event %d", uint32(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(text []byte) error {
	v, err := ParseEvent(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Fn implements a hook. data is event specific (the buffer, the new mode).
type Fn func(ctx context.Context, ev Event, data any) error

// Handler is the code side of a hook, linked to its spec by name.
type Handler struct {
	Name string
	Fn   Fn
}

// CanonicalName returns the handler's name.
func (h Handler) CanonicalName() string { return h.Name }

// Payload is the hook entry payload.
type Payload struct {
	Fn    Fn
	Event Event
}

// Registry is the hook registry.
type Registry = registry.Registry[Payload]

// Input is one hook definition fed to the registry.
type Input = index.Input[Payload]

// Builtin returns the input of a hook defined in code.
func Builtin(meta spec.Meta, ev Event, fn Fn) Input {
	return index.Def[Payload]{
		Meta:    meta,
		Group:   uint32(ev),
		Payload: func(*buildctx.Context) (Payload, error) { return Payload{Fn: fn, Event: ev}, nil },
	}
}

func parseEvent(s spec.Spec) (Event, error) {
	raw, ok := s.Field(FieldEvent)
	if !ok {
		return EventUnknown, fmt.Errorf("defx(hook): missing %s", FieldEvent)
	}
	return ParseEvent(raw)
}

// Link pairs hook specs with handlers one to one and validates every
// spec's event. Both kinds of failure are reported together.
func Link(specs []spec.Spec, handlers []Handler) ([]Input, error) {
	events, verr := link.Validate(apis.DomainHooks, specs, parseEvent)
	pairs, lerr := link.ByName(apis.DomainHooks, specs, handlers)
	if err := link.Merge(lerr, verr); err != nil {
		return nil, err
	}
	out := make([]Input, len(pairs))
	for i, p := range pairs {
		out[i] = Builtin(p.Spec.Meta, events[i], p.Handler.Fn)
	}
	return out, nil
}

// Domain describes the hook domain for the startup builder.
func Domain(sources []builder.Source, builtins []Input, handlers []Handler) builder.Domain[Payload] {
	return builder.Domain[Payload]{
		Domain:   apis.DomainHooks,
		Sources:  sources,
		Builtins: builtins,
		Link: func(specs []spec.Spec) ([]Input, error) {
			return Link(specs, handlers)
		},
	}
}

// For returns the hooks of ev in the current snapshot, in dispatch order.
func For(reg *Registry, ev Event) []registry.Handle[Payload] {
	return reg.Snapshot().Group(uint32(ev))
}

// Dispatch runs every hook of ev in order against one snapshot. A failing
// hook does not stop the others; all failures are returned joined. A
// canceled context stops dispatch before the next hook.
func Dispatch(ctx context.Context, reg *Registry, ev Event, data any) error {
	var errs []error
	for _, h := range For(reg, ev) {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		fn := h.Payload().Fn
		if fn == nil {
			continue
		}
		if err := fn(ctx, ev, data); err != nil {
			errs = append(errs, fmt.Errorf("defx(hook): %s on %s: %w", h.Canonical(), ev, err))
		}
	}
	return errors.Join(errs...)
}
