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

package defx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	golog "github.com/ipfs/go-log/v2"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/builder"
	"dirpx.dev/defx/config"
	"dirpx.dev/defx/domain/action"
	"dirpx.dev/defx/domain/command"
	"dirpx.dev/defx/domain/hook"
	"dirpx.dev/defx/domain/language"
	"dirpx.dev/defx/domain/option"
	"dirpx.dev/defx/registry"
)

var log = golog.Logger("defx")

var (
	// ErrInitialized is returned by a second Init.
	ErrInitialized = errors.New("defx: already initialized")
	// ErrUnknownDomain is returned for a domain without a registry.
	ErrUnknownDomain = errors.New("defx: unknown domain")
)

// Set describes every domain to build at startup. Each field is usually
// produced by the domain package's Domain function; a zero field builds
// an empty registry.
type Set struct {
	Options   builder.Domain[option.Payload]
	Languages builder.Domain[language.Payload]
	Actions   builder.Domain[action.Payload]
	Commands  builder.Domain[command.Payload]
	Hooks     builder.Domain[hook.Payload]
}

// state is the immutable set of process-wide registries.
type state struct {
	cfg       apis.Config
	ready     bool
	options   *option.Registry
	languages *language.Registry
	actions   *action.Registry
	commands  *command.Registry
	hooks     *hook.Registry
}

var (
	st      atomic.Pointer[state]
	buildMu sync.Mutex
)

func init() {
	s, err := build(context.Background(), config.DefaultConfig(), Set{})
	if err != nil {
		panic(err)
	}
	st.Store(s)
}

// build constructs every domain in initialization order: options,
// languages, actions, commands, hooks.
func build(ctx context.Context, cfg apis.Config, set Set) (*state, error) {
	cfg = config.Normalize(cfg)
	s := &state{cfg: cfg}
	var err error
	if s.options, err = buildDomain(ctx, apis.DomainOptions, set.Options, cfg); err != nil {
		return nil, err
	}
	if s.languages, err = buildDomain(ctx, apis.DomainLanguages, set.Languages, cfg); err != nil {
		return nil, err
	}
	if s.actions, err = buildDomain(ctx, apis.DomainActions, set.Actions, cfg); err != nil {
		return nil, err
	}
	if s.commands, err = buildDomain(ctx, apis.DomainCommands, set.Commands, cfg); err != nil {
		return nil, err
	}
	if s.hooks, err = buildDomain(ctx, apis.DomainHooks, set.Hooks, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func buildDomain[P any](ctx context.Context, d apis.Domain, bd builder.Domain[P], cfg apis.Config) (*registry.Registry[P], error) {
	bd.Domain = d
	reg, err := builder.Build(ctx, bd, cfg)
	if err != nil {
		return nil, fmt.Errorf("defx: init %s: %w", d, err)
	}
	return reg, nil
}

// Init builds the process-wide registries from set. It runs once; later
// calls return ErrInitialized and leave the registries untouched.
//
// Blob decode failures and spec/handler mismatches are returned here.
// Both mean the binary and its embedded data are out of sync.
func Init(cfg apis.Config, set Set) error {
	return InitContext(context.Background(), cfg, set)
}

// InitContext is Init with a context bounding blob decoding.
func InitContext(ctx context.Context, cfg apis.Config, set Set) error {
	buildMu.Lock()
	defer buildMu.Unlock()

	if st.Load().ready {
		return ErrInitialized
	}
	if err := config.ApplyLogging(cfg); err != nil {
		return err
	}
	s, err := build(ctx, cfg, set)
	if err != nil {
		log.Errorw("initialization failed", "error", err)
		return err
	}
	s.ready = true
	st.Store(s)
	log.Infow("registries initialized", "policy", s.cfg.Policy,
		"options", s.options.Snapshot().Len(), "languages", s.languages.Snapshot().Len(),
		"actions", s.actions.Snapshot().Len(), "commands", s.commands.Snapshot().Len(),
		"hooks", s.hooks.Snapshot().Len())
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(cfg apis.Config, set Set) {
	if err := Init(cfg, set); err != nil {
		panic(err)
	}
}

// Initialized reports whether Init succeeded.
func Initialized() bool { return st.Load().ready }

// Reset drops the process-wide registries and allows Init again.
// It exists for tests.
func Reset() {
	buildMu.Lock()
	defer buildMu.Unlock()
	s, err := build(context.Background(), config.DefaultConfig(), Set{})
	if err != nil {
		panic(err)
	}
	st.Store(s)
}

// Config returns the configuration the registries were built with.
func Config() apis.Config { return st.Load().cfg }

// Options returns the option registry.
func Options() *option.Registry { return st.Load().options }

// Languages returns the language registry.
func Languages() *language.Registry { return st.Load().languages }

// Actions returns the action registry.
func Actions() *action.Registry { return st.Load().actions }

// Commands returns the command registry.
func Commands() *command.Registry { return st.Load().commands }

// Hooks returns the hook registry.
func Hooks() *hook.Registry { return st.Load().hooks }

// Registries returns every registry in initialization order.
func Registries() []apis.Registry {
	s := st.Load()
	return []apis.Registry{s.options, s.languages, s.actions, s.commands, s.hooks}
}

// Registry returns the registry of domain d.
func Registry(d apis.Domain) (apis.Registry, error) {
	s := st.Load()
	switch d {
	case apis.DomainOptions:
		return s.options, nil
	case apis.DomainLanguages:
		return s.languages, nil
	case apis.DomainActions:
		return s.actions, nil
	case apis.DomainCommands:
		return s.commands, nil
	case apis.DomainHooks:
		return s.hooks, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, d)
	}
}

// Resolve looks key up in domain d.
func Resolve(d apis.Domain, key string) (apis.Info, bool) {
	reg, err := Registry(d)
	if err != nil {
		return apis.Info{}, false
	}
	return reg.Lookup(key)
}

// Collisions returns the collision log of domain d.
func Collisions(d apis.Domain) []apis.Collision {
	reg, err := Registry(d)
	if err != nil {
		return nil
	}
	return reg.Collisions()
}

// Freeze refuses runtime registration in every domain.
func Freeze() {
	s := st.Load()
	s.options.Freeze()
	s.languages.Freeze()
	s.actions.Freeze()
	s.commands.Freeze()
	s.hooks.Freeze()
}

// RegisterAction registers a runtime action.
func RegisterAction(in action.Input) (registry.Handle[action.Payload], error) {
	return Actions().Register(in)
}

// RegisterCommand registers a runtime command.
func RegisterCommand(in command.Input) (registry.Handle[command.Payload], error) {
	return Commands().Register(in)
}

// RegisterOption registers a runtime option.
func RegisterOption(in option.Input) (registry.Handle[option.Payload], error) {
	return Options().Register(in)
}

// RegisterHook registers a runtime hook.
func RegisterHook(in hook.Input) (registry.Handle[hook.Payload], error) {
	return Hooks().Register(in)
}

// RegisterLanguage registers a runtime language.
func RegisterLanguage(in language.Input) (registry.Handle[language.Payload], error) {
	return Languages().Register(in)
}
