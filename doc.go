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

// Package defx is the definition registry of the editor: the catalog of
// actions, commands, options, hooks and languages, looked up by
// human-facing keys.
//
// # Design
//
// Each domain has its own registry (package registry). A registry
// publishes immutable snapshots through an atomic pointer: a lookup is
// one pointer load, one symbol lookup and at most three persistent-map
// probes, and never takes a lock or allocates. Keys resolve in three
// stages, canonical ID, then primary name, then aliases, so a canonical
// ID can never be shadowed.
//
// Definitions come from two places:
//
//   - compiled blobs of specification records (package spec), linked one
//     to one with compiled-in handlers (package link);
//   - definitions written in code (Builtin inputs in each domain package).
//
// When two definitions claim the same canonical ID or key, precedence is
// decided deterministically by priority, then source rank
// (runtime > module > builtin), then a final tie-break. Every conflict is
// recorded in a collision log.
//
// # Global API
//
// The package holds the process-wide registries:
//
//	defx.MustInit(config.DefaultConfig(), defx.Set{
//		Options:  option.Domain(optionBlobs, nil),
//		Commands: command.Domain(commandBlobs, nil, commandHandlers),
//		Hooks:    hook.Domain(hookBlobs, nil, hookHandlers),
//	})
//
//	h, ok := defx.Commands().Resolve("w")
//
// Init builds domains in a fixed order (options, languages, actions,
// commands, hooks) exactly once. Before Init every registry exists and is
// empty. Plugins extend a domain at runtime with Register or, for
// unloadable groups, RegisterLayer on the domain's registry.
package defx
