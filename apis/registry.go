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

package apis

// Registry is the payload-independent view of one domain registry.
// Typed registries implement it so tooling (diagnostics, listing) can work
// across domains without knowing their payload types.
type Registry interface {
	// Domain returns the domain this registry serves.
	Domain() Domain
	// Lookup resolves key against the current snapshot.
	Lookup(key string) (Info, bool)
	// List returns every live entry of the current snapshot in ID order.
	List() []Info
	// Collisions returns the diagnostic collision log.
	Collisions() []Collision
	// Generation returns the generation number of the current snapshot.
	Generation() uint64
}

// Info is a plain-string description of one entry, used by
// payload-independent tooling. It is not on the hot path.
type Info struct {
	ID          ID
	Stage       Stage
	Canonical   string
	Name        string
	Description string
	Keys        []string
	Party       Party
}
