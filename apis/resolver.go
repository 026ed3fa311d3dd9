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

// Keyspace is the read side of an index's lookup maps: for each stage it
// answers which entry a symbol is bound to.
//
// Implementations must be safe for concurrent reads and must not allocate.
// The symbol is passed as its raw integer value so this package stays free
// of the interner.
type Keyspace interface {
	// Bound returns the entry bound to sym at the given stage.
	Bound(stage Stage, sym uint32) (id ID, ok bool)
}
