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

package symbol

import "github.com/benbjohnson/immutable"

// Hasher hashes symbols for persistent maps keyed by Symbol.
// It avoids the reflection fallback immutable uses for named integer types.
type Hasher struct{}

var _ immutable.Hasher[Symbol] = Hasher{}

// Hash mixes the symbol bits (murmur3 finalizer).
func (Hasher) Hash(s Symbol) uint32 {
	x := uint32(s)
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16
	return x
}

// Equal reports whether a and b are the same symbol.
func (Hasher) Equal(a, b Symbol) bool { return a == b }

// NewMap returns an empty persistent map keyed by Symbol.
func NewMap[V any]() *immutable.Map[Symbol, V] {
	return immutable.NewMap[Symbol, V](Hasher{})
}

// stringHasher is FNV-1a over the string bytes.
type stringHasher struct{}

func (stringHasher) Hash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (stringHasher) Equal(a, b string) bool { return a == b }
