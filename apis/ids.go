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

import "fmt"

// ID is the dense, sequential identifier of an entry inside one index table.
// IDs are assigned in ingest order starting at zero and are only meaningful
// together with the snapshot that produced them.
type ID uint32

// Stage names one step of the three-stage key resolution.
//
// The numeric order of the stages is the order in which they are consulted:
// canonical ID first, then primary name, then secondary keys (aliases).
type Stage uint8

const (
	// StageCanonical matches the canonical identifier of an entry.
	StageCanonical Stage = iota
	// StageName matches the primary (human-facing) name of an entry.
	StageName
	// StageAlias matches any secondary key of an entry.
	StageAlias
)

// String returns a short, stable identifier for the stage.
func (s Stage) String() string {
	switch s {
	case StageCanonical:
		return "canonical"
	case StageName:
		return "name"
	case StageAlias:
		return "alias"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}
