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

// Resolution describes how a collision was settled.
type Resolution uint8

const (
	// ReplacedExisting means the incoming claim displaced the existing one.
	ReplacedExisting Resolution = iota
	// KeptExisting means the existing claim stayed bound; the incoming
	// claim lost.
	KeptExisting
	// ShadowedByCanonical means a name or alias equals another entry's
	// canonical ID. The canonical binding always wins at lookup time.
	ShadowedByCanonical
	// Rejected means the incoming claim was refused outright
	// (PanicOnDuplicate policy).
	Rejected
	// ShadowedByName means an alias equals another entry's primary name.
	// Names are consulted before aliases, so the name binding wins at
	// lookup time whatever the two parties are. Stage is the stage of the
	// incoming claim.
	ShadowedByName
)

// String returns the stable name of the resolution.
func (r Resolution) String() string {
	switch r {
	case ReplacedExisting:
		return "ReplacedExisting"
	case KeptExisting:
		return "KeptExisting"
	case ShadowedByCanonical:
		return "ShadowedByCanonical"
	case Rejected:
		return "Rejected"
	case ShadowedByName:
		return "ShadowedByName"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// Claimant identifies one side of a collision.
type Claimant struct {
	// Canonical is the canonical ID of the claiming definition.
	Canonical string
	// Party is the claiming definition's precedence metadata.
	Party Party
}

// String renders the claimant as "<canonical>(<source>)".
func (c Claimant) String() string {
	return fmt.Sprintf("%s(%s)", c.Canonical, c.Party.Source)
}

// Collision is the diagnostic record of one conflicting claim.
// Collisions are append-only: a build or registration event adds records
// and never edits records written by earlier events.
type Collision struct {
	// Key is the contested string (canonical ID, name or alias).
	Key string
	// Stage is the lookup stage the contested binding belongs to.
	Stage Stage
	// Existing is the claim that was bound before the event.
	Existing Claimant
	// Incoming is the claim introduced by the event.
	Incoming Claimant
	// Resolution is the outcome.
	Resolution Resolution
}

// Winner returns the claimant that holds the binding after resolution.
// For ShadowedByCanonical collisions this is the canonical owner, for
// ShadowedByName collisions the owner of the name.
func (c Collision) Winner() Claimant {
	if c.incomingWins() {
		return c.Incoming
	}
	return c.Existing
}

// Loser returns the claimant that does not hold the binding.
func (c Collision) Loser() Claimant {
	if c.incomingWins() {
		return c.Existing
	}
	return c.Incoming
}

func (c Collision) incomingWins() bool {
	switch c.Resolution {
	case ReplacedExisting:
		return true
	case ShadowedByCanonical:
		return c.Incoming.Canonical == c.Key
	case ShadowedByName:
		return c.Stage == StageName
	default:
		return false
	}
}

// String renders the collision on one line, suitable for logs and the
// registry diagnostics command.
func (c Collision) String() string {
	return fmt.Sprintf("key=%q stage=%s existing=%s incoming=%s resolution=%s",
		c.Key, c.Stage, c.Existing, c.Incoming, c.Resolution)
}
