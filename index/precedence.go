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

package index

import (
	"dirpx.dev/defx/apis"
)

// claim is one entry's claim on a name or alias key.
type claim struct {
	id    apis.ID
	party apis.Party
	canon string
}

func (c claim) claimant() apis.Claimant {
	return apis.Claimant{Canonical: c.canon, Party: c.party}
}

// slot holds every live claim on one key and the current winner.
// Slots are copy-on-write: a new claim set is a new slice.
type slot struct {
	winner apis.ID
	claims []claim
}

func (s slot) find(id apis.ID) claim {
	for _, c := range s.claims {
		if c.id == id {
			return c
		}
	}
	return claim{}
}

// without returns s minus the claim of id, re-electing the winner if id
// held the binding. ok is false when no claim remains.
func (s slot) without(id apis.ID) (slot, bool) {
	out := make([]claim, 0, len(s.claims))
	for _, c := range s.claims {
		if c.id != id {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return slot{}, false
	}
	next := slot{winner: s.winner, claims: out}
	if s.winner == id {
		best := out[0]
		for _, c := range out[1:] {
			if keyBeats(c, best) {
				best = c
			}
		}
		next.winner = best.id
	}
	return next, true
}

// with returns s plus c and reports whether c took the binding.
func (s slot) with(c claim) (slot, bool) {
	out := make([]claim, len(s.claims), len(s.claims)+1)
	copy(out, s.claims)
	out = append(out, c)
	next := slot{winner: s.winner, claims: out}
	if keyBeats(c, s.find(s.winner)) {
		next.winner = c.id
		return next, true
	}
	return next, false
}

// partyBeats compares priority, then source rank. It reports whether a
// beats b and whether the two were decided at all.
func partyBeats(a, b apis.Party) (wins, decided bool) {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority, true
	}
	if a.Source != b.Source {
		return a.Source > b.Source, true
	}
	return false, false
}

// keyBeats reports whether claim a outranks claim b on a name or alias.
// Ties go to the lexicographically smaller canonical ID, so the outcome
// does not depend on ingest order.
func keyBeats(a, b claim) bool {
	if wins, ok := partyBeats(a.party, b.party); ok {
		return wins
	}
	return a.canon < b.canon
}

// canonicalBeats reports whether incoming displaces existing on a
// canonical ID under policy p. PanicOnDuplicate never reaches here.
func canonicalBeats(p apis.DuplicatePolicy, incoming, existing apis.Party) bool {
	switch p {
	case apis.FirstWins:
		return incoming.Ordinal < existing.Ordinal
	case apis.LastWins:
		return incoming.Ordinal > existing.Ordinal
	default:
		if wins, ok := partyBeats(incoming, existing); ok {
			return wins
		}
		return incoming.Ordinal > existing.Ordinal
	}
}
