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

// Package resolver orders the lookup stages a key is tried against.
package resolver

import (
	"errors"
	"fmt"

	"dirpx.dev/defx/apis"
)

var (
	// ErrCanonicalFirst is returned for a chain that does not start with
	// the canonical stage. Canonical IDs must never be shadowed.
	ErrCanonicalFirst = errors.New("defx(resolver): chain must start with the canonical stage")
	// ErrStage is returned for an unknown or repeated stage.
	ErrStage = errors.New("defx(resolver): invalid stage")
)

const maxStages = 3

// Chain is an immutable, order-preserving sequence of lookup stages.
// The zero value matches nothing. Chains are plain values; Find never
// allocates.
type Chain struct {
	stages [maxStages]apis.Stage
	n      uint8
}

// Default returns the canonical → name → alias chain.
func Default() Chain {
	return Chain{stages: [maxStages]apis.Stage{apis.StageCanonical, apis.StageName, apis.StageAlias}, n: maxStages}
}

// New constructs a chain from the given stages, tried in order.
func New(stages ...apis.Stage) (Chain, error) {
	if len(stages) == 0 || stages[0] != apis.StageCanonical {
		return Chain{}, ErrCanonicalFirst
	}
	var c Chain
	var seen [maxStages]bool
	for _, s := range stages {
		if int(s) >= maxStages || seen[s] {
			return Chain{}, fmt.Errorf("%w: %s", ErrStage, s)
		}
		seen[s] = true
		c.stages[c.n] = s
		c.n++
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(stages ...apis.Stage) Chain {
	c, err := New(stages...)
	if err != nil {
		panic(err)
	}
	return c
}

// Find runs the stages in order against ks and returns the first binding.
func (c Chain) Find(ks apis.Keyspace, sym uint32) (apis.ID, apis.Stage, bool) {
	for i := uint8(0); i < c.n; i++ {
		if id, ok := ks.Bound(c.stages[i], sym); ok {
			return id, c.stages[i], true
		}
	}
	return 0, 0, false
}

// Stages returns a copy of the chain's stages.
func (c Chain) Stages() []apis.Stage {
	out := make([]apis.Stage, c.n)
	copy(out, c.stages[:c.n])
	return out
}
