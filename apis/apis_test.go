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

package apis_test

import (
	"testing"

	"dirpx.dev/defx/apis"
)

func TestSourceRankParse(t *testing.T) {
	tests := []struct {
		input string
		want  apis.SourceRank
	}{
		{"builtin", apis.SourceBuiltin},
		{" Module ", apis.SourceModule},
		{"RUNTIME", apis.SourceRuntime},
	}
	for _, tt := range tests {
		got, err := apis.ParseSourceRank(tt.input)
		if err != nil {
			t.Fatalf("ParseSourceRank(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSourceRank(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if _, err := apis.ParseSourceRank("plugin"); err == nil {
		t.Fatal(`ParseSourceRank("plugin"): expected error`)
	}
	if got := apis.SourceRank(7).String(); got != "Unknown(7)" {
		t.Fatalf("String() = %q", got)
	}
	if apis.SourceRank(7).Valid() {
		t.Fatal("rank 7 reported valid")
	}
	if _, err := apis.SourceRank(7).MarshalText(); err == nil {
		t.Fatal("MarshalText on unknown rank: expected error")
	}
}

func TestDomainText(t *testing.T) {
	for _, d := range apis.Domains {
		text, err := d.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", d, err)
		}
		var got apis.Domain
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != d {
			t.Fatalf("round trip %v -> %q -> %v", d, text, got)
		}
	}
	if apis.DomainUnknown.Valid() {
		t.Fatal("DomainUnknown reported valid")
	}
	if _, err := apis.DomainUnknown.MarshalText(); err == nil {
		t.Fatal("MarshalText(DomainUnknown): expected error")
	}
	if _, err := apis.ParseDomain("widgets"); err == nil {
		t.Fatal(`ParseDomain("widgets"): expected error`)
	}
}

func TestStageString(t *testing.T) {
	want := map[apis.Stage]string{
		apis.StageCanonical: "canonical",
		apis.StageName:      "name",
		apis.StageAlias:     "alias",
		apis.Stage(9):       "Unknown(9)",
	}
	for s, w := range want {
		if got := s.String(); got != w {
			t.Errorf("Stage(%d).String() = %q, want %q", uint8(s), got, w)
		}
	}
}

func TestCollisionWinnerLoser(t *testing.T) {
	builtin := apis.Claimant{Canonical: "write", Party: apis.Party{Source: apis.SourceBuiltin}}
	plugin := apis.Claimant{Canonical: "write-all", Party: apis.Party{Priority: 5, Source: apis.SourceRuntime, Ordinal: 3}}

	tests := []struct {
		name   string
		c      apis.Collision
		winner apis.Claimant
		loser  apis.Claimant
	}{
		{
			name:   "replaced",
			c:      apis.Collision{Key: "w", Stage: apis.StageAlias, Existing: builtin, Incoming: plugin, Resolution: apis.ReplacedExisting},
			winner: plugin, loser: builtin,
		},
		{
			name:   "kept",
			c:      apis.Collision{Key: "w", Stage: apis.StageAlias, Existing: plugin, Incoming: builtin, Resolution: apis.KeptExisting},
			winner: plugin, loser: builtin,
		},
		{
			name:   "rejected",
			c:      apis.Collision{Key: "write", Stage: apis.StageCanonical, Existing: builtin, Incoming: builtin, Resolution: apis.Rejected},
			winner: builtin, loser: builtin,
		},
		{
			name:   "alias shadowed by existing canonical",
			c:      apis.Collision{Key: "write", Stage: apis.StageAlias, Existing: builtin, Incoming: plugin, Resolution: apis.ShadowedByCanonical},
			winner: builtin, loser: plugin,
		},
		{
			name:   "alias shadowed by existing name",
			c:      apis.Collision{Key: "Save", Stage: apis.StageAlias, Existing: builtin, Incoming: plugin, Resolution: apis.ShadowedByName},
			winner: builtin, loser: plugin,
		},
		{
			name:   "name arrives after alias",
			c:      apis.Collision{Key: "Save", Stage: apis.StageName, Existing: plugin, Incoming: builtin, Resolution: apis.ShadowedByName},
			winner: builtin, loser: plugin,
		},
		{
			name:   "canonical arrives after alias",
			c:      apis.Collision{Key: "write-all", Stage: apis.StageAlias, Existing: builtin, Incoming: plugin, Resolution: apis.ShadowedByCanonical},
			winner: plugin, loser: builtin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Winner(); got != tt.winner {
				t.Errorf("Winner() = %v, want %v", got, tt.winner)
			}
			if got := tt.c.Loser(); got != tt.loser {
				t.Errorf("Loser() = %v, want %v", got, tt.loser)
			}
		})
	}
}

func TestCollisionString(t *testing.T) {
	c := apis.Collision{
		Key:        "w",
		Stage:      apis.StageAlias,
		Existing:   apis.Claimant{Canonical: "write", Party: apis.Party{Source: apis.SourceBuiltin}},
		Incoming:   apis.Claimant{Canonical: "wq", Party: apis.Party{Source: apis.SourceModule}},
		Resolution: apis.KeptExisting,
	}
	want := `key="w" stage=alias existing=write(builtin) incoming=wq(module) resolution=KeptExisting`
	if got := c.String(); got != want {
		t.Fatalf("String() =\n  %s\nwant\n  %s", got, want)
	}
	if got := apis.Resolution(9).String(); got != "Unknown(9)" {
		t.Fatalf("Resolution(9).String() = %q", got)
	}
}
