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

package config_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/config"
)

func TestDefaultConfigValues(t *testing.T) {
	got := config.DefaultConfig()

	if got.Policy != config.DefaultPolicy {
		t.Fatalf("Policy = %v, want %v", got.Policy, config.DefaultPolicy)
	}
	if got.LenientStrings != config.DefaultLenientStrings {
		t.Fatalf("LenientStrings = %v, want %v", got.LenientStrings, config.DefaultLenientStrings)
	}
	if got.MaxRetries != config.DefaultMaxRetries {
		t.Fatalf("MaxRetries = %d, want %d", got.MaxRetries, config.DefaultMaxRetries)
	}
	if got.LogLevel != config.DefaultLogLevel {
		t.Fatalf("LogLevel = %q, want %q", got.LogLevel, config.DefaultLogLevel)
	}
}

func TestNewConfig_NoOptions_EqualsDefault(t *testing.T) {
	def := config.DefaultConfig()
	got := config.NewConfig()
	if got != def {
		t.Fatalf("NewConfig() = %+v, want default %+v", got, def)
	}
}

func TestWithMaxRetries_NonPositive_ResetsToDefault(t *testing.T) {
	for _, n := range []int{0, -1} {
		c := config.NewConfig(config.WithMaxRetries(n))
		if c.MaxRetries != config.DefaultMaxRetries {
			t.Fatalf("WithMaxRetries(%d): MaxRetries = %d, want default %d", n, c.MaxRetries, config.DefaultMaxRetries)
		}
	}
}

func TestOptionsOrder_LastWins(t *testing.T) {
	c := config.NewConfig(
		config.WithPolicy(apis.FirstWins),
		config.WithPolicy(apis.LastWins),
		config.WithLenientStrings(false),
		config.WithLenientStrings(true),
		config.WithMaxRetries(2),
		config.WithMaxRetries(5),
	)

	if c.Policy != apis.LastWins {
		t.Errorf("Policy = %v, want last-wins (last option wins)", c.Policy)
	}
	if !c.LenientStrings {
		t.Errorf("LenientStrings = %v, want true (last option wins)", c.LenientStrings)
	}
	if c.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5 (last option wins)", c.MaxRetries)
	}
}

func TestDevelopment_UsesPanicPolicy(t *testing.T) {
	if got := config.Development().Policy; got != apis.PanicOnDuplicate {
		t.Fatalf("Development().Policy = %v, want panic", got)
	}
}

func TestLoad_PartialDocumentKeepsDefaults(t *testing.T) {
	got, err := config.Load(strings.NewReader("policy: last-wins\nmax_retries: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := config.DefaultConfig()
	want.Policy = apis.LastWins
	want.MaxRetries = 3
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyDocument(t *testing.T) {
	got, err := config.Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != config.DefaultConfig() {
		t.Fatalf("Load(empty) = %+v, want defaults", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown policy": "policy: sometimes\n",
		"unknown field":  "polcy: priority\n",
		"bad type":       "max_retries: many\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(strings.NewReader(doc)); err == nil {
				t.Fatalf("Load(%q): expected error", doc)
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	in := config.NewConfig(config.WithPolicy(apis.PanicOnDuplicate), config.WithLenientStrings(true))
	b, err := config.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), "policy: panic") {
		t.Fatalf("Marshal output missing policy token:\n%s", b)
	}
	out, err := config.Load(strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}
