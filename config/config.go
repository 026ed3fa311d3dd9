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

package config

import (
	"dirpx.dev/defx/apis"
)

const (
	// DefaultPolicy is the default duplicate policy.
	// Production builds resolve duplicates deterministically so a
	// misconfigured plugin degrades gracefully instead of crashing.
	DefaultPolicy = apis.ByPriority
	// DefaultLenientStrings represents the default for LenientStrings.
	DefaultLenientStrings = false
	// DefaultMaxRetries represents the default for MaxRetries.
	DefaultMaxRetries = 8
	// DefaultLogLevel represents the default for LogLevel.
	DefaultLogLevel = "warn"
)

// NewConfig constructs an apis.Config from the given options.
func NewConfig(opts ...Option) apis.Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return Normalize(cfg)
}

// DefaultConfig is the default configuration used when none is provided.
func DefaultConfig() apis.Config {
	return apis.Config{
		Policy:         DefaultPolicy,
		LenientStrings: DefaultLenientStrings,
		MaxRetries:     DefaultMaxRetries,
		LogLevel:       DefaultLogLevel,
	}
}

// Development returns the configuration recommended for development
// builds: duplicate canonical IDs abort the build.
func Development() apis.Config {
	return NewConfig(WithPolicy(apis.PanicOnDuplicate), WithLogLevel("debug"))
}

// Normalize replaces out-of-range values with their defaults.
func Normalize(cfg apis.Config) apis.Config {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	return cfg
}

// Option is a functional option that mutates an apis.Config during construction.
type Option func(*apis.Config)

// WithPolicy sets the duplicate policy.
func WithPolicy(p apis.DuplicatePolicy) Option {
	return func(c *apis.Config) {
		c.Policy = p
	}
}

// WithLenientStrings sets the LenientStrings option.
func WithLenientStrings(lenient bool) Option {
	return func(c *apis.Config) {
		c.LenientStrings = lenient
	}
}

// WithMaxRetries sets the MaxRetries option.
// A non-positive value resets to the default.
func WithMaxRetries(n int) Option {
	return func(c *apis.Config) {
		if n <= 0 {
			c.MaxRetries = DefaultMaxRetries
			return
		}
		c.MaxRetries = n
	}
}

// WithLogLevel sets the LogLevel option.
func WithLogLevel(level string) Option {
	return func(c *apis.Config) {
		c.LogLevel = level
	}
}
