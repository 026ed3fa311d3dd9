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

// Config carries read-only build and registration knobs.
// It is passed by value and should be treated as immutable by implementations.
type Config struct {
	// Policy selects how duplicate canonical IDs are resolved.
	Policy DuplicatePolicy `yaml:"policy"`

	// LenientStrings turns a lookup of an undeclared string during entry
	// construction into a logged warning; the string is interned late. The
	// zero value is strict: the lookup fails the entry.
	LenientStrings bool `yaml:"lenient_strings"`

	// MaxRetries bounds the optimistic compare-and-swap attempts of one
	// registration before the writer falls back to the serialized path.
	MaxRetries int `yaml:"max_retries"`

	// LogLevel is applied to every defx logger ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}
