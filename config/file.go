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
	"errors"
	"fmt"
	"io"
	"os"

	golog "github.com/ipfs/go-log/v2"
	"gopkg.in/yaml.v3"

	"dirpx.dev/defx/apis"
)

// loggers matches every logger created by defx packages.
const loggers = "^defx"

// Load decodes a YAML document into a configuration. Fields missing from
// the document keep their defaults; unknown fields are an error.
//
//	policy: priority        # priority | first-wins | last-wins | panic
//	lenient_strings: false
//	max_retries: 8
//	log_level: warn
func Load(r io.Reader) (apis.Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return apis.Config{}, fmt.Errorf("defx(config): decode: %w", err)
	}
	return Normalize(cfg), nil
}

// LoadFile reads and decodes the YAML configuration at path.
func LoadFile(path string) (apis.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return apis.Config{}, fmt.Errorf("defx(config): %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Marshal encodes cfg as YAML.
func Marshal(cfg apis.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// ApplyLogging sets the level of every defx logger to cfg.LogLevel.
func ApplyLogging(cfg apis.Config) error {
	level := cfg.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}
	if err := golog.SetLogLevelRegex(loggers, level); err != nil {
		return fmt.Errorf("defx(config): log level %q: %w", level, err)
	}
	return nil
}
