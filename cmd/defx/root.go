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

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/config"
)

// options holds the global flags.
type options struct {
	out, errOut io.Writer

	configPath string
	policy     string
	noColor    bool
}

// Config returns the configuration selected by the flags: the file given
// with --config, if any, with --policy applied on top.
func (o *options) Config() (apis.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.policy != "" {
		p, err := apis.ParsePolicy(o.policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = p
	}
	return cfg, config.ApplyLogging(cfg)
}

// NewRootCommand builds the defx command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	o := &options{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "defx",
		Short: "inspect editor definition blobs",
		Long: `
defx reads the compiled definition blobs shipped with the editor and shows
what the registry would make of them: blob headers, the collisions that
precedence resolution records, and how a key resolves.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.NoColor = color.NoColor || o.noColor
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&o.policy, "policy", "", "duplicate policy [priority, first-wins, last-wins, panic]")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newInspectCommand(o),
		newCollisionsCommand(o),
		newResolveCommand(o),
	)
	return root
}

// run wraps a command body so failures are printed in red.
func (o *options) run(fn func(args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		if err := fn(args); err != nil {
			printErr(o.errOut, err)
			return err
		}
		return nil
	}
}

func printErr(w io.Writer, err error) {
	fmt.Fprintln(w, color.New(color.FgRed).Sprint(err.Error()))
}

func printWarning(w io.Writer, msg string, params ...interface{}) {
	fmt.Fprintln(w, color.New(color.FgYellow).Sprintf(msg, params...))
}

func printSuccess(w io.Writer, msg string, params ...interface{}) {
	fmt.Fprintln(w, color.New(color.FgGreen).Sprintf(msg, params...))
}
