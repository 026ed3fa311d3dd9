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
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dirpx.dev/defx/apis"
)

func newResolveCommand(o *options) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "resolve KEY BLOB...",
		Short: "show what a key resolves to",
		Long: `
resolve builds the registries of the given blobs and looks KEY up in each,
canonical IDs first, then names, then aliases. --domain restricts the
lookup to one domain.`,
		Args: cobra.MinimumNArgs(2),
	}
	cmd.Flags().StringVar(&domain, "domain", "", "only resolve in this domain")
	cmd.RunE = o.run(func(args []string) error {
		key, paths := args[0], args[1:]
		want := apis.DomainUnknown
		if domain != "" {
			d, err := apis.ParseDomain(domain)
			if err != nil {
				return err
			}
			want = d
		}
		cfg, err := o.Config()
		if err != nil {
			return err
		}
		sets, err := loadDomains(context.Background(), paths)
		if err != nil {
			return err
		}

		var found bool
		for _, set := range sets {
			if want != apis.DomainUnknown && set.domain != want {
				continue
			}
			r, err := buildRegistry(cfg, set)
			if err != nil {
				return err
			}
			h, ok := r.Resolve(key)
			if !ok {
				continue
			}
			found = true
			printSuccess(o.out, "%s: %s (%s)", set.domain, h.Canonical(), h.Stage())
			fmt.Fprintf(o.out, "  name:        %s\n", h.Name())
			if d := h.Description(); d != "" {
				fmt.Fprintf(o.out, "  description: %s\n", d)
			}
			if keys := h.Keys(); len(keys) > 0 {
				fmt.Fprintf(o.out, "  keys:        %s\n", strings.Join(keys, ", "))
			}
			fmt.Fprintf(o.out, "  party:       %s\n", h.Party())
		}
		if !found {
			return fmt.Errorf("%q: not found", key)
		}
		return nil
	})
	return cmd
}
