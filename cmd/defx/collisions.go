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
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dirpx.dev/defx/apis"
	"dirpx.dev/defx/index"
)

func newCollisionsCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collisions BLOB...",
		Short: "build the registries and list every recorded collision",
		Long: `
collisions groups the blobs by the domain in their header, builds one
registry per domain under the configured duplicate policy, and prints the
collision log of each. Under the panic policy a duplicate canonical ID fails
the command.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.RunE = o.run(func(args []string) error {
		cfg, err := o.Config()
		if err != nil {
			return err
		}
		sets, err := loadDomains(context.Background(), args)
		if err != nil {
			return err
		}

		var total int
		for _, set := range sets {
			r, err := buildRegistry(cfg, set)
			var dup *index.DuplicateError
			if errors.As(err, &dup) {
				for _, c := range dup.Collisions {
					printCollision(o, set.domain, c)
				}
				return err
			}
			if err != nil {
				return err
			}
			cs := r.Collisions()
			for _, c := range cs {
				printCollision(o, set.domain, c)
			}
			total += len(cs)
		}
		if total == 0 {
			printSuccess(o.out, "no collisions")
			return nil
		}
		printWarning(o.out, "%d collision(s)", total)
		return nil
	})
	return cmd
}

func printCollision(o *options, d apis.Domain, c apis.Collision) {
	var paint *color.Color
	switch c.Resolution {
	case apis.Rejected:
		paint = color.New(color.FgRed)
	case apis.ShadowedByCanonical, apis.ShadowedByName:
		paint = color.New(color.FgYellow)
	default:
		paint = color.New(color.FgCyan)
	}
	fmt.Fprintf(o.out, "%s\t%s\t%q\t%s > %s\n", d, c.Stage, c.Key,
		paint.Sprint(c.Winner()), c.Loser())
	fmt.Fprintf(o.out, "\t%s\n", c.Resolution)
}
