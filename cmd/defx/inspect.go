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

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dirpx.dev/defx/spec"
)

func newInspectCommand(o *options) *cobra.Command {
	var ids bool
	cmd := &cobra.Command{
		Use:   "inspect BLOB...",
		Short: "show blob headers and record counts",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "list the canonical ID of every record")
	cmd.RunE = o.run(func(args []string) error {
		for _, path := range args {
			b, err := readBlob(path)
			if err != nil {
				return err
			}
			specs, err := spec.Decode(b.source.Name, b.header.Domain, b.source.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.out, "%s\n", b.path)
			fmt.Fprintf(o.out, "  version: %d\n", b.header.Version)
			fmt.Fprintf(o.out, "  domain:  %s\n", b.header.Domain)
			fmt.Fprintf(o.out, "  payload: %s\n", humanize.Bytes(uint64(b.header.Length)))
			fmt.Fprintf(o.out, "  records: %s\n", humanize.Comma(int64(len(specs))))
			if ids {
				for _, s := range specs {
					fmt.Fprintf(o.out, "    %s\n", s.ID)
				}
			}
		}
		return nil
	})
	return cmd
}
