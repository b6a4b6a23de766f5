// Package modules implements the subcommand that lists the built-in stage
// implementations.
package modules

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicheflow/nicheflow/internal/registry"
)

// Command creates the modules command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the built-in stage implementations",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tDESCRIPTION")
			for _, entry := range registry.Builtins() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Kind, entry.Name, entry.Description)
			}
			return w.Flush()
		},
	}
}
