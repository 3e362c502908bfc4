package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satriahrh/lifeline/internal/protocols"
)

func newProtocolsCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List the first-aid protocol registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := protocols.Default()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tSTEPS")
			for _, key := range registry.Keys() {
				p, _ := registry.Lookup(key)
				fmt.Fprintf(w, "%s\t%s\t%d\n", p.Key, p.Name, len(p.Steps))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !verbose {
				return nil
			}
			for _, key := range registry.Keys() {
				p, _ := registry.Lookup(key)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", p.Name)
				for i, step := range p.Steps {
					fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, step)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every step")
	return cmd
}
