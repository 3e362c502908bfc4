package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "lifeline",
		Short:         "LifeLine emergency first-aid guidance server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults to $LIFELINE_CONFIG)")

	root.AddCommand(
		newServeCommand(&configPath),
		newProtocolsCommand(),
		newTokenCommand(&configPath),
		newClientCommand(),
	)
	return root
}
