package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root docrag command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docrag",
		Short:         "docrag — semantic document retrieval",
		Long:          "docrag chunks, embeds and indexes text documents into per-identity corpora and answers similarity queries over them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newQueryCmd(),
	)

	return root
}
