package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/source"
)

func newIngestCmd() *cobra.Command {
	var corpusID string
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest text files into a corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			paths := source.Expand(args)
			if len(paths) == 0 {
				return fmt.Errorf("no .txt documents matched %v", args)
			}

			fs := source.NewFilesystem()
			ctx := cmd.Context()
			for _, path := range paths {
				doc, err := fs.Fetch(ctx, path)
				if err != nil {
					return err
				}
				report, err := a.engine.Ingest(ctx, corpusID, doc)
				if err != nil {
					return err
				}
				verb := "added"
				if report.Replaced {
					verb = "replaced"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d fragments, %s)\n", verb, path, report.FragmentsAdded, doc.ID)
				if report.Summary != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", report.Summary)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusID, "corpus", "default", "corpus identifier")
	return cmd
}
