package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/source"
	"docrag/internal/tui"
)

func newSearchCmd() *cobra.Command {
	var corpusID string
	cmd := &cobra.Command{
		Use:   "search [files...]",
		Short: "Interactively search a corpus, optionally ingesting files first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var summaries []string
			if len(args) > 0 {
				paths := source.Expand(args)
				if len(paths) == 0 {
					return fmt.Errorf("no .txt documents matched %v", args)
				}
				fs := source.NewFilesystem()
				for _, path := range paths {
					doc, err := fs.Fetch(ctx, path)
					if err != nil {
						return err
					}
					report, err := a.engine.Ingest(ctx, corpusID, doc)
					if err != nil {
						return err
					}
					if report.Summary != "" {
						summaries = append(summaries, report.Summary)
					}
				}
			}
			if !a.engine.Exists(corpusID) {
				return fmt.Errorf("corpus %q is empty; pass files to ingest first", corpusID)
			}

			model := tui.New(a.engine, corpusID, strings.Join(summaries, " "))
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&corpusID, "corpus", "default", "corpus identifier")
	return cmd
}
