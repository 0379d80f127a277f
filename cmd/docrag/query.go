package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		corpusID string
		topK     int
	)
	cmd := &cobra.Command{
		Use:   "query [text...]",
		Short: "Run a one-shot query against a corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			matches, err := a.engine.Query(cmd.Context(), corpusID, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}
			for i, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %.4f  %s  %s\n", i+1, m.Score, m.Fragment.ID, condense(m.Fragment.Text))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusID, "corpus", "default", "corpus identifier")
	cmd.Flags().IntVar(&topK, "top", 5, "number of results")
	return cmd
}

// condense flattens whitespace so one match fits one line.
func condense(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
