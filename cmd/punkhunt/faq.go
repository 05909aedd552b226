// cmd/punkhunt/faq.go
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/punkhunt/internal/search"
)

func newFAQCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:     "faq <question...>",
		Aliases: []string{"ask", "howto"},
		Short:   "Search the game rules and FAQ",
		Example: `  punkhunt faq can I shoot my own ducks
  punkhunt faq -k 5 prize pool`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := search.Help()
			if err != nil {
				return err
			}
			return printFAQ(cmd.OutOrStdout(), idx, strings.Join(args, " "), k, cfg.HelpThreshold)
		},
	}
	cmd.Flags().IntVarP(&k, "results", "k", 3, "maximum number of answers")
	return cmd
}

func printFAQ(out io.Writer, idx search.Index, q string, k int, threshold float64) error {
	shown := 0
	for _, r := range idx.TopK(q, k) {
		if r.Score < threshold {
			continue
		}
		if shown > 0 {
			fmt.Fprintln(out)
		}
		boldColor.Fprintln(out, r.Section)
		fmt.Fprintln(out, r.Snippet)
		shown++
	}
	if shown == 0 {
		dimColor.Fprintln(out, "No matching answer. Try other words.")
	}
	return nil
}
