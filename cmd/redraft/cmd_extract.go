package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redraft/internal/topiclock"
)

var extractFile string

func runExtract(cmd *cobra.Command, args []string) error {
	source, err := readInput(cmd, extractFile)
	if err != nil {
		return err
	}

	locked := topiclock.NewExtractor().Extract(source, extractFile)
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, locked)
	}

	fmt.Fprintf(out, "Topic:    %s\n", locked.TopicSummary)
	fmt.Fprintf(out, "Format:   %s\n", locked.RequiredFormat)
	fmt.Fprintf(out, "Keywords: %v\n", locked.TopicKeywords)
	fmt.Fprintln(out, "Entities:")
	if len(locked.Entities) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, e := range locked.Entities {
		mark := " "
		if e.Critical {
			mark = "*"
		}
		fmt.Fprintf(out, "  %s %-10s %s\n", mark, e.Type, e.Value)
	}
	if len(locked.MustKeep) > 0 {
		fmt.Fprintln(out, "Must keep:")
		for _, s := range locked.MustKeep {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
	return nil
}
