package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"redraft/internal/perception"
	"redraft/internal/types"
)

var classifyWorkers int

type classified struct {
	Input string                     `json:"input"`
	Class types.ActionClassification `json:"classification"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	results, err := classifyAll(cmd.Context(), args, classifyWorkers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, results)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tCATEGORY\tCONFIDENCE\tSOURCE\tSIGNALS\tINPUT")
	for _, r := range results {
		c := r.Class
		action := string(c.Type)
		if c.TransformMode != "" {
			action += "/" + string(c.TransformMode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%v\t%s\t%s\n",
			action, c.Category, c.Confidence, c.RequiresSource, strings.Join(c.Signals, ","), r.Input)
	}
	return tw.Flush()
}

// classifyAll classifies inputs concurrently; results keep the input order.
func classifyAll(ctx context.Context, inputs []string, workers int) ([]classified, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]classified, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = classified{Input: in, Class: perception.ClassifyAction(in)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
