package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redraft/internal/articulation"
)

var (
	contractSource string
	contractCheck  string
)

type contractReport struct {
	Contract articulation.Contract        `json:"contract"`
	Result   *articulation.ContractResult `json:"result,omitempty"`
}

func runContract(cmd *cobra.Command, args []string) error {
	instruction := joinArgs(args)

	var source string
	if contractSource != "" {
		s, err := readInput(cmd, contractSource)
		if err != nil {
			return err
		}
		source = s
	}

	report := contractReport{Contract: articulation.ExtractContract(instruction, source)}
	if contractCheck != "" {
		output, err := readInput(cmd, contractCheck)
		if err != nil {
			return err
		}
		res := articulation.ValidateContract(output, report.Contract)
		report.Result = &res
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, report)
	}

	reqs := report.Contract.Requirements()
	if len(reqs) == 0 {
		fmt.Fprintln(out, "No explicit requirements.")
	}
	for _, r := range reqs {
		fmt.Fprintf(out, "- %s\n", r)
	}

	if report.Result == nil {
		return nil
	}
	fmt.Fprintf(out, "\nWords: %d\n", report.Result.WordCount)
	for _, v := range report.Result.Violations {
		fmt.Fprintf(out, "%s %s: %s\n", v.Severity, v.Type, v.Message)
	}
	if report.Result.Passed {
		fmt.Fprintln(out, "PASS")
	} else {
		fmt.Fprintln(out, "FAIL")
	}
	return nil
}
