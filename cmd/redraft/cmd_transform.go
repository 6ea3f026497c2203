package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redraft/internal/diff"
	"redraft/internal/executor"
	"redraft/internal/gate"
	"redraft/internal/session"
	"redraft/internal/store"
	"redraft/internal/types"
)

var (
	transformFile        string
	transformInstruction string
	transformAction      string
	transformSession     string
	transformDiff        bool
	transformDryRun      bool
)

// dryRunReply is what the offline model answers every attempt with.
const dryRunReply = "I'm sorry, I can't help with that request."

// sourceMessageID names the draft inside the one-message CLI conversation.
const sourceMessageID = "draft"

func runTransform(cmd *cobra.Command, args []string) error {
	source, err := readInput(cmd, transformFile)
	if err != nil {
		return err
	}
	var action types.ActionType
	if transformAction != "" {
		a, ok := types.ParseActionType(transformAction)
		if !ok {
			return fmt.Errorf("unknown action %q", transformAction)
		}
		action = a
	}

	conf := currentConfig()
	kv, err := store.Open(conf.Store)
	if err != nil {
		return err
	}
	defer kv.Close()

	opts := session.Options{Config: conf, Store: kv, SessionID: transformSession}
	if transformDryRun {
		opts.Transport = executor.Offline(dryRunReply)
	} else if err := conf.Validate(); err != nil {
		return err
	}
	p := session.New(opts)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	outcome, err := p.Process(ctx, session.Event{
		EventID:         uuid.NewString(),
		UserActionType:  gate.ActionSend,
		Timestamp:       now,
		Input:           transformInstruction,
		Messages:        []types.Message{{ID: sourceMessageID, Role: types.RoleAssistant, Content: source, CreatedAt: now}},
		SourceMessageID: sourceMessageID,
		Action:          action,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, outcome)
	}
	return printOutcome(out, source, outcome)
}

func printOutcome(w io.Writer, source string, o *session.Outcome) error {
	if o.Content == "" {
		if o.Error != nil {
			for _, c := range o.Candidates {
				fmt.Fprintf(w, "  %s  %s\n", c.MessageID, c.Preview)
			}
			return fmt.Errorf("%s: %s", o.Error.Code, o.Error.Message)
		}
		if o.Refused {
			return fmt.Errorf("the model declined the request")
		}
		return fmt.Errorf("no output produced")
	}

	fmt.Fprintln(w, o.Content)

	if t := o.Transform; t != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "action=%s state=%s attempts=%d retry=%v fallback=%v\n",
			o.Classification.Type, t.FinalState, len(t.Attempts), t.RetryUsed, t.FallbackUsed)
		for _, warn := range t.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
	}
	if o.RequiresConfirmation {
		fmt.Fprintln(w, "This version did not pass every check. Review it before using it.")
	}

	if transformDiff {
		var rev *diff.Revision
		if strings.Contains(source, "\n") || strings.Contains(o.Content, "\n") {
			rev = diff.Lines(source, o.Content)
			fmt.Fprintf(w, "\n%s", rev.Unified())
		} else {
			rev = diff.Words(source, o.Content)
			fmt.Fprintf(w, "\n%s\n", rev.Inline())
		}
		fmt.Fprintln(w, rev.Stats.Summary())
	}
	return nil
}
