// Package transform runs a transform of a prior output through an escalation
// machine (NORMAL, STRICT, RELAXED) and falls back to a deterministic
// recomposition when every model attempt is a refusal or unusable.
package transform

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"redraft/internal/articulation"
	"redraft/internal/executor"
	"redraft/internal/logging"
	"redraft/internal/perception"
	"redraft/internal/prompt"
	"redraft/internal/topiclock"
	"redraft/internal/types"
)

// Model is the single model call an attempt makes. In production it is an
// executor bound to one gate token.
type Model interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f ModelFunc) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// Request is a transform of one source text.
type Request struct {
	Action               types.ActionType    `json:"action"`
	SourceMessageID      string              `json:"sourceMessageId"`
	SourceContent        string              `json:"sourceContent"`
	UserInstruction      string              `json:"userInstruction"`
	TemplateSystemPrompt string              `json:"templateSystemPrompt,omitempty"`
	TransformMode        types.TransformMode `json:"transformMode,omitempty"`
}

// Outcome is what happened in one attempt.
type Outcome string

const (
	OutcomePassed      Outcome = "passed"
	OutcomeRefusal     Outcome = "refusal"
	OutcomeMeaningless Outcome = "meaningless"
	OutcomeRejected    Outcome = "rejected"
	OutcomeError       Outcome = "error"
	OutcomeFallback    Outcome = "fallback"
)

// Attempt is one entry of the trace.
type Attempt struct {
	State       string          `json:"state"`
	Outcome     Outcome         `json:"outcome"`
	ReplyLength int             `json:"reply_length"`
	Code        types.ErrorCode `json:"code,omitempty"`
	Reasons     []string        `json:"reasons,omitempty"`
}

// Result is what the caller shows the user.
type Result struct {
	Success              bool                  `json:"success"`
	Content              string                `json:"content"`
	Validation           *Check                `json:"validation,omitempty"`
	RetryUsed            bool                  `json:"retry_used"`
	RequiresConfirmation bool                  `json:"requires_confirmation"`
	FallbackUsed         bool                  `json:"fallback_used"`
	FinalState           string                `json:"final_state"`
	Contract             articulation.Contract `json:"contract"`
	LockedContext        *types.LockedContext  `json:"locked_context,omitempty"`
	Attempts             []Attempt             `json:"attempts"`
	Warnings             []string              `json:"warnings,omitempty"`
	Error                *executor.Error       `json:"error,omitempty"`
}

// ModelCalls counts attempts that reached the model. Pre-flight rejections
// and the fallback entry do not.
func (r *Result) ModelCalls() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeFallback || (a.Outcome == OutcomeError && a.Code.IsPreflight()) {
			continue
		}
		n++
	}
	return n
}

// Options configures an Orchestrator. Nil fields take defaults.
type Options struct {
	Extractor *topiclock.Extractor
	Validator *topiclock.Validator
	Replies   *articulation.ReplyProcessor
}

// Orchestrator drives the escalation machine. It holds no per-request state.
type Orchestrator struct {
	model     Model
	extractor *topiclock.Extractor
	validator *topiclock.Validator
	replies   *articulation.ReplyProcessor
}

// New creates an orchestrator.
func New(model Model, opts Options) *Orchestrator {
	if opts.Extractor == nil {
		opts.Extractor = topiclock.NewExtractor()
	}
	if opts.Validator == nil {
		opts.Validator = topiclock.NewValidator()
	}
	if opts.Replies == nil {
		opts.Replies = articulation.NewReplyProcessor()
	}
	return &Orchestrator{
		model:     model,
		extractor: opts.Extractor,
		validator: opts.Validator,
		replies:   opts.Replies,
	}
}

// run is the per-request state shared by the attempts.
type run struct {
	req          Request
	source       string
	locked       *types.LockedContext
	contract     articulation.Contract
	targetFormat types.Format
	mode         types.TransformMode
	result       *Result
}

// Execute runs the machine. The locked context is extracted fresh from the
// source on every call.
func (o *Orchestrator) Execute(ctx context.Context, req Request) *Result {
	timer := logging.StartTimer(logging.CategoryTransform, "Execute")
	defer timer.Stop()

	source := strings.TrimSpace(req.SourceContent)
	if source == "" {
		logging.TransformWarn("action=%s rejected: no source", req.Action)
		return &Result{
			Error:      executor.NewError(types.CodeRewriteNoContext, nil),
			FinalState: StateNormal.String(),
			Attempts:   []Attempt{},
		}
	}

	r := &run{
		req:      req,
		source:   source,
		locked:   o.extractor.Extract(source, req.SourceMessageID),
		contract: articulation.ExtractContract(req.UserInstruction, source),
		mode:     req.TransformMode,
	}
	if r.mode == "" {
		r.mode = perception.DetectTransformMode(req.UserInstruction)
	}
	if req.Action == types.ActionFormatConvert {
		r.targetFormat = prompt.ParseTargetFormat(req.UserInstruction)
	}
	r.result = &Result{
		Contract:      r.contract,
		LockedContext: r.locked,
		Attempts:      []Attempt{},
	}

	logging.Transform("action=%s source=%s source_len=%d entities=%d mode=%s",
		req.Action, req.SourceMessageID, utf8.RuneCountInString(source), len(r.locked.Entities), r.mode)

	state := StateNormal
	for ; state.CallsModel(); state = state.Next() {
		done, abort := o.attempt(ctx, r, state)
		if done {
			return o.finish(r, state)
		}
		if abort {
			break
		}
	}
	return o.fallback(r)
}

// attempt makes one model call in state. done means a result was set;
// abort means the remaining attempts cannot succeed.
func (o *Orchestrator) attempt(ctx context.Context, r *run, state State) (done, abort bool) {
	system := prompt.InjectConstraints(r.req.TemplateSystemPrompt, r.locked, state.Mode())
	user := prompt.BuildInstruction(prompt.InstructionRequest{
		Action:          r.req.Action,
		Mode:            state.Mode(),
		TransformMode:   r.mode,
		UserInstruction: r.req.UserInstruction,
		Source:          r.source,
		Contract:        r.contract,
		TargetFormat:    r.targetFormat,
	})

	rec := Attempt{State: state.String()}
	defer func() {
		r.result.Attempts = append(r.result.Attempts, rec)
		logging.Audit(logging.AuditEvent{
			EventType: logging.AuditTransformAttempt,
			Action:    string(r.req.Action),
			State:     rec.State,
			Code:      string(rec.Code),
			Success:   rec.Outcome == OutcomePassed,
			Fields:    map[string]interface{}{"outcome": string(rec.Outcome), "reply_len": rec.ReplyLength},
		})
	}()

	raw, err := o.model.CompleteWithSystem(ctx, system, user)
	if err != nil {
		rec.Outcome = OutcomeError
		rec.Code = executor.CodeOf(err)
		rec.Reasons = []string{err.Error()}
		logging.TransformWarn("state=%s model call failed: %v", state, err)
		if rec.Code == types.CodeBindingMismatch {
			// The source or instruction changed after confirmation; nothing
			// may be produced from it, not even a fallback.
			r.result.Error = asExecutorError(err)
			return true, false
		}
		// Pre-flight and cancellation failures repeat on every attempt.
		return false, rec.Code.IsPreflight() || ctx.Err() != nil
	}

	reply := o.replies.Process(raw)
	rec.ReplyLength = utf8.RuneCountInString(reply.Content)

	switch Triage(reply.Content, r.source) {
	case ReplyRefusal:
		rec.Outcome = OutcomeRefusal
		logging.TransformDebug("state=%s refusal (len=%d), escalating", state, rec.ReplyLength)
		return false, false
	case ReplyMeaningless:
		rec.Outcome = OutcomeMeaningless
		logging.TransformDebug("state=%s meaningless reply (len=%d), escalating", state, rec.ReplyLength)
		return false, false
	}

	check := CheckOutput(o.validator, CheckInput{
		Action:         r.req.Action,
		Locked:         r.locked,
		Source:         r.source,
		Output:         reply.Content,
		Contract:       r.contract,
		RequiredFormat: r.targetFormat,
	})
	rec.Reasons = check.Reasons

	if check.Passed {
		rec.Outcome = OutcomePassed
		r.result.Success = true
		r.result.Content = reply.Content
		r.result.Validation = &check
		r.result.Warnings = append(reply.Warnings, check.Warnings...)
		return true, false
	}

	rec.Outcome = OutcomeRejected
	if check.Recoverable && !state.IsLastAttempt() {
		logging.TransformDebug("state=%s validation failed (recoverable): %s", state, strings.Join(check.Reasons, "; "))
		return false, false
	}

	logging.TransformWarn("state=%s validation failed, needs confirmation: %s", state, strings.Join(check.Reasons, "; "))
	r.result.Success = false
	r.result.Content = reply.Content
	r.result.RequiresConfirmation = true
	r.result.Validation = &check
	r.result.Warnings = append(reply.Warnings, check.Warnings...)
	return true, false
}

func (o *Orchestrator) finish(r *run, state State) *Result {
	res := r.result
	res.FinalState = state.String()
	res.RetryUsed = res.ModelCalls() > 1
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditTransformComplete,
		Action:    string(r.req.Action),
		State:     res.FinalState,
		Success:   res.Success,
		Fields:    map[string]interface{}{"attempts": len(res.Attempts), "requires_confirmation": res.RequiresConfirmation},
	})
	return res
}

func (o *Orchestrator) fallback(r *run) *Result {
	res := r.result
	res.FinalState = StateFallback.String()

	content, err := Fallback(FallbackInput{
		Action:       r.req.Action,
		Source:       r.source,
		Locked:       r.locked,
		Contract:     r.contract,
		TargetFormat: r.targetFormat,
	})
	rec := Attempt{State: StateFallback.String(), Outcome: OutcomeFallback}
	if err != nil {
		rec.Code = executor.CodeOf(err)
		res.Attempts = append(res.Attempts, rec)
		res.Error = asExecutorError(err)
		logging.TransformWarn("action=%s: fallback unavailable: %v", r.req.Action, err)
		return res
	}
	rec.ReplyLength = utf8.RuneCountInString(content)
	res.Attempts = append(res.Attempts, rec)

	check := CheckOutput(o.validator, CheckInput{
		Action:         r.req.Action,
		Locked:         r.locked,
		Source:         r.source,
		Output:         content,
		Contract:       r.contract,
		RequiredFormat: r.targetFormat,
	})
	res.Success = true
	res.Content = content
	res.FallbackUsed = true
	res.RetryUsed = true
	res.Validation = &check
	res.Warnings = append(res.Warnings, "model attempts were unusable; deterministic fallback applied")

	logging.Transform("action=%s fell back after %d model calls", r.req.Action, res.ModelCalls())
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditTransformFallback,
		Action:    string(r.req.Action),
		State:     res.FinalState,
		Success:   true,
		Fields:    map[string]interface{}{"attempts": len(res.Attempts)},
	})
	return res
}

func asExecutorError(err error) *executor.Error {
	if e, ok := err.(*executor.Error); ok {
		return e
	}
	return executor.NewError(types.CodeNoFallback, fmt.Errorf("fallback: %w", err))
}
