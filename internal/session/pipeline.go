// Package session wires one client session's pipeline:
//
//	UI event → Gate → Classify → Resolve source → Extract → Orchestrate → Persist
//
// A Pipeline owns its gate and executor, so dedup and in-flight state are
// per session and never shared across sessions.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"redraft/internal/articulation"
	"redraft/internal/config"
	"redraft/internal/executor"
	"redraft/internal/gate"
	"redraft/internal/logging"
	"redraft/internal/perception"
	"redraft/internal/store"
	"redraft/internal/topiclock"
	"redraft/internal/transform"
	"redraft/internal/types"
	"redraft/internal/usage"
)

// PreviewRunes is the length of the preview kept for each recorded output.
const PreviewRunes = 80

// Options configures a Pipeline. Nil fields take defaults built from Config.
type Options struct {
	Config    *config.Config
	Transport executor.Transport
	Store     store.Store
	SessionID string
	Now       func() time.Time
}

// Pipeline processes user events for one session.
type Pipeline struct {
	id  string
	cfg *config.Config
	now func() time.Time

	gate      *gate.Gate
	exec      *executor.Executor
	resolver  *perception.SourceResolver
	extractor *topiclock.Extractor
	validator *topiclock.Validator
	replies   *articulation.ReplyProcessor
	repo      *store.Repository
	usage     *usage.Tracker
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Transport == nil {
		opts.Transport = executor.NewHTTPTransport(executor.HTTPConfig{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.LLM.APIKey,
			MinInterval: cfg.GetMinRequestInterval(),
		})
	}

	g := gate.New(gate.Options{
		TokenTTL:      cfg.GetTokenTTL(),
		MaxActionAge:  cfg.GetMaxActionAge(),
		DedupCapacity: cfg.Gate.DedupCapacity,
		Now:           opts.Now,
	})

	resolver := perception.NewSourceResolver()
	if cfg.Transform.MinSourceLength > 0 {
		resolver.MinSourceLength = cfg.Transform.MinSourceLength
	}
	if cfg.Transform.MaxCandidates > 0 {
		resolver.MaxCandidates = cfg.Transform.MaxCandidates
	}

	validator := topiclock.NewValidator()
	if cfg.Transform.DriftThreshold > 0 {
		validator.DriftThreshold = cfg.Transform.DriftThreshold
	}
	if cfg.Transform.RecoverableDrift > 0 {
		validator.RecoverableDrift = cfg.Transform.RecoverableDrift
	}

	logging.Session("Creating pipeline for session %s", opts.SessionID)
	return &Pipeline{
		id:        opts.SessionID,
		cfg:       cfg,
		now:       opts.Now,
		gate:      g,
		exec:      executor.New(g, opts.Transport, executor.Options{Timeout: cfg.GetLLMTimeout()}),
		resolver:  resolver,
		extractor: &topiclock.Extractor{Now: opts.Now},
		validator: validator,
		replies:   articulation.NewReplyProcessor(),
		repo:      store.NewRepository(opts.Store),
		usage:     usage.NewTracker(opts.Store, opts.SessionID),
	}
}

// ID returns the session id.
func (p *Pipeline) ID() string { return p.id }

// Event is one user action as the UI reports it.
type Event struct {
	EventID        string
	UserActionType gate.UserActionType
	Timestamp      time.Time

	// Input is the user's free-text instruction.
	Input string
	// Messages is the visible conversation, oldest first.
	Messages []types.Message
	// SourceMessageID is set when the user picked a source explicitly.
	SourceMessageID string
	// Action overrides classification (toolbar buttons, CLI flag).
	Action types.ActionType

	TemplateSystemPrompt string
}

// Outcome is what the UI renders for one event.
type Outcome struct {
	EventID              string                     `json:"event_id"`
	Classification       types.ActionClassification `json:"classification"`
	Source               *types.SourceResolution    `json:"source,omitempty"`
	Success              bool                       `json:"success"`
	Content              string                     `json:"content"`
	OutputID             string                     `json:"output_id,omitempty"`
	RequiresConfirmation bool                       `json:"requires_confirmation"`
	Refused              bool                       `json:"refused,omitempty"`
	Transform            *transform.Result          `json:"transform,omitempty"`
	Candidates           []types.SourceCandidate    `json:"candidates,omitempty"`
	Error                *executor.Error            `json:"error,omitempty"`
	Duration             time.Duration              `json:"duration"`
}

// Process authorizes ev and runs it. Rejections (gate, source, model) are
// reported on the Outcome; the returned error is reserved for persistence
// failures.
func (p *Pipeline) Process(ctx context.Context, ev Event) (*Outcome, error) {
	tok, xe := p.Authorize(ev)
	if xe != nil {
		return &Outcome{EventID: ev.EventID, Error: xe}, nil
	}
	return p.Run(ctx, tok, ev)
}

// Authorize passes ev through the gate at the moment the user acts. The
// token is bound to the event's instruction and selected draft, so a later
// Run with different content is rejected before any model call.
func (p *Pipeline) Authorize(ev Event) (gate.Token, *executor.Error) {
	decision := p.gate.CanExecute(gate.ExecutionContext{
		UserActionType:  ev.UserActionType,
		EventID:         ev.EventID,
		ActionTimestamp: ev.Timestamp,
		HasValidInput:   strings.TrimSpace(ev.Input) != "" || ev.Action != "",
		SourceMessageID: ev.SourceMessageID,
		ActionType:      ev.Action,
		ContentHash:     confirmedContent(ev).Fingerprint(),
	})
	if !decision.Authorized {
		return gate.Token{}, executor.NewError(decision.Reason, nil)
	}
	return *decision.Token, nil
}

// confirmedContent is what the user confirmed with ev: the instruction and
// the draft they picked explicitly, if any.
func confirmedContent(ev Event) gate.Content {
	c := gate.Content{Instruction: ev.Input}
	if ev.SourceMessageID == "" {
		return c
	}
	for _, m := range ev.Messages {
		if m.ID == ev.SourceMessageID {
			c.Source = m.Content
			break
		}
	}
	return c
}

// Run handles an event authorized by Authorize.
//
// The loop:
//  1. Gate: done by Authorize, tok is reused by every model call
//  2. Classify: explicit action or pattern classification
//  3. META: answer locally, no model call
//  4. Resolve: pick the source for transforms and evaluations
//  5. Execute: orchestrated transform or one direct call
//  6. Persist: record the output in conversation state
func (p *Pipeline) Run(ctx context.Context, tok gate.Token, ev Event) (*Outcome, error) {
	start := p.now()
	out := &Outcome{EventID: ev.EventID}
	defer func() { out.Duration = p.now().Sub(start) }()

	logging.Session("session=%s event=%s input_len=%d messages=%d", p.id, ev.EventID, len(ev.Input), len(ev.Messages))

	// 2. Classify
	out.Classification = p.classify(ev)
	action := out.Classification.Type
	logging.SessionDebug("event=%s classified %s (%.2f)", ev.EventID, action, out.Classification.Confidence)

	// 3. META
	if out.Classification.Category == types.CategoryMeta {
		out.Success = true
		out.Content = MetaReply(ev.Input)
		return out, nil
	}

	// 4. Resolve
	var source types.SourceResolution
	if out.Classification.RequiresSource {
		source = p.resolver.Resolve(ev.Input, ev.Messages, ev.SourceMessageID)
		out.Source = &source
		switch {
		case source.Status == types.SourceAmbiguous:
			out.Candidates = source.Candidates
			out.Error = executor.NewError(types.CodeSourceAmbiguous, nil)
			return out, nil
		case !source.Resolved():
			out.Error = executor.NewError(types.CodeRewriteNoContext, nil)
			return out, nil
		}
	}

	// 5. Execute
	var locked *types.LockedContext
	switch out.Classification.Category {
	case types.CategoryTransform:
		res := p.runTransform(ctx, tok, ev, action, source)
		out.Transform = res
		out.Success = res.Success
		out.Content = res.Content
		out.RequiresConfirmation = res.RequiresConfirmation
		out.Error = res.Error
		locked = res.LockedContext
	default:
		p.runDirect(ctx, tok, ev, out, source)
	}
	if err := p.usage.Flush(ctx); err != nil {
		logging.Get(logging.CategorySession).Warn("event=%s usage not recorded: %v", ev.EventID, err)
	}

	if out.Content == "" || (!out.Success && !out.RequiresConfirmation) {
		return out, nil
	}

	// 6. Persist
	out.OutputID = uuid.NewString()
	if err := p.persist(ctx, out, action, source, locked); err != nil {
		logging.Get(logging.CategorySession).Error("event=%s persist failed: %v", ev.EventID, err)
		return out, fmt.Errorf("persist outcome: %w", err)
	}
	return out, nil
}

func (p *Pipeline) classify(ev Event) types.ActionClassification {
	if ev.Action == "" {
		return perception.ClassifyAction(ev.Input)
	}
	c := types.ActionClassification{
		Type:           ev.Action,
		Category:       types.CategoryOf(ev.Action),
		Confidence:     1,
		Signals:        []string{"explicit:" + string(ev.Action)},
		RequiresSource: types.RequiresSource(ev.Action),
	}
	if c.Category == types.CategoryTransform {
		c.TransformMode = perception.DetectTransformMode(ev.Input)
	}
	return c
}

func (p *Pipeline) runTransform(ctx context.Context, tok gate.Token, ev Event, action types.ActionType, src types.SourceResolution) *transform.Result {
	model := &boundModel{
		exec:    p.exec,
		tok:     tok,
		content: confirmedContent(ev),
		meta:    map[string]interface{}{"action": string(action), "sourceMessageId": src.SourceMessageID},
		usage:   p.usage,
		action:  string(action),
	}
	orch := transform.New(model, transform.Options{
		Extractor: p.extractor,
		Validator: p.validator,
		Replies:   p.replies,
	})
	return orch.Execute(ctx, transform.Request{
		Action:               action,
		SourceMessageID:      src.SourceMessageID,
		SourceContent:        src.SourceContent,
		UserInstruction:      ev.Input,
		TemplateSystemPrompt: ev.TemplateSystemPrompt,
	})
}

func (p *Pipeline) persist(ctx context.Context, out *Outcome, action types.ActionType, src types.SourceResolution, locked *types.LockedContext) error {
	state, err := p.repo.LoadState(ctx, p.id)
	if err != nil {
		return err
	}
	state.RecordOutput(types.OutputReference{
		MessageID: out.OutputID,
		Action:    action,
		Preview:   perception.Preview(out.Content, PreviewRunes),
		CreatedAt: p.now(),
	})
	if src.SourceMessageID != "" {
		state.ActiveSourceID = src.SourceMessageID
	}
	if locked != nil {
		state.LockedContext = locked
		if err := p.repo.SaveLocked(ctx, p.id, locked); err != nil {
			return err
		}
	}
	if err := p.repo.SaveState(ctx, p.id, state); err != nil {
		return err
	}
	logging.SessionDebug("session=%s recorded output %s (v%d)", p.id, out.OutputID, state.Version)
	return nil
}

// State returns the persisted conversation state of the session.
func (p *Pipeline) State(ctx context.Context) (*types.ConversationState, error) {
	return p.repo.LoadState(ctx, p.id)
}

// Reset clears the persisted conversation state of the session.
func (p *Pipeline) Reset(ctx context.Context) error {
	return p.repo.ClearState(ctx, p.id)
}

// Usage returns the token usage recorded for the session.
func (p *Pipeline) Usage(ctx context.Context) (usage.Stats, error) {
	return p.usage.Stats(ctx)
}

// ModelCalls is the number of model calls this session has made.
func (p *Pipeline) ModelCalls() int {
	return p.exec.Calls()
}
