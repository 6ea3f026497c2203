package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"redraft/internal/config"
	"redraft/internal/executor"
	"redraft/internal/gate"
	"redraft/internal/store"
	"redraft/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	coffeeSource = "Highlands coffee discount: 30% off coffee until 31/10. The coffee discount covers every coffee drink on the menu. Visit a Highlands store to claim the discount."
	goodShorten  = "Highlands: 30% off every coffee drink on the menu until 31/10. Visit a store to claim the discount."
	teaSource    = "Phuc Long tea week: buy one milk tea, get one free at every Phuc Long shop this weekend."
	refusal      = "I'm sorry, but I can't help with that request."
)

var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// recorder is a transport that replays replies and records payloads.
type recorder struct {
	mu       sync.Mutex
	replies  []string
	err      error
	payloads []executor.Payload
	events   []string
}

func (r *recorder) Send(ctx context.Context, eventID string, p executor.Payload) (*executor.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := len(r.payloads)
	r.payloads = append(r.payloads, p)
	r.events = append(r.events, eventID)
	if r.err != nil {
		return nil, r.err
	}
	reply := r.replies[len(r.replies)-1]
	if i < len(r.replies) {
		reply = r.replies[i]
	}
	return &executor.Response{Success: true, Data: &executor.ResponseData{Content: reply}}, nil
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func newPipeline(t *testing.T, tr executor.Transport) *Pipeline {
	t.Helper()
	return New(Options{
		Config:    config.DefaultConfig(),
		Transport: tr,
		Store:     store.NewMemoryStore(),
		SessionID: "s1",
		Now:       func() time.Time { return now },
	})
}

func event(id, input string, messages ...types.Message) Event {
	return Event{
		EventID:        id,
		UserActionType: gate.ActionSend,
		Timestamp:      now.Add(-time.Second),
		Input:          input,
		Messages:       messages,
	}
}

func assistant(id, content string) types.Message {
	return types.Message{ID: id, Role: types.RoleAssistant, Content: content}
}

func user(id, content string) types.Message {
	return types.Message{ID: id, Role: types.RoleUser, Content: content}
}

func TestProcess_TransformPasses(t *testing.T) {
	ctx := context.Background()
	tr := &recorder{replies: []string{goodShorten}}
	p := newPipeline(t, tr)

	out, err := p.Process(ctx, event("e1", "shorten the above post", user("u1", "write a promo"), assistant("a1", coffeeSource)))
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, goodShorten, out.Content)
	assert.Equal(t, types.ActionShorten, out.Classification.Type)
	require.NotNil(t, out.Source)
	assert.Equal(t, "a1", out.Source.SourceMessageID)
	assert.NotEmpty(t, out.OutputID)
	require.NotNil(t, out.Transform)
	assert.False(t, out.Transform.RetryUsed)

	require.Equal(t, 1, tr.calls())
	assert.Equal(t, "e1", tr.events[0])
	assert.Contains(t, tr.payloads[0].SystemMessage, "30%")
	assert.Contains(t, tr.payloads[0].UserPrompt, coffeeSource)
	assert.Equal(t, "SHORTEN", tr.payloads[0].Meta["action"])
	assert.Equal(t, 1, p.ModelCalls())

	state, err := p.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.LastOutputs, 1)
	assert.Equal(t, out.OutputID, state.LastOutputs[0].MessageID)
	assert.Equal(t, types.ActionShorten, state.LastOutputs[0].Action)
	assert.Equal(t, "a1", state.ActiveSourceID)
	assert.Equal(t, 1, state.Version)
	require.NotNil(t, state.LockedContext)
	assert.Equal(t, "a1", state.LockedContext.SourceMessageID)

	locked, err := p.repo.LoadLocked(ctx, "s1", "a1")
	require.NoError(t, err)
	require.NotNil(t, locked)
}

func TestProcess_RefusingModelStillProducesContent(t *testing.T) {
	tr := &recorder{replies: []string{refusal}}
	p := newPipeline(t, tr)

	out, err := p.Process(context.Background(), event("e1", "rewrite the above post", assistant("a1", coffeeSource)))
	require.NoError(t, err)

	assert.Equal(t, 3, tr.calls())
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.Content)
	assert.NotEqual(t, coffeeSource, out.Content)
	assert.True(t, out.Transform.FallbackUsed)
	assert.True(t, out.Transform.RetryUsed)
	for _, id := range tr.events {
		assert.Equal(t, "e1", id, "every attempt runs under the same event")
	}
}

func TestProcess_GateRejections(t *testing.T) {
	msgs := []types.Message{assistant("a1", coffeeSource)}
	tests := []struct {
		name  string
		ev    Event
		wantC types.ErrorCode
	}{
		{"stale", Event{EventID: "e1", UserActionType: gate.ActionClick, Timestamp: now.Add(-6 * time.Second), Input: "shorten", Messages: msgs}, types.CodeStaleAction},
		{"unknown action", Event{EventID: "e2", UserActionType: "hover", Timestamp: now, Input: "shorten", Messages: msgs}, types.CodeUnknownActionType},
		{"empty input", Event{EventID: "e3", UserActionType: gate.ActionSend, Timestamp: now, Input: "   ", Messages: msgs}, types.CodeNoValidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &recorder{replies: []string{goodShorten}}
			out, err := newPipeline(t, tr).Process(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.False(t, out.Success)
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.wantC, out.Error.Code)
			assert.Zero(t, tr.calls())
		})
	}
}

func TestProcess_DuplicateEvent(t *testing.T) {
	tr := &recorder{replies: []string{goodShorten}}
	p := newPipeline(t, tr)
	ev := event("e1", "shorten the above post", assistant("a1", coffeeSource))

	first, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, second.Error)
	assert.Equal(t, types.CodeDuplicateEvent, second.Error.Code)
	assert.Equal(t, 1, tr.calls())
}

func TestProcess_AmbiguousSource(t *testing.T) {
	ctx := context.Background()
	tr := &recorder{replies: []string{goodShorten}}
	p := newPipeline(t, tr)
	msgs := []types.Message{assistant("a1", coffeeSource), user("u2", "another"), assistant("a2", teaSource)}

	out, err := p.Process(ctx, event("e1", "shorten", msgs...))
	require.NoError(t, err)
	require.NotNil(t, out.Error)
	assert.Equal(t, types.CodeSourceAmbiguous, out.Error.Code)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, "a2", out.Candidates[0].MessageID)
	assert.Zero(t, tr.calls())

	// The user picks a candidate; the UI sends a new event.
	ev := event("e2", "shorten", msgs...)
	ev.SourceMessageID = "a1"
	out, err = p.Process(ctx, ev)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, types.SourceExplicit, out.Source.Status)
	assert.Equal(t, 1, tr.calls())
}

func TestProcess_NoSource(t *testing.T) {
	tr := &recorder{replies: []string{goodShorten}}
	out, err := newPipeline(t, tr).Process(context.Background(), event("e1", "shorten the above post", user("u1", "hi")))
	require.NoError(t, err)
	require.NotNil(t, out.Error)
	assert.Equal(t, types.CodeRewriteNoContext, out.Error.Code)
	assert.Equal(t, "Select a draft to rewrite first.", out.Error.Message)
	assert.Zero(t, tr.calls())
}

func TestProcess_MetaIsLocal(t *testing.T) {
	ctx := context.Background()
	tr := &recorder{replies: []string{"unused"}}
	p := newPipeline(t, tr)

	out, err := p.Process(ctx, event("e1", "what can you do?"))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, types.ActionMeta, out.Classification.Type)
	assert.Equal(t, MetaReply("what can you do?"), out.Content)
	assert.Zero(t, tr.calls())

	state, err := p.State(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Version)
}

func TestProcess_Generation(t *testing.T) {
	ctx := context.Background()
	reply := "Highlands coffee is brewing something special this October."
	tr := &recorder{replies: []string{"Here is your post:\n" + reply}}
	p := newPipeline(t, tr)

	out, err := p.Process(ctx, event("e1", "write a post about coffee", user("u1", "hello"), assistant("a1", coffeeSource)))
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, reply, out.Content)
	assert.Nil(t, out.Source)
	require.Equal(t, 1, tr.calls())
	assert.Equal(t, "write a post about coffee", tr.payloads[0].UserPrompt)
	assert.Len(t, tr.payloads[0].ConversationHistory, 2)

	state, err := p.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.LastOutputs, 1)
	assert.Equal(t, types.ActionCreateContent, state.LastOutputs[0].Action)
	assert.Empty(t, state.ActiveSourceID)
}

func TestProcess_GenerationRefused(t *testing.T) {
	ctx := context.Background()
	tr := &recorder{replies: []string{refusal}}
	p := newPipeline(t, tr)

	out, err := p.Process(ctx, event("e1", "write a post about coffee"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.True(t, out.Refused)
	assert.Empty(t, out.Content)
	require.NotNil(t, out.Error, "a refusal must come with an actionable error")
	assert.Equal(t, types.CodeModelRefused, out.Error.Code)
	assert.Equal(t, "The model declined this request. Try rephrasing it.", out.Error.Message)
	assert.Equal(t, 1, tr.calls())

	state, err := p.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.LastOutputs)
}

func TestRun_SourceEditedAfterAuthorize(t *testing.T) {
	ctx := context.Background()
	tr := &recorder{replies: []string{goodShorten}}
	p := newPipeline(t, tr)

	ev := event("e1", "shorten this", assistant("m1", coffeeSource))
	ev.SourceMessageID = "m1"
	tok, xe := p.Authorize(ev)
	require.Nil(t, xe)

	ev.Messages = []types.Message{assistant("m1", teaSource)}
	out, err := p.Run(ctx, tok, ev)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Empty(t, out.Content)
	require.NotNil(t, out.Error)
	assert.Equal(t, types.CodeBindingMismatch, out.Error.Code)
	require.NotNil(t, out.Transform)
	assert.False(t, out.Transform.FallbackUsed)
	assert.Equal(t, 0, tr.calls())

	state, err := p.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.LastOutputs)
}

func TestRun_InstructionEditedAfterAuthorize(t *testing.T) {
	tr := &recorder{replies: []string{"Fresh coffee post."}}
	p := newPipeline(t, tr)

	ev := event("e1", "write a post about coffee")
	tok, xe := p.Authorize(ev)
	require.Nil(t, xe)

	ev.Input = "write a post about tea"
	out, err := p.Run(context.Background(), tok, ev)
	require.NoError(t, err)
	require.NotNil(t, out.Error)
	assert.Equal(t, types.CodeBindingMismatch, out.Error.Code)
	assert.Equal(t, 0, tr.calls())
}

func TestRun_UnchangedEventPasses(t *testing.T) {
	tr := &recorder{replies: []string{goodShorten}}
	p := newPipeline(t, tr)

	ev := event("e1", "shorten this", assistant("m1", coffeeSource))
	ev.SourceMessageID = "m1"
	tok, xe := p.Authorize(ev)
	require.Nil(t, xe)
	assert.Equal(t, gate.Content{Instruction: "shorten this", Source: coffeeSource}.Fingerprint(), tok.ContentHash)

	out, err := p.Run(context.Background(), tok, ev)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, goodShorten, out.Content)
	assert.Equal(t, 1, tr.calls())
}

func TestProcess_Evaluation(t *testing.T) {
	tr := &recorder{replies: []string{"Solid post: the offer and deadline are clear, add a stronger closing line."}}
	p := newPipeline(t, tr)

	out, err := p.Process(context.Background(), event("e1", "review this post", assistant("a1", coffeeSource)))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, types.ActionEvaluate, out.Classification.Type)
	require.Equal(t, 1, tr.calls())
	assert.Contains(t, tr.payloads[0].UserPrompt, coffeeSource)
	assert.Empty(t, tr.payloads[0].ConversationHistory)
}

func TestProcess_ModelFailure(t *testing.T) {
	tr := &recorder{err: errors.New("connection refused")}
	out, err := newPipeline(t, tr).Process(context.Background(), event("e1", "write a post about coffee"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, types.CodeNetworkError, out.Error.Code)
}

func TestProcess_ExplicitAction(t *testing.T) {
	tr := &recorder{replies: []string{goodShorten}}
	ev := event("e1", "", assistant("a1", coffeeSource))
	ev.UserActionType = gate.ActionClick
	ev.Action = types.ActionShorten

	out, err := newPipeline(t, tr).Process(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1.0, out.Classification.Confidence)
	assert.Equal(t, []string{"explicit:SHORTEN"}, out.Classification.Signals)
}

func TestProcess_RecordsUsage(t *testing.T) {
	ctx := context.Background()
	tr := executor.TransportFunc(func(ctx context.Context, _ string, _ executor.Payload) (*executor.Response, error) {
		return &executor.Response{Success: true, Data: &executor.ResponseData{
			Content: goodShorten,
			Usage:   &executor.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
		}}, nil
	})
	kv := store.NewMemoryStore()
	p := New(Options{Transport: tr, Store: kv, SessionID: "s1", Now: func() time.Time { return now }})

	_, err := p.Process(ctx, event("e1", "shorten the above post", assistant("a1", coffeeSource)))
	require.NoError(t, err)

	stats, err := p.Usage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total.Calls)
	assert.EqualValues(t, 150, stats.Total.Total)
	assert.EqualValues(t, 1, stats.ByAction["SHORTEN"].Calls)

	// A fresh pipeline on the same store sees the persisted counts.
	again := New(Options{Transport: tr, Store: kv, SessionID: "s1", Now: func() time.Time { return now }})
	stats, err = again.Usage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 150, stats.Total.Total)
}

func TestProcess_MetaRecordsNoUsage(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, &recorder{replies: []string{"unused"}})
	_, err := p.Process(ctx, event("e1", "what can you do"))
	require.NoError(t, err)

	stats, err := p.Usage(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total.Calls)
}

func TestPipeline_ConfigThresholds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transform.MinSourceLength = 200
	cfg.Transform.DriftThreshold = 0.9
	p := New(Options{Config: cfg, Transport: executor.Offline("x")})

	assert.Equal(t, 200, p.resolver.MinSourceLength)
	assert.Equal(t, 0.9, p.validator.DriftThreshold)
	assert.NotEmpty(t, p.ID())
}

func TestPipeline_Reset(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, &recorder{replies: []string{goodShorten}})
	_, err := p.Process(ctx, event("e1", "shorten the above post", assistant("a1", coffeeSource)))
	require.NoError(t, err)

	require.NoError(t, p.Reset(ctx))
	state, err := p.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.LastOutputs)
}

func TestMetaReply_Language(t *testing.T) {
	assert.Contains(t, MetaReply("bạn làm được gì?"), "Mình có thể")
	assert.Contains(t, MetaReply("who are you"), "I can")
}
