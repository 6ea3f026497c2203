package session

import (
	"context"
	"errors"

	"redraft/internal/executor"
	"redraft/internal/gate"
	"redraft/internal/logging"
	"redraft/internal/perception"
	"redraft/internal/types"
	"redraft/internal/usage"
)

// boundModel is the executor seen through one gate token. Every attempt of
// the event reuses the token and carries the event's content for the
// token's binding check.
type boundModel struct {
	exec    *executor.Executor
	tok     gate.Token
	content gate.Content
	meta    map[string]interface{}
	history []executor.HistoryMessage
	usage   *usage.Tracker
	action  string
}

func (m *boundModel) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := executor.Request{
		SystemMessage:       systemPrompt,
		UserPrompt:          userPrompt,
		Meta:                m.meta,
		ConversationHistory: m.history,
		Content:             m.content,
	}
	res, err := m.exec.Execute(ctx, m.tok, req)
	if err != nil {
		return "", err
	}
	if m.usage != nil {
		var prompt, completion int
		if res.Usage != nil {
			prompt, completion = res.Usage.PromptTokens, res.Usage.CompletionTokens
		}
		m.usage.Track(m.action, prompt, completion)
	}
	return res.Content, nil
}

// historyTurns bounds the conversation forwarded with a direct call.
const historyTurns = 10

const defaultGenerationPrompt = "You are a marketing copywriter. Write ready-to-publish content in the user's language. Reply with the content only."

const defaultEvaluationPrompt = "You are an editor. Evaluate the text the user provides against their request. Be specific and brief."

// runDirect makes the single model call of a generation or evaluation event.
func (p *Pipeline) runDirect(ctx context.Context, tok gate.Token, ev Event, out *Outcome, src types.SourceResolution) {
	action := out.Classification.Type

	system := ev.TemplateSystemPrompt
	user := ev.Input
	var history []executor.HistoryMessage

	if out.Classification.Category == types.CategoryEvaluation {
		if system == "" {
			system = defaultEvaluationPrompt
		}
		user = ev.Input + "\n\nText to evaluate:\n\"\"\"\n" + src.SourceContent + "\n\"\"\""
	} else {
		if system == "" {
			system = defaultGenerationPrompt
		}
		history = recentHistory(ev.Messages, historyTurns)
	}

	model := &boundModel{
		exec:    p.exec,
		tok:     tok,
		content: confirmedContent(ev),
		meta:    map[string]interface{}{"action": string(action)},
		history: history,
		usage:   p.usage,
		action:  string(action),
	}
	raw, err := model.CompleteWithSystem(ctx, system, user)
	if err != nil {
		var xe *executor.Error
		if !errors.As(err, &xe) {
			xe = executor.NewError(types.CodeNetworkError, err)
		}
		out.Error = xe
		return
	}

	reply := p.replies.Process(raw)
	if perception.IsRefusal(reply.Content) {
		logging.Get(logging.CategorySession).Warn("event=%s %s reply was a refusal (len=%d)", ev.EventID, action, len(reply.Content))
		out.Refused = true
		out.Error = executor.NewError(types.CodeModelRefused, nil)
		return
	}
	out.Success = true
	out.Content = reply.Content
}

func recentHistory(messages []types.Message, n int) []executor.HistoryMessage {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	out := make([]executor.HistoryMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, executor.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
