package executor

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"redraft/internal/gate"
	"redraft/internal/types"
)

// HistoryMessage is one prior turn forwarded to the model service.
type HistoryMessage struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// Request is what a caller asks the executor to send.
type Request struct {
	SystemMessage       string
	UserPrompt          string
	Meta                map[string]interface{}
	ConversationHistory []HistoryMessage

	// Content is the confirmed material the prompt was built from. It must
	// match the token's ContentHash when the token carries one.
	Content gate.Content

	// ContentHash and ContentLength bind the request to a literal prompt the
	// user confirmed. Either is checked only when set. See Bind.
	ContentHash   string
	ContentLength int

	// AllowHistoryFallback permits using the last user turn of
	// ConversationHistory when UserPrompt is empty.
	AllowHistoryFallback bool
}

// Bind records the hash and rune length of the current user prompt.
func (r *Request) Bind() {
	p := strings.TrimSpace(r.UserPrompt)
	r.ContentHash = ContentHash(p)
	r.ContentLength = utf8.RuneCountInString(p)
}

// Payload is the wire body of a model call.
type Payload struct {
	SystemMessage       string                 `json:"systemMessage"`
	UserPrompt          string                 `json:"userPrompt"`
	Meta                map[string]interface{} `json:"meta,omitempty"`
	ConversationHistory []HistoryMessage       `json:"conversationHistory,omitempty"`
}

// Response is the wire reply of the model service.
type Response struct {
	Success    bool          `json:"success"`
	Data       *ResponseData `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
	ReasonCode string        `json:"reasonCode,omitempty"`
}

// ResponseData carries the model output.
type ResponseData struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Usage is token accounting as reported by the service.
type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`
}

// ContentHash is a non-cryptographic fingerprint of a prompt.
func ContentHash(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Normalize resolves the prompt and checks its binding.
func Normalize(req Request) (Payload, error) {
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" && req.AllowHistoryFallback {
		for i := len(req.ConversationHistory) - 1; i >= 0; i-- {
			if m := req.ConversationHistory[i]; m.Role == types.RoleUser {
				prompt = strings.TrimSpace(m.Content)
				break
			}
		}
	}
	if prompt == "" {
		return Payload{}, NewError(types.CodeEmptyUserPrompt, nil)
	}

	if req.ContentHash != "" && ContentHash(prompt) != req.ContentHash {
		return Payload{}, &Error{
			Code:    types.CodeBindingMismatch,
			Message: Message(types.CodeBindingMismatch),
			Err:     fmt.Errorf("hash %s does not match prompt", req.ContentHash),
		}
	}
	if req.ContentLength > 0 && utf8.RuneCountInString(prompt) != req.ContentLength {
		return Payload{}, &Error{
			Code:    types.CodeBindingMismatch,
			Message: Message(types.CodeBindingMismatch),
			Err:     fmt.Errorf("length %d does not match prompt length %d", req.ContentLength, utf8.RuneCountInString(prompt)),
		}
	}

	return Payload{
		SystemMessage:       req.SystemMessage,
		UserPrompt:          prompt,
		Meta:                req.Meta,
		ConversationHistory: req.ConversationHistory,
	}, nil
}
