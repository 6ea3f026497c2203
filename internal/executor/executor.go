// Package executor is the only place a model call is made. Every call needs
// a gate token, is bound to the content the user confirmed and is classified
// into a small error taxonomy on failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"redraft/internal/gate"
	"redraft/internal/logging"
	"redraft/internal/types"
)

// DefaultTimeout is the hard cap on one model call.
const DefaultTimeout = 60 * time.Second

// TokenValidator re-checks gate tokens. *gate.Gate implements it.
type TokenValidator interface {
	ValidateToken(tok gate.Token) error
}

// Result is a successful model reply.
type Result struct {
	Content  string
	Usage    *Usage
	Duration time.Duration
}

// Options configures an Executor.
type Options struct {
	Timeout time.Duration
}

// Executor performs authorized model calls.
type Executor struct {
	validator TokenValidator
	transport Transport
	timeout   time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
	calls    int
}

// New creates an executor.
func New(validator TokenValidator, transport Transport, opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Executor{
		validator: validator,
		transport: transport,
		timeout:   opts.Timeout,
		inFlight:  make(map[string]struct{}),
	}
}

// Execute validates the token, checks the request content against the
// token's binding, claims the event, normalizes the request and performs
// exactly one transport call. Sequential calls with the same token are
// allowed; overlapping ones are rejected.
func (e *Executor) Execute(ctx context.Context, tok gate.Token, req Request) (*Result, error) {
	if err := e.validator.ValidateToken(tok); err != nil {
		var te *gate.TokenError
		if errors.As(err, &te) {
			return nil, NewError(te.Code, err)
		}
		return nil, NewError(types.CodeInvalidToken, err)
	}

	if tok.ContentHash != "" {
		if got := req.Content.Fingerprint(); got != tok.ContentHash {
			logging.APIWarn("event=%s rejected: content %s does not match confirmed %s", tok.EventID, got, tok.ContentHash)
			return nil, NewError(types.CodeBindingMismatch, fmt.Errorf("content hash %s, confirmed %s", got, tok.ContentHash))
		}
	}

	if !e.claim(tok.EventID) {
		logging.APIWarn("event=%s rejected: already in flight", tok.EventID)
		return nil, NewError(types.CodeConcurrentExecution, nil)
	}
	defer e.release(tok.EventID)

	payload, err := Normalize(req)
	if err != nil {
		logging.APIWarn("event=%s rejected: %v", tok.EventID, err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	logging.Audit(logging.AuditEvent{EventType: logging.AuditLLMRequest, EventID: tok.EventID, Success: true})
	start := time.Now()
	resp, err := e.transport.Send(ctx, tok.EventID, payload)
	elapsed := time.Since(start)

	if err == nil && resp == nil {
		err = &Error{Code: types.CodeAPIError, Message: Message(types.CodeAPIError), ReasonCode: "EMPTY_RESPONSE"}
	} else if err == nil && !resp.Success {
		err = &Error{
			Code:       types.CodeAPIError,
			Message:    Message(types.CodeAPIError),
			ReasonCode: resp.ReasonCode,
			Err:        errors.New(resp.Error),
		}
	}
	if err != nil {
		classified := classify(err)
		logging.APIError("event=%s failed after %v: %s", tok.EventID, elapsed, classified.Code)
		logging.Audit(logging.AuditEvent{
			EventType: logging.AuditLLMError,
			EventID:   tok.EventID,
			Code:      string(classified.Code),
			Duration:  elapsed,
		})
		return nil, classified
	}

	out := &Result{Duration: elapsed}
	if resp.Data != nil {
		out.Content = resp.Data.Content
		out.Usage = resp.Data.Usage
	}
	logging.API("event=%s completed in %v reply_len=%d", tok.EventID, elapsed, len(out.Content))
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditLLMResponse,
		EventID:   tok.EventID,
		Success:   true,
		Duration:  elapsed,
	})
	return out, nil
}

// Calls is the number of transport calls made so far.
func (e *Executor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Executor) claim(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[eventID]; busy {
		return false
	}
	e.inFlight[eventID] = struct{}{}
	return true
}

func (e *Executor) release(eventID string) {
	e.mu.Lock()
	delete(e.inFlight, eventID)
	e.mu.Unlock()
}
