package executor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"redraft/internal/types"
)

// Error is a classified pipeline failure. Pre-flight codes never reach the
// network; model-call codes wrap the transport error.
type Error struct {
	Code       types.ErrorCode `json:"code"`
	Message    string          `json:"message"`
	ReasonCode string          `json:"reasonCode,omitempty"` // server-supplied, API_ERROR only
	Err        error           `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.ReasonCode != "":
		return fmt.Sprintf("%s (%s): %s", e.Code, e.ReasonCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error carrying the default message for its code.
func NewError(code types.ErrorCode, err error) *Error {
	return &Error{Code: code, Message: Message(code), Err: err}
}

// CodeOf extracts the code of a classified error, or "" when err is not one.
func CodeOf(err error) types.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var messages = map[types.ErrorCode]string{
	types.CodeUnknownActionType:   "This action was not triggered by a recognized user gesture.",
	types.CodeStaleAction:         "This action is too old to run. Please try again.",
	types.CodeDuplicateEvent:      "This action is already being handled.",
	types.CodeNoValidInput:        "Type an instruction first.",
	types.CodeEmptyUserPrompt:     "The request has no prompt to send.",
	types.CodeBindingMismatch:     "The prompt changed after it was confirmed. Please send it again.",
	types.CodeRewriteNoContext:    "Select a draft to rewrite first.",
	types.CodeSourceAmbiguous:     "Several drafts could be meant. Pick the one to work on.",
	types.CodeInvalidToken:        "This request was not authorized.",
	types.CodeTokenExpired:        "This request took too long to start. Please try again.",
	types.CodeConcurrentExecution: "This action is already running.",
	types.CodeNoFallback:          "The model could not complete this request and it has no offline fallback. Please try again.",
	types.CodeTimeout:             "The model took too long to answer. Please try again.",
	types.CodeNetworkError:        "Could not reach the model service. Check your connection.",
	types.CodeAPIError:            "The model service returned an error.",
	types.CodeModelRefused:        "The model declined this request. Try rephrasing it.",
}

// Message is the user-facing text for an error code.
func Message(code types.ErrorCode) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "Something went wrong."
}

// classify maps a transport failure onto the model-call codes.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(types.CodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(types.CodeTimeout, err)
	}
	return NewError(types.CodeNetworkError, err)
}
