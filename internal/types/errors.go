package types

// ErrorCode is the stable identifier of a pipeline failure.
type ErrorCode string

// Pre-flight rejections. The model is never called.
const (
	CodeUnknownActionType   ErrorCode = "UNKNOWN_ACTION_TYPE"
	CodeStaleAction         ErrorCode = "STALE_ACTION"
	CodeDuplicateEvent      ErrorCode = "DUPLICATE_EVENT"
	CodeNoValidInput        ErrorCode = "NO_VALID_INPUT"
	CodeEmptyUserPrompt     ErrorCode = "EMPTY_USER_PROMPT"
	CodeBindingMismatch     ErrorCode = "BINDING_MISMATCH"
	CodeRewriteNoContext    ErrorCode = "REWRITE_NO_CONTEXT"
	CodeSourceAmbiguous     ErrorCode = "SOURCE_AMBIGUOUS"
	CodeInvalidToken        ErrorCode = "INVALID_TOKEN"
	CodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	CodeConcurrentExecution ErrorCode = "CONCURRENT_EXECUTION"
	CodeNoFallback          ErrorCode = "NO_FALLBACK"
)

// Model-call failures.
const (
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeNetworkError ErrorCode = "NETWORK_ERROR"
	CodeAPIError     ErrorCode = "API_ERROR"
)

// CodeModelRefused reports a direct call whose reply was a refusal.
const CodeModelRefused ErrorCode = "MODEL_REFUSED"

// IsPreflight reports whether the code is raised before any network call.
func (c ErrorCode) IsPreflight() bool {
	switch c {
	case CodeTimeout, CodeNetworkError, CodeAPIError, CodeModelRefused:
		return false
	}
	return c != ""
}
