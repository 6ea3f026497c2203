// Package gate decides whether a user event may trigger a model call at all.
// It deduplicates events by id and issues short-lived authorization tokens
// that the executor re-validates before calling the model.
package gate

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// UserActionType is how the user triggered an event.
type UserActionType string

const (
	ActionSend    UserActionType = "send"
	ActionClick   UserActionType = "click"
	ActionAuto    UserActionType = "auto"
	ActionUnknown UserActionType = "unknown"
)

// ParseUserActionType maps a name to a UserActionType; anything else is unknown.
func ParseUserActionType(s string) UserActionType {
	switch UserActionType(s) {
	case ActionSend, ActionClick, ActionAuto:
		return UserActionType(s)
	}
	return ActionUnknown
}

// TokenType marks tokens issued by a gate.
const TokenType = "GATE_PASS"

// Defaults.
const (
	DefaultTokenTTL      = 30 * time.Second
	DefaultMaxActionAge  = 5 * time.Second
	DefaultDedupCapacity = 1000
)

// ExecutionContext is what the UI knows at the moment the user acts.
type ExecutionContext struct {
	UserActionType  UserActionType   `json:"userActionType"`
	EventID         string           `json:"eventId"`
	ActionTimestamp time.Time        `json:"actionTimestamp"`
	HasValidInput   bool             `json:"hasValidInput"`
	SourceMessageID string           `json:"sourceMessageId,omitempty"`
	ActionType      types.ActionType `json:"actionType,omitempty"`
	// ContentHash is the Fingerprint of what the user confirmed. It is
	// copied into the token.
	ContentHash string `json:"contentHash,omitempty"`
}

// Content is what the user confirmed when acting: the instruction and the
// draft it applies to, if one was picked.
type Content struct {
	Instruction string
	Source      string
}

// Fingerprint is a non-cryptographic hash of the trimmed content.
func (c Content) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", strings.TrimSpace(c.Instruction), strings.TrimSpace(c.Source))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Token is proof that an event passed the gate. Times are Unix milliseconds.
type Token struct {
	Type           string         `json:"type"`
	EventID        string         `json:"eventId"`
	IssuedAt       int64          `json:"issuedAt"`
	ExpiresAt      int64          `json:"expiresAt"`
	UserActionType UserActionType `json:"userActionType"`
	ContentHash    string         `json:"contentHash,omitempty"`
	Signature      string         `json:"signature"`
}

// Decision is the gate's answer for one event.
type Decision struct {
	Authorized bool            `json:"authorized"`
	Reason     types.ErrorCode `json:"reason,omitempty"`
	Token      *Token          `json:"token,omitempty"`
}

// TokenError reports why a token was rejected.
type TokenError struct {
	Code   types.ErrorCode
	Detail string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Options configures a Gate. Zero values take the defaults.
type Options struct {
	TokenTTL      time.Duration
	MaxActionAge  time.Duration
	DedupCapacity int
	Now           func() time.Time
	// Secret salts token signatures. A random one is generated when empty.
	Secret string
}

// Gate is the single authority on whether a model call may proceed.
// Create one per session; its dedup state is not shared.
type Gate struct {
	mu           sync.Mutex
	now          func() time.Time
	secret       string
	tokenTTL     time.Duration
	maxActionAge time.Duration
	capacity     int

	seen  map[string]struct{}
	order []string // insertion order of seen, oldest first
}

// New creates a gate.
func New(opts Options) *Gate {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.MaxActionAge <= 0 {
		opts.MaxActionAge = DefaultMaxActionAge
	}
	if opts.DedupCapacity < 2 {
		opts.DedupCapacity = DefaultDedupCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Secret == "" {
		opts.Secret = uuid.NewString()
	}
	return &Gate{
		now:          opts.Now,
		secret:       opts.Secret,
		tokenTTL:     opts.TokenTTL,
		maxActionAge: opts.MaxActionAge,
		capacity:     opts.DedupCapacity,
		seen:         make(map[string]struct{}, opts.DedupCapacity),
	}
}

// CanExecute checks, in order: known action type, freshness, first sighting
// of the event id, non-empty input. The first failing check is the reason, so
// a repeated id that is also unknown or stale reports that instead. Only an
// authorized event is recorded in the dedup set.
func (g *Gate) CanExecute(ec ExecutionContext) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	deny := func(code types.ErrorCode) Decision {
		logging.GateWarn("deny event=%s action=%s: %s", ec.EventID, ec.UserActionType, code)
		logging.Audit(logging.AuditEvent{
			EventType: logging.AuditGateDeny,
			EventID:   ec.EventID,
			Action:    string(ec.ActionType),
			Code:      string(code),
		})
		return Decision{Authorized: false, Reason: code}
	}

	if ParseUserActionType(string(ec.UserActionType)) == ActionUnknown {
		return deny(types.CodeUnknownActionType)
	}
	if ec.ActionTimestamp.IsZero() || now.Sub(ec.ActionTimestamp) > g.maxActionAge {
		return deny(types.CodeStaleAction)
	}
	if _, dup := g.seen[ec.EventID]; dup {
		return deny(types.CodeDuplicateEvent)
	}
	if !ec.HasValidInput || ec.EventID == "" {
		return deny(types.CodeNoValidInput)
	}

	g.remember(ec.EventID)

	issued := now.UnixMilli()
	tok := &Token{
		Type:           TokenType,
		EventID:        ec.EventID,
		IssuedAt:       issued,
		ExpiresAt:      issued + g.tokenTTL.Milliseconds(),
		UserActionType: ec.UserActionType,
		ContentHash:    ec.ContentHash,
	}
	tok.Signature = g.sign(tok)

	logging.GateDebug("allow event=%s action=%s expires=%d", ec.EventID, ec.UserActionType, tok.ExpiresAt)
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditGateAllow,
		EventID:   ec.EventID,
		Action:    string(ec.ActionType),
		Success:   true,
	})
	return Decision{Authorized: true, Token: tok}
}

// ValidateToken checks type, signature and expiry. It does not consult the
// dedup set: a token stays usable for every attempt of its event until it expires.
func (g *Gate) ValidateToken(tok Token) error {
	if tok.Type != TokenType {
		return &TokenError{Code: types.CodeInvalidToken, Detail: "wrong token type"}
	}
	if tok.EventID == "" || tok.Signature != g.sign(&tok) {
		return &TokenError{Code: types.CodeInvalidToken, Detail: "signature mismatch"}
	}
	if g.now().UnixMilli() > tok.ExpiresAt {
		return &TokenError{Code: types.CodeTokenExpired, Detail: fmt.Sprintf("expired at %d", tok.ExpiresAt)}
	}
	return nil
}

// Seen reports whether an event id is in the dedup set.
func (g *Gate) Seen(eventID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[eventID]
	return ok
}

// Len is the current size of the dedup set.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// remember records an event id, clearing the oldest half when full.
// Caller holds g.mu.
func (g *Gate) remember(eventID string) {
	if len(g.seen) >= g.capacity {
		drop := g.capacity / 2
		for _, id := range g.order[:drop] {
			delete(g.seen, id)
		}
		g.order = append([]string(nil), g.order[drop:]...)
		logging.GateDebug("dedup set full, evicted %d oldest events", drop)
	}
	g.seen[eventID] = struct{}{}
	g.order = append(g.order, eventID)
}

// sign is a non-cryptographic checksum over
// eventId:issuedAt:userActionType:contentHash. It catches accidental misuse,
// not forgery.
func (g *Gate) sign(tok *Token) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%s:%s|%s", tok.EventID, tok.IssuedAt, tok.UserActionType, tok.ContentHash, g.secret)
	return fmt.Sprintf("%016x", h.Sum64())
}
