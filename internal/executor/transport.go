package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// Transport performs one model call. It must not retry.
type Transport interface {
	Send(ctx context.Context, eventID string, p Payload) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, eventID string, p Payload) (*Response, error)

func (f TransportFunc) Send(ctx context.Context, eventID string, p Payload) (*Response, error) {
	return f(ctx, eventID, p)
}

// Offline returns a transport that answers every call with reply.
func Offline(reply string) Transport {
	return TransportFunc(func(ctx context.Context, _ string, _ Payload) (*Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Response{Success: true, Data: &ResponseData{Content: reply}}, nil
	})
}

// maxResponseBytes caps how much of a reply body is read.
const maxResponseBytes = 4 << 20

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	// MinInterval paces consecutive calls; zero disables pacing.
	MinInterval time.Duration
	Client      *http.Client
}

// HTTPTransport posts payloads as JSON to the model service endpoint.
// The per-call deadline comes from the context; the client has no timeout.
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	t := &HTTPTransport{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
	if cfg.MinInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return t
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, eventID string, p Payload) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met.
			return nil, fmt.Errorf("pacing wait: %v: %w", err, context.DeadlineExceeded)
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", eventID)
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	logging.APIDebug("POST %s event=%s system_len=%d user_len=%d", t.endpoint, eventID, len(p.SystemMessage), len(p.UserPrompt))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out Response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Code:       types.CodeAPIError,
			Message:    Message(types.CodeAPIError),
			ReasonCode: out.ReasonCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, snippet(out.Error, raw)),
		}
		if apiErr.ReasonCode == "" {
			apiErr.ReasonCode = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, &Error{
			Code:       types.CodeAPIError,
			Message:    Message(types.CodeAPIError),
			ReasonCode: "MALFORMED_RESPONSE",
			Err:        fmt.Errorf("failed to parse response: %w", decodeErr),
		}
	}
	return &out, nil
}

// snippet prefers the service's error text and falls back to a short body prefix.
func snippet(msg string, raw []byte) string {
	if msg != "" {
		return msg
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
