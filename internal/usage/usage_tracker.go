// Package usage accounts model tokens per session and per action.
// Counts accumulate in memory and are merged into the session store on Flush.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"redraft/internal/logging"
	"redraft/internal/store"
)

// TokenCounts holds call and token sums.
type TokenCounts struct {
	Calls      int64 `json:"calls"`
	Prompt     int64 `json:"prompt"`
	Completion int64 `json:"completion"`
	Total      int64 `json:"total"`
}

// Add records one call.
func (tc *TokenCounts) Add(prompt, completion int) {
	tc.Calls++
	tc.Prompt += int64(prompt)
	tc.Completion += int64(completion)
	tc.Total += int64(prompt + completion)
}

func (tc *TokenCounts) merge(o TokenCounts) {
	tc.Calls += o.Calls
	tc.Prompt += o.Prompt
	tc.Completion += o.Completion
	tc.Total += o.Total
}

// Stats is the usage of one session.
type Stats struct {
	Total    TokenCounts            `json:"total"`
	ByAction map[string]TokenCounts `json:"by_action"`
}

func newStats() Stats {
	return Stats{ByAction: make(map[string]TokenCounts)}
}

func (s *Stats) merge(o Stats) {
	s.Total.merge(o.Total)
	for k, v := range o.ByAction {
		entry := s.ByAction[k]
		entry.merge(v)
		s.ByAction[k] = entry
	}
}

// Tracker records usage for one session.
type Tracker struct {
	mu      sync.Mutex
	kv      store.Store
	key     string
	pending Stats
}

// NewTracker creates a tracker persisting through kv.
func NewTracker(kv store.Store, sessionID string) *Tracker {
	return &Tracker{
		kv:      kv,
		key:     fmt.Sprintf("session/%s/usage", sessionID),
		pending: newStats(),
	}
}

// Track records one model call made for action.
func (t *Tracker) Track(action string, prompt, completion int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending.Total.Add(prompt, completion)
	addToMap(t.pending.ByAction, action, prompt, completion)
}

// Flush merges pending counts into the stored stats.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending.Total.Calls == 0 {
		return nil
	}

	stored, err := t.loadLocked(ctx)
	if err != nil {
		return err
	}
	stored.merge(t.pending)

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	if err := t.kv.Set(ctx, t.key, data); err != nil {
		return err
	}
	logging.StoreDebug("usage %s: %d calls, %d tokens", t.key, stored.Total.Calls, stored.Total.Total)
	t.pending = newStats()
	return nil
}

// Stats returns stored plus pending usage.
func (t *Tracker) Stats(ctx context.Context) (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats, err := t.loadLocked(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.merge(t.pending)
	return stats, nil
}

func (t *Tracker) loadLocked(ctx context.Context) (Stats, error) {
	stats := newStats()
	data, ok, err := t.kv.Get(ctx, t.key)
	if err != nil || !ok {
		return stats, err
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return newStats(), fmt.Errorf("decode usage: %w", err)
	}
	if stats.ByAction == nil {
		stats.ByAction = make(map[string]TokenCounts)
	}
	return stats, nil
}

func addToMap(m map[string]TokenCounts, key string, prompt, completion int) {
	entry := m[key]
	entry.Add(prompt, completion)
	m[key] = entry
}
