package store

import (
	"context"
	"encoding/json"
	"fmt"

	"redraft/internal/logging"
	"redraft/internal/types"
)

// Repository stores typed session records on top of a Store.
type Repository struct {
	kv Store
}

// NewRepository wraps kv.
func NewRepository(kv Store) *Repository {
	return &Repository{kv: kv}
}

func stateKey(sessionID string) string { return "session/" + sessionID + "/state" }

func lockedKey(sessionID, sourceID string) string {
	return "session/" + sessionID + "/locked/" + sourceID
}

// LoadState returns the session's state, or a fresh one when none is stored.
func (r *Repository) LoadState(ctx context.Context, sessionID string) (*types.ConversationState, error) {
	raw, ok, err := r.kv.Get(ctx, stateKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state := &types.ConversationState{LastOutputs: []types.OutputReference{}}
	if !ok {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

// SaveState writes the session's state.
func (r *Repository) SaveState(ctx context.Context, sessionID string, state *types.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.kv.Set(ctx, stateKey(sessionID), raw); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	logging.StoreDebug("Saved state for session %s (v%d, %d outputs)", sessionID, state.Version, len(state.LastOutputs))
	return nil
}

// ClearState removes the session's state.
func (r *Repository) ClearState(ctx context.Context, sessionID string) error {
	if err := r.kv.Clear(ctx, stateKey(sessionID)); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}

// SaveLocked records the locked context extracted from one source.
// It is a snapshot for inspection; transforms always extract again.
func (r *Repository) SaveLocked(ctx context.Context, sessionID string, locked *types.LockedContext) error {
	raw, err := json.Marshal(locked)
	if err != nil {
		return fmt.Errorf("encode locked context: %w", err)
	}
	if err := r.kv.Set(ctx, lockedKey(sessionID, locked.SourceMessageID), raw); err != nil {
		return fmt.Errorf("save locked context: %w", err)
	}
	return nil
}

// LoadLocked returns the snapshot for a source, or nil when none is stored.
func (r *Repository) LoadLocked(ctx context.Context, sessionID, sourceID string) (*types.LockedContext, error) {
	raw, ok, err := r.kv.Get(ctx, lockedKey(sessionID, sourceID))
	if err != nil {
		return nil, fmt.Errorf("load locked context: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var locked types.LockedContext
	if err := json.Unmarshal(raw, &locked); err != nil {
		return nil, fmt.Errorf("decode locked context: %w", err)
	}
	return &locked, nil
}
