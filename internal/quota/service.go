package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Regdarim/arni-worker/internal/kv"
	log "github.com/Regdarim/arni-worker/internal/logging"
)

// StateKey is the singleton key holding the window record.
const StateKey = "claude_max_usage"

// Service persists window state in the key-value store. It holds no
// in-process copy of the record; every call is a fresh read.
type Service struct {
	store  kv.Store
	limits func() Limits
}

// NewService wires the store and a limits provider. The provider is
// called per operation so hot-reloaded limits take effect immediately.
func NewService(store kv.Store, limits func() Limits) *Service {
	return &Service{store: store, limits: limits}
}

func (s *Service) load(ctx context.Context, now time.Time) State {
	limits := s.limits()
	raw, ok, err := s.store.Get(ctx, StateKey)
	if err != nil {
		log.Debugf("quota: read state: %v", err)
		return DefaultState(limits, now)
	}
	if !ok {
		return DefaultState(limits, now)
	}
	var state State
	if err := sonic.UnmarshalString(raw, &state); err != nil {
		// Malformed persisted JSON is treated as absent.
		log.Warnf("quota: malformed state record, falling back to defaults: %v", err)
		return DefaultState(limits, now)
	}
	return state
}

// Read returns the reconciled snapshot without persisting the
// reconciliation.
func (s *Service) Read(ctx context.Context) (Snapshot, error) {
	if s.store == nil {
		return Snapshot{}, fmt.Errorf("quota: no store bound")
	}
	now := time.Now()
	return Read(s.load(ctx, now), s.limits(), now), nil
}

// Record applies the token usage and persists the updated state
// (overwrite, derived fields stripped).
func (s *Service) Record(ctx context.Context, tokensIn, tokensOut int) (State, error) {
	if s.store == nil {
		return State{}, fmt.Errorf("quota: no store bound")
	}
	now := time.Now()
	state := Record(s.load(ctx, now), s.limits(), now, tokensIn, tokensOut)

	raw, err := sonic.MarshalString(state)
	if err != nil {
		return State{}, fmt.Errorf("quota: marshal state: %w", err)
	}
	if err := s.store.Put(ctx, StateKey, raw, 0); err != nil {
		return State{}, fmt.Errorf("quota: persist state: %w", err)
	}
	return state, nil
}
