package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Storage keeps conversation records as JSON in a KV store.
type Storage struct {
	kv      KV
	nowFunc func() time.Time
}

func NewStorage(kv KV) *Storage {
	return &Storage{kv: kv, nowFunc: time.Now}
}

// Load returns nil, nil for an unknown phone or a record without a step.
func (s *Storage) Load(ctx context.Context, phone string) (*State, error) {
	raw, err := s.kv.Get(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var state State
	if err = json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	if state.Step == "" && state.Mode == ModeNone {
		return nil, nil
	}
	if state.Phone == "" {
		state.Phone = phone
	}
	return &state, nil
}

func (s *Storage) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = s.nowFunc()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err = s.kv.Set(ctx, state.Phone, raw, StateTTL); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, phone string) error {
	if err := s.kv.Delete(ctx, phone); err != nil {
		return fmt.Errorf("deleting state: %w", err)
	}
	return nil
}
