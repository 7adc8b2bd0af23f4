package store

import (
	"context"
	"encoding/json"
)

// GetJSON unmarshals the stored value for key into out, reporting
// whether the key existed.
func GetJSON(ctx context.Context, s Store, scope Scope, key string, out any) (bool, error) {
	data, ok, err := s.Get(ctx, scope, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, scope Scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, scope, key, data)
}
