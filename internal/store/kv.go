// Package store holds the workspace key-value persistence. Every value is a
// whole document; writers replace it wholesale.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kapu/lead-analyzer-go/pkg/errors"
)

// KV is the persistence contract shared by the sqlite, redis, postgres and memory backends.
// A missing key is reported with ok=false and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the value at key into dest. A missing or blank value leaves
// dest untouched and returns false.
func GetJSON(ctx context.Context, kv KV, key string, dest any) (bool, error) {
	value, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || strings.TrimSpace(value) == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return false, errors.NewStoreError("stored value is not valid JSON", "get", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, kv KV, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewStoreError("marshal failed", "set", key, err)
	}
	return kv.Set(ctx, key, string(data))
}
