package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Aside implements the cache-aside pattern: the value at key is loaded into
// dest when present, otherwise fill is called and its result cached with the
// given TTL. All Redis failures degrade to calling fill directly.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, fill func() error) error {
	if client == nil {
		return fill()
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if unmarshalErr := json.Unmarshal(raw, dest); unmarshalErr == nil {
			return nil
		}
		// Corrupt entry, drop it and fall through to the loader.
		client.Del(ctx, key)
	}

	if err := fill(); err != nil {
		return err
	}

	if encoded, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, encoded, ttl)
	}
	return nil
}
