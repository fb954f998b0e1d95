package capability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the optional distributed second tier, mirroring the
// memory tier's contract over a shared Redis instance so capability
// descriptors survive a single gateway instance restarting.
type RedisTier struct {
	client *redis.Client
	prefix string
}

// NewRedisTier builds a RedisTier over an existing client.
func NewRedisTier(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{client: client, prefix: prefix}
}

func (t *RedisTier) Get(ctx context.Context, key string) (Descriptor, bool, error) {
	raw, err := t.client.Get(ctx, t.prefix+key).Bytes()
	if err == redis.Nil {
		return Descriptor{}, false, nil
	}
	if err != nil {
		return Descriptor{}, false, err
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, d Descriptor, ttl time.Duration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, t.prefix+key, raw, ttl).Err()
}

var _ Tier = (*RedisTier)(nil)
