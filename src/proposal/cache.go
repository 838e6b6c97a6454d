package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftTTL is how long a prepared draft can be submitted.
const DraftTTL = 15 * time.Minute

// DraftCache keeps drafts between prepare and submit.
type DraftCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDraftCache(rdb *redis.Client, ttl time.Duration) *DraftCache {
	if ttl <= 0 {
		ttl = DraftTTL
	}
	return &DraftCache{rdb: rdb, ttl: ttl}
}

func draftKey(id string) string {
	return "draft:" + id
}

func (c *DraftCache) Put(ctx context.Context, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return c.rdb.Set(ctx, draftKey(d.ID), raw, c.ttl).Err()
}

func (c *DraftCache) Get(ctx context.Context, id string) (*Draft, error) {
	raw, err := c.rdb.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// Delete drops a draft once it has been submitted.
func (c *DraftCache) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, draftKey(id)).Err()
}
