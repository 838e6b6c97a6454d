package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// PendingCache keeps a TTL'd copy of each multisig's pending list in Redis.
type PendingCache struct {
	rdb *redis.Client
	ttl time.Duration
	lg  *zap.Logger
}

func NewPendingCache(rdb *redis.Client, ttl time.Duration, lg *zap.Logger) *PendingCache {
	return &PendingCache{rdb: rdb, ttl: ttl, lg: lg.Named("pending-cache")}
}

func pendingKey(multisigID uint64) string {
	return fmt.Sprintf("pending:%d", multisigID)
}

// Get returns the cached list. Redis errors are treated as a miss.
func (c *PendingCache) Get(ctx context.Context, multisigID uint64) ([]types.PendingTransaction, bool) {
	raw, err := c.rdb.Get(ctx, pendingKey(multisigID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.lg.Debug("cache get", zap.Uint64("multisig_id", multisigID), zap.Error(err))
		}
		return nil, false
	}
	var txs []types.PendingTransaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, false
	}
	return txs, true
}

func (c *PendingCache) Set(ctx context.Context, multisigID uint64, txs []types.PendingTransaction) {
	raw, err := json.Marshal(txs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, pendingKey(multisigID), raw, c.ttl).Err(); err != nil {
		c.lg.Debug("cache set", zap.Uint64("multisig_id", multisigID), zap.Error(err))
	}
}

func (c *PendingCache) Invalidate(ctx context.Context, multisigID uint64) {
	if err := c.rdb.Del(ctx, pendingKey(multisigID)).Err(); err != nil {
		c.lg.Warn("cache invalidate", zap.Uint64("multisig_id", multisigID), zap.Error(err))
	}
}
