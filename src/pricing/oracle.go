// Package pricing fetches USD prices from a CoinGecko-style API and caches
// them in Redis.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/logging"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

var ErrNoPrice = errors.New("pricing: no price for network")

const (
	freshPrefix = "price:"
	stalePrefix = "price:stale:"
)

// Oracle returns USD prices. Fresh prices live for ttl; the last known price
// is kept without expiry and served when the upstream throttles or times out.
type Oracle struct {
	client *resty.Client
	rdb    *redis.Client
	ttl    time.Duration
	lg     *zap.Logger
}

func NewOracle(baseURL string, rdb *redis.Client, ttl time.Duration, lg *zap.Logger) *Oracle {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	return &Oracle{client: client, rdb: rdb, ttl: ttl, lg: lg.Named("pricing")}
}

// USDPrice returns the USD price of the network's native token.
func (o *Oracle) USDPrice(ctx context.Context, n types.Network) (decimal.Decimal, error) {
	if n.PriceID == "" {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, n.Name)
	}
	if p, ok := o.cached(ctx, freshPrefix+n.PriceID); ok {
		return p, nil
	}

	p, err := o.fetch(ctx, n.PriceID)
	if err != nil {
		if logging.IsRateLimit(err) || logging.IsTimeout(err) {
			if stale, ok := o.cached(ctx, stalePrefix+n.PriceID); ok {
				o.lg.Debug("serving stale price", zap.String("id", n.PriceID), zap.Error(err))
				return stale, nil
			}
		}
		return decimal.Zero, err
	}

	v := p.String()
	pipe := o.rdb.Pipeline()
	pipe.Set(ctx, freshPrefix+n.PriceID, v, o.ttl)
	pipe.Set(ctx, stalePrefix+n.PriceID, v, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		o.lg.Warn("price cache write", zap.String("id", n.PriceID), zap.Error(err))
	}
	return p, nil
}

// USDValue prices an amount given in smallest units.
func (o *Oracle) USDValue(ctx context.Context, n types.Network, smallest string) (string, error) {
	v, ok := new(big.Int).SetString(smallest, 10)
	if !ok {
		return "", fmt.Errorf("pricing: bad amount %q", smallest)
	}
	price, err := o.USDPrice(ctx, n)
	if err != nil {
		return "", err
	}
	return amount.USDValue(v, n.Decimals, price), nil
}

func (o *Oracle) cached(ctx context.Context, key string) (decimal.Decimal, bool) {
	s, err := o.rdb.Get(ctx, key).Result()
	if err != nil {
		return decimal.Zero, false
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return p, true
}

func (o *Oracle) fetch(ctx context.Context, id string) (decimal.Decimal, error) {
	var out map[string]map[string]decimal.Decimal
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"ids": id, "vs_currencies": "usd"}).
		SetResult(&out).
		Get("/simple/price")
	if err != nil {
		return decimal.Zero, fmt.Errorf("price api: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return decimal.Zero, fmt.Errorf("price api: rate_limit (429)")
	case resp.IsError():
		return decimal.Zero, fmt.Errorf("price api: status %d", resp.StatusCode())
	}
	p, ok := out[id]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, id)
	}
	return p, nil
}
