// Package webserver exposes the relay over HTTP. Every operation is a named
// POST endpoint under /v1 answering with a {data, error} envelope.
package webserver

import (
	"context"
	"math/big"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/config"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// Balances reads the native balance of an account.
type Balances interface {
	Balance(ctx context.Context, n types.Network, addr string) (*big.Int, error)
}

// Prices quotes the USD price of a network's native token.
type Prices interface {
	USDPrice(ctx context.Context, n types.Network) (decimal.Decimal, error)
}

// Safes looks up Safe accounts on EVM networks.
type Safes interface {
	SafeInfo(ctx context.Context, n types.Network, addr string) (*safe.SafeInfo, error)
}

// Deps are the services the handlers call into. Balances, Prices, Safes and
// Dispatcher are optional.
type Deps struct {
	Config     config.Config
	Logger     *zap.Logger
	Redis      *redis.Client
	Store      *store.Store
	Networks   *chain.Registry
	Builder    *proposal.Builder
	Drafts     *proposal.DraftCache
	Decoder    *decoder.Service
	Dispatcher *notify.Dispatcher
	Balances   Balances
	Prices     Prices
	Safes      Safes
}

// Server is the HTTP surface: the gin engine plus the live feed hub.
type Server struct {
	Engine *gin.Engine
	Feed   *Feed
	limit  *RateLimiter
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		Engine: g,
		Feed:   NewFeed(d.Config.CORSOrigins, d.Logger),
		limit:  NewRateLimiter(d.Config.RateLimitPerMinute, time.Minute),
	}
	if d.Dispatcher != nil {
		d.Dispatcher.Subscribe(s.Feed.Publish)
	}
	attachRoutes(g, d, s.Feed, s.limit)
	return s
}

// Close stops the feed and the rate limiter's cleanup loop.
func (s *Server) Close() {
	s.Feed.Close()
	s.limit.Close()
}

type handlers struct {
	Deps
	sanitizer *bluemonday.Policy
	lg        *zap.Logger
}

func newHandlers(d Deps) *handlers {
	return &handlers{
		Deps:      d,
		sanitizer: bluemonday.StrictPolicy(),
		lg:        d.Logger.Named("http"),
	}
}

// clean strips markup from free text entered by users.
func (h *handlers) clean(s string) string {
	return h.sanitizer.Sanitize(s)
}

func (h *handlers) network(name string) (types.Network, error) {
	n, err := h.Networks.ByName(name)
	if err != nil {
		return types.Network{}, badRequest("%v", err)
	}
	return n, nil
}
