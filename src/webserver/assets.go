package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"go.uber.org/zap"
)

type assetView struct {
	Network  string `json:"network"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Balance  string `json:"balance"`
	Amount   string `json:"amount"`
	USDValue string `json:"usdValue,omitempty"`
}

// getAssets returns the native balance of an account with its USD value.
// A missing price leaves usdValue empty instead of failing the request.
func (h *handlers) getAssets(c *gin.Context) {
	var req struct {
		Network string `json:"network" binding:"required"`
		Address string `json:"address" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	n, err := h.network(req.Network)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if err := address.Validate(req.Address, n); err != nil {
		h.failErr(c, err)
		return
	}
	if h.Balances == nil {
		h.failErr(c, errNoService)
		return
	}

	balance, err := h.Balances.Balance(c, n, req.Address)
	if err != nil {
		h.lg.Warn("balance lookup", zap.String("network", n.Name), zap.Error(err))
		fail(c, http.StatusBadGateway, "balance unavailable")
		return
	}
	out := assetView{
		Network:  n.Name,
		Address:  encode(req.Address, n),
		Symbol:   n.Symbol,
		Decimals: n.Decimals,
		Balance:  balance.String(),
		Amount:   amount.Format(balance, n.Decimals, displayDigits),
	}
	if h.Prices != nil {
		if price, err := h.Prices.USDPrice(c, n); err == nil {
			out.USDValue = amount.USDValue(balance, n.Decimals, price)
		} else {
			h.lg.Debug("no price", zap.String("network", n.Name), zap.Error(err))
		}
	}
	respond(c, out)
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"db": "ok", "redis": "ok"}
	code := http.StatusOK
	if sqlDB, err := h.Store.DB().DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["db"] = "down"
		code = http.StatusServiceUnavailable
	}
	if h.Redis == nil || h.Redis.Ping(ctx).Err() != nil {
		status["redis"] = "down"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, envelope{Data: status})
}
