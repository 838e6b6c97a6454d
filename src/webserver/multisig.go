package webserver

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// Accounts created through the dashboard need at least two approvals.
const minCreateThreshold = 2

type multisigRequest struct {
	Network      string   `json:"network"      binding:"required"`
	Address      string   `json:"address"`
	Name         string   `json:"name"`
	Threshold    int      `json:"threshold"`
	Signatories  []string `json:"signatories"`
	ProxyAddress string   `json:"proxyAddress"`
}

func (h *handlers) newMultisig(n types.Network, req multisigRequest) *types.Multisig {
	ms := &types.Multisig{
		Address:      strings.TrimSpace(req.Address),
		NetworkID:    n.ID,
		Name:         h.clean(req.Name),
		Threshold:    req.Threshold,
		ProxyAddress: strings.TrimSpace(req.ProxyAddress),
	}
	for _, s := range req.Signatories {
		ms.Signatories = append(ms.Signatories, types.MultisigSignatory{Address: strings.TrimSpace(s)})
	}
	return ms
}

// deriveSubstrate computes the multisig account for the signatories and
// threshold of ms on network n.
func deriveSubstrate(ms *types.Multisig, n types.Network) (string, error) {
	keys := make([][]byte, 0, len(ms.Signatories))
	for _, s := range ms.Signatories {
		pub, err := address.Decode(s.Address)
		if err != nil {
			return "", badRequest("signatory %q: %v", s.Address, err)
		}
		keys = append(keys, pub)
	}
	if ms.Threshold < 1 || ms.Threshold > len(keys) {
		return "", store.ErrInvalidThreshold
	}
	account, err := substrate.DeriveMultisigAccount(keys, uint16(ms.Threshold))
	if err != nil {
		return "", badRequest("%v", err)
	}
	return address.EncodeSS58(account, n.SS58Prefix)
}

func (h *handlers) requireSignatory(c *gin.Context, ms *types.Multisig) bool {
	if !store.IsSignatory(ms, caller(c)) {
		h.failErr(c, forbidden("%s is not a signatory of %s", caller(c), ms.Address))
		return false
	}
	return true
}

// createMultisig derives a new Substrate multisig account from its
// signatories and threshold and stores it.
func (h *handlers) createMultisig(c *gin.Context) {
	var req multisigRequest
	if !bind(c, &req) {
		return
	}
	n, err := h.network(req.Network)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if n.Family != types.FamilySubstrate {
		h.failErr(c, badRequest("%s multisigs are Safe contracts, use linkMultisig", n.Name))
		return
	}
	ms := h.newMultisig(n, req)
	if ms.Address, err = deriveSubstrate(ms, n); err != nil {
		h.failErr(c, err)
		return
	}
	if !h.requireSignatory(c, ms) {
		return
	}
	if err := h.Store.CreateMultisig(c, ms, minCreateThreshold); err != nil {
		h.failErr(c, err)
		return
	}
	h.lg.Info("multisig created", zap.String("network", n.Name), zap.String("address", ms.Address))
	respond(c, h.multisigView(ms))
}

// linkMultisig registers an account that already exists on chain. Substrate
// accounts are checked against their derivation; Safe owners and threshold
// come from the Safe service when one is configured.
func (h *handlers) linkMultisig(c *gin.Context) {
	var req multisigRequest
	if !bind(c, &req) {
		return
	}
	n, err := h.network(req.Network)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ms := h.newMultisig(n, req)

	switch n.Family {
	case types.FamilySubstrate:
		derived, err := deriveSubstrate(ms, n)
		if err != nil {
			h.failErr(c, err)
			return
		}
		if !address.Equal(derived, ms.Address) {
			h.failErr(c, badRequest("address %s does not match signatories (expected %s)", ms.Address, derived))
			return
		}
	case types.FamilyEVM:
		if !address.IsEVM(ms.Address) {
			h.failErr(c, address.ErrInvalidAddress)
			return
		}
		if h.Safes != nil {
			info, err := h.Safes.SafeInfo(c, n, ms.Address)
			if err != nil {
				h.failErr(c, err)
				return
			}
			ms.Threshold = info.Threshold
			ms.Signatories = ms.Signatories[:0]
			for _, owner := range info.Owners {
				ms.Signatories = append(ms.Signatories, types.MultisigSignatory{Address: owner})
			}
		}
	}

	if !h.requireSignatory(c, ms) {
		return
	}
	if err := h.Store.CreateMultisig(c, ms, 1); err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.multisigView(ms))
}

func (h *handlers) getMultisigsByAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if !bind(c, &req) {
		return
	}
	addr := caller(c)
	if req.Address != "" && !address.Equal(req.Address, addr) {
		h.failErr(c, forbidden("only your own multisigs can be listed"))
		return
	}
	list, err := h.Store.MultisigsBySignatory(c, addr)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.multisigViews(list))
}

type multisigIDRequest struct {
	ID           uint64 `json:"id"           binding:"required"`
	Name         string `json:"name"`
	ProxyAddress string `json:"proxyAddress"`
}

// loadOwnMultisig loads the multisig named by id when the caller signs for it.
func (h *handlers) loadOwnMultisig(c *gin.Context, id uint64) (*types.Multisig, bool) {
	ms, err := h.Store.MultisigByID(c, id)
	if err != nil {
		h.failErr(c, err)
		return nil, false
	}
	if !h.requireSignatory(c, ms) {
		return nil, false
	}
	return ms, true
}

func (h *handlers) updateMultisig(c *gin.Context) {
	var req multisigIDRequest
	if !bind(c, &req) {
		return
	}
	if _, ok := h.loadOwnMultisig(c, req.ID); !ok {
		return
	}
	if req.ProxyAddress != "" {
		if _, err := address.Decode(req.ProxyAddress); err != nil {
			h.failErr(c, err)
			return
		}
	}
	ms, err := h.Store.UpdateMultisig(c, req.ID, h.clean(req.Name), req.ProxyAddress)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.multisigView(ms))
}

func (h *handlers) disableMultisig(c *gin.Context) {
	var req multisigIDRequest
	if !bind(c, &req) {
		return
	}
	if _, ok := h.loadOwnMultisig(c, req.ID); !ok {
		return
	}
	if err := h.Store.DisableMultisig(c, req.ID); err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, gin.H{"id": req.ID, "disabled": true})
}
