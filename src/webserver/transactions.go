package webserver

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// prepareTransaction assembles a draft for the caller to sign. The draft is
// kept for a limited time and referenced by its id on submit.
func (h *handlers) prepareTransaction(c *gin.Context) {
	var req proposal.DraftRequest
	if !bind(c, &req) {
		return
	}
	if req.Proposer == "" {
		req.Proposer = caller(c)
	}
	if !address.Equal(req.Proposer, caller(c)) {
		h.failErr(c, forbidden("proposer must be the signed-in account"))
		return
	}
	req.Note = h.clean(req.Note)
	req.Category = h.clean(req.Category)
	for k, v := range req.Fields {
		req.Fields[k] = h.clean(v)
	}

	d, err := h.Builder.Draft(c, req)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if err := h.Drafts.Put(c, d); err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, d)
}

// submitTransaction relays a prepared draft with the caller's signature.
func (h *handlers) submitTransaction(c *gin.Context) {
	var req struct {
		DraftID   string `json:"draftId"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Extrinsic string `json:"extrinsic"`
	}
	if !bind(c, &req) {
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		h.failErr(c, badRequest("signature: %v", err))
		return
	}
	d, err := h.Drafts.Get(c, req.DraftID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if !address.Equal(d.Proposer, caller(c)) {
		h.failErr(c, forbidden("draft belongs to %s", d.Proposer))
		return
	}

	res, err := h.Builder.Submit(c, d, proposal.StaticSigner{
		Signer:    caller(c),
		Bytes:     sig,
		Extrinsic: req.Extrinsic,
	})
	if res != nil || d.State == proposal.StateFailed {
		if derr := h.Drafts.Delete(c, d.ID); derr != nil {
			h.lg.Warn("drop draft", zap.String("draft", d.ID), zap.Error(derr))
		}
	}
	if err != nil {
		h.failErr(c, err)
		return
	}
	out := gin.H{
		"callHash":    res.CallHash,
		"relayHash":   res.RelayHash,
		"state":       res.State,
		"transaction": h.pendingViews(c, []types.PendingTransaction{*res.Transaction})[0],
	}
	// On EVM the relay hash is a safeTxHash, which explorers do not index.
	if n := h.networkByID(res.Transaction.NetworkID); n.Family == types.FamilySubstrate && res.RelayHash != "" {
		out["explorer"] = chain.ExplorerTxURL(n, res.RelayHash)
	}
	respond(c, out)
}

func (h *handlers) approveTransaction(c *gin.Context) {
	var req struct {
		Network   string `json:"network"   binding:"required"`
		Multisig  string `json:"multisig"  binding:"required"`
		CallHash  string `json:"callHash"  binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Extrinsic string `json:"extrinsic"`
	}
	if !bind(c, &req) {
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		h.failErr(c, badRequest("signature: %v", err))
		return
	}
	approvals, err := h.Builder.Approve(c, proposal.ApproveRequest{
		Network:   req.Network,
		Multisig:  req.Multisig,
		CallHash:  req.CallHash,
		Signer:    caller(c),
		Signature: sig,
		Extrinsic: req.Extrinsic,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, gin.H{"callHash": req.CallHash, "approvals": approvals})
}

type multisigRef struct {
	Network    string `json:"network"`
	Multisig   string `json:"multisig"`
	MultisigID uint64 `json:"multisigId"`
}

// resolveMultisig finds the referenced multisig and checks that the caller
// signs for it.
func (h *handlers) resolveMultisig(c *gin.Context, ref multisigRef) (*types.Multisig, types.Network, bool) {
	if ref.MultisigID != 0 {
		ms, ok := h.loadOwnMultisig(c, ref.MultisigID)
		if !ok {
			return nil, types.Network{}, false
		}
		return ms, h.networkByID(ms.NetworkID), true
	}
	if ref.Network == "" || ref.Multisig == "" {
		h.failErr(c, badRequest("network and multisig, or multisigId, required"))
		return nil, types.Network{}, false
	}
	n, err := h.network(ref.Network)
	if err != nil {
		h.failErr(c, err)
		return nil, types.Network{}, false
	}
	ms, err := h.Store.MultisigByAddress(c, n.ID, ref.Multisig)
	if err != nil {
		h.failErr(c, err)
		return nil, types.Network{}, false
	}
	if !h.requireSignatory(c, ms) {
		return nil, types.Network{}, false
	}
	return ms, n, true
}

func (h *handlers) getPendingTransactions(c *gin.Context) {
	var req multisigRef
	if !bind(c, &req) {
		return
	}
	ms, _, ok := h.resolveMultisig(c, req)
	if !ok {
		return
	}
	txs, err := h.Store.GetPending(c, ms.ID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.pendingViews(c, txs))
}

type historyRequest struct {
	multisigRef
	store.Page
}

func (h *handlers) getHistorySubstrate(c *gin.Context) {
	h.history(c, types.FamilySubstrate)
}

func (h *handlers) getHistoryEth(c *gin.Context) {
	h.history(c, types.FamilyEVM)
}

func (h *handlers) history(c *gin.Context, family string) {
	var req historyRequest
	if !bind(c, &req) {
		return
	}
	ms, n, ok := h.resolveMultisig(c, req.multisigRef)
	if !ok {
		return
	}
	if n.Family != family {
		h.failErr(c, badRequest("%s is not a %s network", n.Name, family))
		return
	}
	page, err := h.Store.GetHistory(c, ms.ID, req.Page)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, gin.H{
		"items": h.historyViews(page.Items),
		"total": page.Total,
		"page":  page.Page,
	})
}

// getOrganisationTransactions merges pending and history across every
// multisig of an organisation.
func (h *handlers) getOrganisationTransactions(c *gin.Context) {
	var req struct {
		OrganisationID string `json:"organisationId" binding:"required"`
		Status         string `json:"status"         binding:"omitempty,oneof=pending history"`
		store.Page
	}
	if !bind(c, &req) {
		return
	}
	if _, ok := h.requireMember(c, req.OrganisationID); !ok {
		return
	}

	out := gin.H{}
	if req.Status != "history" {
		pending, err := h.Store.PendingForOrganisation(c, req.OrganisationID)
		if err != nil {
			h.failErr(c, err)
			return
		}
		out["pending"] = h.pendingViews(c, pending)
	}
	if req.Status != "pending" {
		hist, err := h.Store.HistoryForOrganisation(c, req.OrganisationID, req.Page)
		if err != nil {
			h.failErr(c, err)
			return
		}
		out["history"] = h.historyViews(hist)
	}
	respond(c, out)
}

func (h *handlers) decodeCallData(c *gin.Context) {
	var req struct {
		Network  string `json:"network"  binding:"required"`
		CallData string `json:"callData" binding:"required"`
		To       string `json:"to"`
		Value    string `json:"value"`
		TxHash   string `json:"txHash"`
	}
	if !bind(c, &req) {
		return
	}
	n, err := h.network(req.Network)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.Decoder.Decode(c, decoder.Request{
		Network:  n,
		CallData: req.CallData,
		To:       req.To,
		Value:    req.Value,
		TxHash:   req.TxHash,
	}))
}
