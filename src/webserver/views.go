package webserver

import (
	"context"
	"time"

	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/types"
)

const displayDigits = 4

type multisigView struct {
	ID             uint64   `json:"id"`
	Network        string   `json:"network"`
	Address        string   `json:"address"`
	Name           string   `json:"name"`
	Threshold      int      `json:"threshold"`
	ProxyAddress   string   `json:"proxyAddress,omitempty"`
	Disabled       bool     `json:"disabled"`
	OrganisationID *string  `json:"organisationId,omitempty"`
	Signatories    []string `json:"signatories"`
}

type pendingView struct {
	ID                uint64            `json:"id"`
	Network           string            `json:"network"`
	MultisigID        uint64            `json:"multisigId"`
	CallHash          string            `json:"callHash"`
	CallData          string            `json:"callData,omitempty"`
	To                string            `json:"to,omitempty"`
	Value             string            `json:"value"`
	Amount            string            `json:"amount,omitempty"`
	Proposer          string            `json:"proposer"`
	Approvals         []string          `json:"approvals"`
	Threshold         int               `json:"threshold"`
	Note              string            `json:"note,omitempty"`
	Category          string            `json:"category,omitempty"`
	TransactionFields map[string]string `json:"transactionFields,omitempty"`
	Decoded           *decoder.Decoded  `json:"decoded,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

type historyView struct {
	ID                uint64            `json:"id"`
	Network           string            `json:"network"`
	MultisigID        uint64            `json:"multisigId"`
	CallHash          string            `json:"callHash"`
	From              string            `json:"from"`
	To                string            `json:"to,omitempty"`
	AmountToken       string            `json:"amountToken"`
	Amount            string            `json:"amount,omitempty"`
	AmountUSD         string            `json:"amountUsd,omitempty"`
	Status            string            `json:"status"`
	Approvals         []string          `json:"approvals"`
	Note              string            `json:"note,omitempty"`
	Category          string            `json:"category,omitempty"`
	TransactionFields map[string]string `json:"transactionFields,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	ExecutedAt        time.Time         `json:"executedAt"`
}

type addressBookView struct {
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	NickName string   `json:"nickName,omitempty"`
	Email    string   `json:"email,omitempty"`
	Discord  string   `json:"discord,omitempty"`
	Telegram string   `json:"telegram,omitempty"`
	Roles    []string `json:"roles"`
}

type organisationView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Members     []memberView      `json:"members"`
	Multisigs   []multisigView    `json:"multisigs"`
	AddressBook []addressBookView `json:"addressBook"`
}

type memberView struct {
	Address string `json:"address"`
	IsAdmin bool   `json:"isAdmin"`
}

// encode renders addr for the network, keeping the stored form when it does
// not convert.
func encode(addr string, n types.Network) string {
	if out := address.Encode(addr, n); out != "" {
		return out
	}
	return addr
}

func (h *handlers) networkByID(id uint16) types.Network {
	n, err := h.Networks.ByID(id)
	if err != nil {
		return types.Network{ID: id}
	}
	return n
}

func (h *handlers) multisigView(ms *types.Multisig) multisigView {
	n := h.networkByID(ms.NetworkID)
	sigs := make([]string, 0, len(ms.Signatories))
	for _, s := range ms.Signatories {
		sigs = append(sigs, encode(s.Address, n))
	}
	return multisigView{
		ID:             ms.ID,
		Network:        n.Name,
		Address:        encode(ms.Address, n),
		Name:           ms.Name,
		Threshold:      ms.Threshold,
		ProxyAddress:   ms.ProxyAddress,
		Disabled:       ms.Disabled,
		OrganisationID: ms.OrganisationID,
		Signatories:    sigs,
	}
}

func (h *handlers) multisigViews(list []types.Multisig) []multisigView {
	out := make([]multisigView, 0, len(list))
	for i := range list {
		out = append(out, h.multisigView(&list[i]))
	}
	return out
}

func (h *handlers) pendingViews(ctx context.Context, txs []types.PendingTransaction) []pendingView {
	out := make([]pendingView, 0, len(txs))
	for _, tx := range txs {
		n := h.networkByID(tx.NetworkID)
		v := pendingView{
			ID:                tx.ID,
			Network:           n.Name,
			MultisigID:        tx.MultisigID,
			CallHash:          tx.CallHash,
			CallData:          tx.CallData,
			To:                tx.To,
			Value:             tx.Value,
			Proposer:          encode(tx.Proposer, n),
			Approvals:         encodeAll(tx.Approvals, n),
			Threshold:         tx.Threshold,
			Note:              tx.Note,
			Category:          tx.Category,
			TransactionFields: tx.TransactionFields,
			CreatedAt:         tx.CreatedAt,
		}
		if n.Name != "" && tx.Value != "" {
			v.Amount = amount.FormatString(tx.Value, n.Decimals, displayDigits)
		}
		if h.Decoder != nil && n.Name != "" && tx.CallData != "" {
			d := h.Decoder.Decode(ctx, decodeRequest(n, tx))
			v.Decoded = &d
		}
		out = append(out, v)
	}
	return out
}

func decodeRequest(n types.Network, tx types.PendingTransaction) decoder.Request {
	req := decoder.Request{Network: n, CallData: tx.CallData}
	if n.Family == types.FamilyEVM {
		req.To = tx.To
		req.Value = tx.Value
		req.TxHash = tx.CallHash
	}
	return req
}

func (h *handlers) historyViews(txs []types.HistoricalTransaction) []historyView {
	out := make([]historyView, 0, len(txs))
	for _, tx := range txs {
		n := h.networkByID(tx.NetworkID)
		v := historyView{
			ID:                tx.ID,
			Network:           n.Name,
			MultisigID:        tx.MultisigID,
			CallHash:          tx.CallHash,
			From:              encode(tx.From, n),
			To:                tx.To,
			AmountToken:       tx.AmountToken,
			AmountUSD:         tx.AmountUSD,
			Status:            tx.Status,
			Approvals:         encodeAll(tx.Approvals, n),
			Note:              tx.Note,
			Category:          tx.Category,
			TransactionFields: tx.TransactionFields,
			CreatedAt:         tx.CreatedAt,
			ExecutedAt:        tx.ExecutedAt,
		}
		if n.Name != "" && tx.AmountToken != "" {
			v.Amount = amount.FormatString(tx.AmountToken, n.Decimals, displayDigits)
		}
		out = append(out, v)
	}
	return out
}

func encodeAll(addrs []string, n types.Network) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, encode(a, n))
	}
	return out
}

func addressBookViews(entries []types.AddressBookEntry) []addressBookView {
	out := make([]addressBookView, 0, len(entries))
	for _, e := range entries {
		roles := e.Roles
		if roles == nil {
			roles = []string{}
		}
		out = append(out, addressBookView{
			Address:  e.Address,
			Name:     e.Name,
			NickName: e.NickName,
			Email:    e.Email,
			Discord:  e.Discord,
			Telegram: e.Telegram,
			Roles:    roles,
		})
	}
	return out
}

func (h *handlers) organisationView(org *types.Organisation) organisationView {
	members := make([]memberView, 0, len(org.Members))
	for _, m := range org.Members {
		members = append(members, memberView{Address: m.Address, IsAdmin: m.IsAdmin})
	}
	return organisationView{
		ID:          org.ID,
		Name:        org.Name,
		Members:     members,
		Multisigs:   h.multisigViews(org.Multisigs),
		AddressBook: addressBookViews(org.AddressBook),
	}
}

type preferencesView struct {
	Address  string                             `json:"address"`
	Channels map[string]types.ChannelPreference `json:"channels"`
	Triggers map[string]types.TriggerPreference `json:"triggers"`
}

func preferences(p *types.NotificationPreferences) preferencesView {
	return preferencesView{Address: p.Address, Channels: p.ChannelPreferences, Triggers: p.TriggerPreferences}
}
