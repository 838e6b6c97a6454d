package webserver

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/types"
)

// requireMember answers 403 unless the caller belongs to the organisation.
func (h *handlers) requireMember(c *gin.Context, orgID string) (*types.OrgMember, bool) {
	m, err := h.Store.Member(c, orgID, caller(c))
	if errors.Is(err, store.ErrNotFound) {
		h.failErr(c, forbidden("not a member of organisation %s", orgID))
		return nil, false
	}
	if err != nil {
		h.failErr(c, err)
		return nil, false
	}
	return m, true
}

func (h *handlers) createOrganisation(c *gin.Context) {
	var req struct {
		Name    string   `json:"name" binding:"required"`
		Members []string `json:"members"`
	}
	if !bind(c, &req) {
		return
	}
	name := strings.TrimSpace(h.clean(req.Name))
	if name == "" {
		h.failErr(c, badRequest("organisation name required"))
		return
	}
	org, err := h.Store.CreateOrganisation(c, name, caller(c), req.Members)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.organisationView(org))
}

// getOrganisation returns one organisation, or every organisation of the
// caller when no id is given.
func (h *handlers) getOrganisation(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if !bind(c, &req) {
		return
	}
	if req.ID == "" {
		orgs, err := h.Store.OrganisationsFor(c, caller(c))
		if err != nil {
			h.failErr(c, err)
			return
		}
		out := make([]organisationView, 0, len(orgs))
		for i := range orgs {
			out = append(out, h.organisationView(&orgs[i]))
		}
		respond(c, out)
		return
	}
	if _, ok := h.requireMember(c, req.ID); !ok {
		return
	}
	org, err := h.Store.GetOrganisation(c, req.ID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.organisationView(org))
}

func (h *handlers) addMultisigToOrganisation(c *gin.Context) {
	var req struct {
		OrganisationID string `json:"organisationId" binding:"required"`
		MultisigID     uint64 `json:"multisigId"     binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if _, ok := h.requireMember(c, req.OrganisationID); !ok {
		return
	}
	if _, ok := h.loadOwnMultisig(c, req.MultisigID); !ok {
		return
	}
	if err := h.Store.AddMultisigToOrganisation(c, req.OrganisationID, req.MultisigID); err != nil {
		h.failErr(c, err)
		return
	}
	org, err := h.Store.GetOrganisation(c, req.OrganisationID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, h.organisationView(org))
}

type addressBookRequest struct {
	OrganisationID string   `json:"organisationId" binding:"required"`
	Network        string   `json:"network"`
	Address        string   `json:"address"        binding:"required"`
	Name           string   `json:"name"           binding:"required"`
	NickName       string   `json:"nickName"`
	Email          string   `json:"email"          binding:"omitempty,email"`
	Discord        string   `json:"discord"`
	Telegram       string   `json:"telegram"`
	Roles          []string `json:"roles"`
}

func (h *handlers) addToAddressBookSubstrate(c *gin.Context) {
	var req addressBookRequest
	if !bind(c, &req) {
		return
	}
	if address.IsEVM(req.Address) {
		h.failErr(c, badRequest("%s is an EVM address", req.Address))
		return
	}
	addr := strings.TrimSpace(req.Address)
	if req.Network != "" {
		n, err := h.network(req.Network)
		if err != nil {
			h.failErr(c, err)
			return
		}
		if n.Family != types.FamilySubstrate {
			h.failErr(c, badRequest("%s is not a substrate network", n.Name))
			return
		}
		if addr = address.Encode(addr, n); addr == "" {
			h.failErr(c, address.ErrInvalidAddress)
			return
		}
	} else if pub, err := address.Decode(addr); err != nil || len(pub) != 32 {
		h.failErr(c, address.ErrInvalidAddress)
		return
	}
	h.saveAddressBookEntry(c, req, addr)
}

func (h *handlers) addToAddressBookEth(c *gin.Context) {
	var req addressBookRequest
	if !bind(c, &req) {
		return
	}
	if !address.IsEVM(req.Address) {
		h.failErr(c, address.ErrInvalidAddress)
		return
	}
	h.saveAddressBookEntry(c, req, address.Checksum(req.Address))
}

func (h *handlers) saveAddressBookEntry(c *gin.Context, req addressBookRequest, addr string) {
	if _, ok := h.requireMember(c, req.OrganisationID); !ok {
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, r := range req.Roles {
		if r = strings.TrimSpace(h.clean(r)); r != "" {
			roles = append(roles, r)
		}
	}
	e := &types.AddressBookEntry{
		OrganisationID: req.OrganisationID,
		Address:        addr,
		Name:           h.clean(req.Name),
		NickName:       h.clean(req.NickName),
		Email:          strings.TrimSpace(req.Email),
		Discord:        h.clean(req.Discord),
		Telegram:       h.clean(req.Telegram),
		Roles:          roles,
	}
	if strings.TrimSpace(e.Name) == "" {
		h.failErr(c, badRequest("name required"))
		return
	}
	if err := h.Store.AddToAddressBook(c, e); err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, addressBookViews([]types.AddressBookEntry{*e})[0])
}

func (h *handlers) removeFromAddressBook(c *gin.Context) {
	var req struct {
		OrganisationID string `json:"organisationId" binding:"required"`
		Address        string `json:"address"        binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if _, ok := h.requireMember(c, req.OrganisationID); !ok {
		return
	}
	if err := h.Store.RemoveFromAddressBook(c, req.OrganisationID, req.Address); err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, gin.H{"removed": req.Address})
}

func (h *handlers) getAddressBook(c *gin.Context) {
	var req struct {
		OrganisationID string `json:"organisationId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if _, ok := h.requireMember(c, req.OrganisationID); !ok {
		return
	}
	entries, err := h.Store.AddressBook(c, req.OrganisationID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, addressBookViews(entries))
}
