package webserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"go.uber.org/zap"
)

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
	errNoService  = errors.New("service not configured")
)

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error,omitempty"`
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errForbidden, fmt.Sprintf(format, args...))
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, envelope{Error: msg})
}

// failErr maps an error to its HTTP status. Unexpected errors are logged and
// answered with a generic message.
func (h *handlers) failErr(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.lg.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, proposal.ErrInvalidRequest),
		errors.Is(err, proposal.ErrInvalidState),
		errors.Is(err, proposal.ErrUnsupportedNetwork),
		errors.Is(err, store.ErrInvalidMultisig),
		errors.Is(err, store.ErrInvalidThreshold),
		errors.Is(err, substrate.ErrInvalidMultisig),
		errors.Is(err, amount.ErrInvalidAmount),
		errors.Is(err, address.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, proposal.ErrSigning):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden),
		errors.Is(err, proposal.ErrNotSignatory),
		errors.Is(err, store.ErrNotSignatory):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, safe.ErrNotFound),
		errors.Is(err, proposal.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, proposal.ErrDuplicateProposal),
		errors.Is(err, proposal.ErrAlreadyApproved):
		return http.StatusConflict
	case errors.Is(err, proposal.ErrSignatureMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proposal.ErrRelay),
		errors.Is(err, proposal.ErrSimulation):
		return http.StatusBadGateway
	case errors.Is(err, errNoService):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// bind decodes the JSON body into req, answering 400 on failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func caller(c *gin.Context) string {
	return c.GetString("addr")
}
