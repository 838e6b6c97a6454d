package webserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/data"
	"github.com/stake-plus/multisig-relay/src/evm"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"go.uber.org/zap"
)

const challengePrefix = "Sign in to multisig-relay: "

type Auth struct {
	rdb       *redis.Client
	jwtSecret []byte
	lg        *zap.Logger
}

func NewAuth(rdb *redis.Client, secret []byte, lg *zap.Logger) Auth {
	return Auth{rdb: rdb, jwtSecret: secret, lg: lg.Named("auth")}
}

type challengeRequest struct {
	Address string `json:"address" binding:"required"`
	Method  string `json:"method"  binding:"omitempty,oneof=polkadotjs walletconnect metamask ledger"`
}

// Challenge issues a one-time message for the wallet to sign.
func (a Auth) Challenge(c *gin.Context) {
	var req challengeRequest
	if !bind(c, &req) {
		return
	}
	key := address.Canonical(req.Address)
	if key == "" {
		fail(c, http.StatusBadRequest, address.ErrInvalidAddress.Error())
		return
	}
	nonce := challengePrefix + uuid.NewString()
	if err := data.SetNonce(c, a.rdb, key, nonce); err != nil {
		a.lg.Error("store nonce", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	respond(c, gin.H{"nonce": nonce})
}

// Verify checks the signed challenge and issues a session token.
func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	key := address.Canonical(req.Address)
	if key == "" {
		fail(c, http.StatusBadRequest, address.ErrInvalidAddress.Error())
		return
	}
	nonce, err := data.GetAndDelNonce(c, a.rdb, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.lg.Warn("load nonce", zap.Error(err))
		}
		fail(c, http.StatusUnauthorized, "challenge expired")
		return
	}
	if err := verifySignature(req.Address, req.Signature, nonce); err != nil {
		a.lg.Debug("bad login signature", zap.String("address", req.Address), zap.Error(err))
		fail(c, http.StatusUnauthorized, "bad signature")
		return
	}

	token, err := issueJWT(req.Address, a.jwtSecret)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, gin.H{"token": token, "address": req.Address})
}

// verifySignature accepts EIP-191 personal_sign signatures for 0x addresses
// of 20 bytes and sr25519 signatures for everything else.
func verifySignature(addr, sigHex, message string) error {
	if address.IsEVM(addr) {
		return evm.VerifyPersonalSign(addr, []byte(message), sigHex)
	}
	pub, err := address.Decode(addr)
	if err != nil {
		return err
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return substrate.VerifySr25519(pub, []byte(message), sig)
}
