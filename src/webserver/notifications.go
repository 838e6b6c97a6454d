package webserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

const verifyCodeTTL = 10 * time.Minute

func verifyKey(addr, channel string) string {
	return "verify:" + address.Canonical(addr) + ":" + channel
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (h *handlers) getNotificationPreferences(c *gin.Context) {
	p, err := h.Store.Preferences(c, caller(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	respond(c, preferences(p))
}

// updateChannelPreferences stores channel settings. Every channel whose
// handle changed is sent a verification code and stays unverified until
// verifyNotificationChannel confirms it.
func (h *handlers) updateChannelPreferences(c *gin.Context) {
	var req struct {
		Channels map[string]types.ChannelPreference `json:"channels" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	for name, pref := range req.Channels {
		if !notify.IsChannel(name) {
			h.failErr(c, badRequest("unknown channel %q", name))
			return
		}
		pref.Handle = strings.TrimSpace(pref.Handle)
		req.Channels[name] = pref
	}

	p, err := h.Store.Preferences(c, caller(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	prev := p.ChannelPreferences
	p.ChannelPreferences = notify.MergeChannelPreferences(prev, req.Channels)
	if err := h.Store.SavePreferences(c, p); err != nil {
		h.failErr(c, err)
		return
	}

	sent := []string{}
	for name, pref := range p.ChannelPreferences {
		if pref.Verified || pref.Handle == "" || prev[name].Handle == pref.Handle {
			continue
		}
		if err := h.sendVerification(c, name, pref.Handle); err != nil {
			h.lg.Warn("verification not sent", zap.String("channel", name), zap.Error(err))
			continue
		}
		sent = append(sent, name)
	}
	respond(c, gin.H{"preferences": preferences(p), "verificationSent": sent})
}

func (h *handlers) sendVerification(c *gin.Context, channel, handle string) error {
	if h.Dispatcher == nil {
		return errNoService
	}
	code, err := verificationCode()
	if err != nil {
		return err
	}
	if err := h.Redis.Set(c, verifyKey(caller(c), channel), code, verifyCodeTTL).Err(); err != nil {
		return err
	}
	return h.Dispatcher.SendDirect(c, channel, handle, notify.Message{
		Subject: "Verify your notification channel",
		Body:    fmt.Sprintf("Your multisig-relay verification code is %s. It expires in %d minutes.", code, int(verifyCodeTTL.Minutes())),
	})
}

func (h *handlers) verifyNotificationChannel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Code    string `json:"code"    binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	want, err := h.Redis.Get(c, verifyKey(caller(c), req.Channel)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && want != strings.TrimSpace(req.Code)) {
		fail(c, http.StatusUnprocessableEntity, "invalid or expired code")
		return
	}
	if err != nil {
		h.failErr(c, err)
		return
	}

	p, err := h.Store.Preferences(c, caller(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	pref, ok := p.ChannelPreferences[req.Channel]
	if !ok {
		h.failErr(c, badRequest("channel %q not configured", req.Channel))
		return
	}
	pref.Verified = true
	p.ChannelPreferences[req.Channel] = pref
	if err := h.Store.SavePreferences(c, p); err != nil {
		h.failErr(c, err)
		return
	}
	_ = h.Redis.Del(c, verifyKey(caller(c), req.Channel)).Err()
	respond(c, preferences(p))
}

// updateTriggerPreferences replaces the given triggers and reports which
// ones actually changed.
func (h *handlers) updateTriggerPreferences(c *gin.Context) {
	var req struct {
		Triggers map[string]types.TriggerPreference `json:"triggers" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	for name := range req.Triggers {
		if !notify.IsTrigger(name) {
			h.failErr(c, badRequest("unknown trigger %q", name))
			return
		}
		if err := notify.ValidateTriggerParams(name, req.Triggers[name].Params); err != nil {
			h.failErr(c, badRequest("%v", err))
			return
		}
	}

	p, err := h.Store.Preferences(c, caller(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	next := make(map[string]types.TriggerPreference, len(p.TriggerPreferences)+len(req.Triggers))
	for k, v := range p.TriggerPreferences {
		next[k] = v
	}
	for k, v := range req.Triggers {
		next[k] = v
	}
	changed := notify.DiffTriggerPreferences(p.TriggerPreferences, next)
	if changed == nil {
		changed = []string{}
	}
	p.TriggerPreferences = next
	if err := h.Store.SavePreferences(c, p); err != nil {
		h.failErr(c, err)
		return
	}
	if len(changed) > 0 {
		h.lg.Info("trigger preferences changed", zap.String("address", caller(c)), zap.Strings("triggers", changed))
	}
	respond(c, gin.H{"preferences": preferences(p), "changed": changed})
}
