// Package notify publishes proposal events to a Redis stream and delivers them
// to the channels each signatory has enabled.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/address"
)

// Triggers
const (
	TriggerInitiated = "initiatedTransaction"
	TriggerApproved  = "approvedTransaction"
	TriggerExecuted  = "executedTransaction"
	TriggerCancelled = "cancelledTransaction"
	TriggerReminder  = "scheduledApprovalReminder"
)

// Triggers lists every known trigger name.
var Triggers = []string{TriggerInitiated, TriggerApproved, TriggerExecuted, TriggerCancelled, TriggerReminder}

// IsTrigger reports whether name is a known trigger.
func IsTrigger(name string) bool {
	return lo.Contains(Triggers, name)
}

// Event is one notification. Recipients are canonical addresses and never
// include the actor.
type Event struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"-"`
	Trigger    string    `json:"trigger"`
	Network    string    `json:"network"`
	Multisig   string    `json:"multisig"`
	CallHash   string    `json:"callHash"`
	Actor      string    `json:"actor"`
	Recipients []string  `json:"recipients"`
	Link       string    `json:"link,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewEvent builds an event addressed to every signatory except actor.
func NewEvent(trigger, network, multisig, callHash, actor string, signatories []string) Event {
	canon := lo.FilterMap(signatories, func(s string, _ int) (string, bool) {
		c := address.Canonical(s)
		return c, c != ""
	})
	return Event{
		ID:         uuid.NewString(),
		Trigger:    trigger,
		Network:    network,
		Multisig:   multisig,
		CallHash:   callHash,
		Actor:      actor,
		Recipients: lo.Uniq(lo.Without(canon, address.Canonical(actor))),
		CreatedAt:  time.Now().UTC(),
	}
}

// Involves reports whether addr is the actor or a recipient of e.
func (e Event) Involves(addr string) bool {
	c := address.Canonical(addr)
	if c == "" {
		return false
	}
	return address.Canonical(e.Actor) == c || lo.Contains(e.Recipients, c)
}

func (e Event) values() map[string]interface{} {
	return map[string]interface{}{
		"id":         e.ID,
		"trigger":    e.Trigger,
		"network":    e.Network,
		"multisig":   e.Multisig,
		"call_hash":  e.CallHash,
		"actor":      e.Actor,
		"recipients": strings.Join(e.Recipients, ","),
		"link":       e.Link,
		"time":       e.CreatedAt.Unix(),
	}
}

func parseEvent(streamID string, values map[string]interface{}) (Event, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	e := Event{
		ID:       str("id"),
		StreamID: streamID,
		Trigger:  str("trigger"),
		Network:  str("network"),
		Multisig: str("multisig"),
		CallHash: str("call_hash"),
		Actor:    str("actor"),
		Link:     str("link"),
	}
	if e.Trigger == "" || e.CallHash == "" {
		return Event{}, fmt.Errorf("stream message %s: missing trigger or call hash", streamID)
	}
	if r := str("recipients"); r != "" {
		e.Recipients = strings.Split(r, ",")
	}
	if ts, err := strconv.ParseInt(str("time"), 10, 64); err == nil {
		e.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return e, nil
}
