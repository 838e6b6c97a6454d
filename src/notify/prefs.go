package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/stake-plus/multisig-relay/src/types"
)

// Channel names
const (
	ChannelEmail    = "email"
	ChannelDiscord  = "discord"
	ChannelTelegram = "telegram"
	ChannelSlack    = "slack"
)

// Channels lists every known channel name.
var Channels = []string{ChannelEmail, ChannelDiscord, ChannelTelegram, ChannelSlack}

func IsChannel(name string) bool {
	return lo.Contains(Channels, name)
}

// MergeChannelPreferences applies updates to current. A changed handle
// clears the verified flag.
func MergeChannelPreferences(current, updates map[string]types.ChannelPreference) map[string]types.ChannelPreference {
	out := make(map[string]types.ChannelPreference, len(current)+len(updates))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range updates {
		prev, ok := current[k]
		if !ok || prev.Handle != v.Handle {
			v.Verified = false
		} else {
			v.Verified = prev.Verified
		}
		out[k] = v
	}
	return out
}

// ReminderAfter is the scheduledApprovalReminder param holding how long a
// proposal must have been pending before the recipient wants a reminder.
const ReminderAfter = "after"

// ValidateTriggerParams rejects params a trigger cannot interpret.
func ValidateTriggerParams(trigger string, params map[string]string) error {
	for k, v := range params {
		if trigger != TriggerReminder || k != ReminderAfter {
			return fmt.Errorf("trigger %s has no param %q", trigger, k)
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("param %q: %q is not a duration", k, v)
		}
	}
	return nil
}

// ReminderRecipients keeps the recipients that enabled the reminder trigger
// and whose "after" param, if any, is not longer than age.
func ReminderRecipients(ctx context.Context, prefs Preferences, recipients []string, age time.Duration) ([]string, error) {
	var out []string
	for _, r := range recipients {
		p, err := prefs.Preferences(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("preferences of %s: %w", r, err)
		}
		tp, ok := p.TriggerPreferences[TriggerReminder]
		if !ok || !tp.Enabled {
			continue
		}
		if raw := tp.Params[ReminderAfter]; raw != "" {
			if after, err := time.ParseDuration(raw); err == nil && age < after {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func unionKeys(a, b map[string]types.TriggerPreference) []string {
	keys := lo.Union(lo.Keys(a), lo.Keys(b))
	sort.Strings(keys)
	return keys
}

func sameParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
