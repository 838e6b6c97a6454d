package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// Message is the rendered form of an event for one channel.
type Message struct {
	Subject string
	Body    string
	Link    string
}

// Channel delivers a message to a recipient handle.
type Channel interface {
	Name() string
	Send(ctx context.Context, handle string, msg Message) error
}

// Preferences loads a recipient's notification settings.
type Preferences interface {
	Preferences(ctx context.Context, addr string) (*types.NotificationPreferences, error)
}

// Options tune the stream reader.
type Options struct {
	// StartID is the stream position to read after; "$" skips history.
	StartID string
	Block   time.Duration
	Count   int64
}

// Dispatcher reads events from the stream and delivers them.
type Dispatcher struct {
	rdb      *redis.Client
	stream   string
	prefs    Preferences
	channels map[string]Channel
	opts     Options
	lg       *zap.Logger

	mu        sync.RWMutex
	listeners []func(Event)
}

func NewDispatcher(rdb *redis.Client, stream string, prefs Preferences, opts Options, lg *zap.Logger, channels ...Channel) *Dispatcher {
	if opts.StartID == "" {
		opts.StartID = "$"
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.Count <= 0 {
		opts.Count = 10
	}
	d := &Dispatcher{
		rdb:      rdb,
		stream:   stream,
		prefs:    prefs,
		channels: make(map[string]Channel, len(channels)),
		opts:     opts,
		lg:       lg.Named("dispatcher"),
	}
	for _, c := range channels {
		d.channels[c.Name()] = c
	}
	return d
}

// Subscribe registers fn to receive every event read from the stream.
func (d *Dispatcher) Subscribe(fn func(Event)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Run reads the stream until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	lastID := d.opts.StartID
	d.lg.Info("dispatcher started", zap.String("stream", d.stream))
	for {
		select {
		case <-ctx.Done():
			d.lg.Info("dispatcher stopped")
			return
		default:
		}

		streams, err := d.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{d.stream, lastID},
			Count:   d.opts.Count,
			Block:   d.opts.Block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				d.lg.Warn("stream read", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				ev, err := parseEvent(msg.ID, msg.Values)
				if err != nil {
					d.lg.Warn("bad stream message", zap.Error(err))
					continue
				}
				d.publish(ev)
				d.Deliver(ctx, ev)
			}
		}
	}
}

func (d *Dispatcher) publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, fn := range d.listeners {
		fn(ev)
	}
}

// Deliver sends ev to every recipient on each channel that is enabled,
// verified and configured, provided the recipient enabled the trigger. It
// returns the number of messages sent.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) int {
	msg := Render(ev)
	sent := 0
	for _, rcpt := range ev.Recipients {
		p, err := d.prefs.Preferences(ctx, rcpt)
		if err != nil {
			d.lg.Warn("load preferences", zap.String("recipient", rcpt), zap.Error(err))
			continue
		}
		if !p.TriggerPreferences[ev.Trigger].Enabled {
			continue
		}
		for name, cp := range p.ChannelPreferences {
			if !cp.Enabled || !cp.Verified || cp.Handle == "" {
				continue
			}
			ch, ok := d.channels[name]
			if !ok {
				continue
			}
			if err := ch.Send(ctx, cp.Handle, msg); err != nil {
				d.lg.Warn("send failed",
					zap.String("channel", name),
					zap.String("recipient", rcpt),
					zap.String("call_hash", ev.CallHash),
					zap.Error(err))
				continue
			}
			sent++
		}
	}
	return sent
}

// SendDirect sends msg on one channel, bypassing preferences. Used for
// channel verification codes.
func (d *Dispatcher) SendDirect(ctx context.Context, channel, handle string, msg Message) error {
	ch, ok := d.channels[channel]
	if !ok {
		return fmt.Errorf("channel %q not configured", channel)
	}
	return ch.Send(ctx, handle, msg)
}

// Render turns an event into message text.
func Render(ev Event) Message {
	actor := address.Shorten(ev.Actor, 6, 6)
	ms := address.Shorten(ev.Multisig, 6, 6)
	hash := address.Shorten(ev.CallHash, 10, 6)

	var subject, body string
	switch ev.Trigger {
	case TriggerInitiated:
		subject = fmt.Sprintf("New %s transaction awaiting approval", ev.Network)
		body = fmt.Sprintf("%s proposed transaction %s on multisig %s. Your approval is needed.", actor, hash, ms)
	case TriggerApproved:
		subject = fmt.Sprintf("%s transaction approved", ev.Network)
		body = fmt.Sprintf("%s approved transaction %s on multisig %s.", actor, hash, ms)
	case TriggerExecuted:
		subject = fmt.Sprintf("%s transaction executed", ev.Network)
		body = fmt.Sprintf("Transaction %s on multisig %s was executed.", hash, ms)
	case TriggerCancelled:
		subject = fmt.Sprintf("%s transaction cancelled", ev.Network)
		body = fmt.Sprintf("Transaction %s on multisig %s was cancelled.", hash, ms)
	case TriggerReminder:
		subject = fmt.Sprintf("Reminder: %s transaction awaiting approval", ev.Network)
		body = fmt.Sprintf("Transaction %s on multisig %s is still waiting for your approval.", hash, ms)
	default:
		subject = ev.Trigger
		body = fmt.Sprintf("Transaction %s on multisig %s.", hash, ms)
	}
	return Message{Subject: subject, Body: body, Link: ev.Link}
}

// DiffTriggerPreferences returns the sorted names of triggers whose settings
// differ between prev and next.
func DiffTriggerPreferences(prev, next map[string]types.TriggerPreference) []string {
	var changed []string
	for _, name := range unionKeys(prev, next) {
		a, okA := prev[name]
		b, okB := next[name]
		if okA != okB || a.Enabled != b.Enabled || !sameParams(a.Params, b.Params) {
			changed = append(changed, name)
		}
	}
	return changed
}
