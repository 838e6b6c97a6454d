package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/data/datatest"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice         = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	alicePolkadot = "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"
	bob           = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
	charlie       = "0x90b5ab205c6974c9ea841be688864633dc9ca8a357843eeacf2314649965fe22"
)

type fakePrefs map[string]*types.NotificationPreferences

func (f fakePrefs) Preferences(_ context.Context, addr string) (*types.NotificationPreferences, error) {
	if p, ok := f[address.Canonical(addr)]; ok {
		return p, nil
	}
	return &types.NotificationPreferences{}, nil
}

type recordChannel struct {
	name string
	fail bool

	mu   sync.Mutex
	sent []string
}

func (c *recordChannel) Name() string { return c.name }

func (c *recordChannel) Send(_ context.Context, handle string, _ notify.Message) error {
	if c.fail {
		return errors.New("channel down")
	}
	c.mu.Lock()
	c.sent = append(c.sent, handle)
	c.mu.Unlock()
	return nil
}

func (c *recordChannel) handles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func prefsFor(trigger string, channels map[string]types.ChannelPreference) *types.NotificationPreferences {
	return &types.NotificationPreferences{
		ChannelPreferences: channels,
		TriggerPreferences: map[string]types.TriggerPreference{trigger: {Enabled: true}},
	}
}

func TestNewEventExcludesActor(t *testing.T) {
	ev := notify.NewEvent(notify.TriggerInitiated, "polkadot", "0xms", "0xhash", alicePolkadot,
		[]string{alice, bob, charlie, bob})

	assert.Equal(t, []string{bob, charlie}, ev.Recipients)
	assert.NotEmpty(t, ev.ID)
	assert.True(t, ev.Involves(alice))
	assert.True(t, ev.Involves(charlie))
	assert.False(t, ev.Involves("0x306721211d5404bd9da88e0204360a1a9ab8b87c66c1bc2fcdd37f3c2222cc20"))
}

func TestDeliverHonoursPreferences(t *testing.T) {
	email := &recordChannel{name: notify.ChannelEmail}
	slack := &recordChannel{name: notify.ChannelSlack, fail: true}

	prefs := fakePrefs{
		bob: prefsFor(notify.TriggerInitiated, map[string]types.ChannelPreference{
			notify.ChannelEmail: {Enabled: true, Verified: true, Handle: "bob@example.com"},
			notify.ChannelSlack: {Enabled: true, Verified: true, Handle: "U123"},
		}),
		charlie: prefsFor(notify.TriggerInitiated, map[string]types.ChannelPreference{
			notify.ChannelEmail: {Enabled: true, Verified: false, Handle: "charlie@example.com"},
		}),
	}
	d := notify.NewDispatcher(nil, "s", prefs, notify.Options{}, zap.NewNop(), email, slack)

	ev := notify.NewEvent(notify.TriggerInitiated, "polkadot", "0xms", "0xhash", alice, []string{alice, bob, charlie})
	assert.Equal(t, 1, d.Deliver(context.Background(), ev))
	assert.Equal(t, []string{"bob@example.com"}, email.handles())

	ev.Trigger = notify.TriggerExecuted
	assert.Zero(t, d.Deliver(context.Background(), ev), "trigger not enabled")
}

func TestHookAndDispatcherOverStream(t *testing.T) {
	rdb, mr := datatest.NewRedis(t)
	email := &recordChannel{name: notify.ChannelEmail}
	prefs := fakePrefs{
		bob: prefsFor(notify.TriggerApproved, map[string]types.ChannelPreference{
			notify.ChannelEmail: {Enabled: true, Verified: true, Handle: "bob@example.com"},
		}),
	}

	d := notify.NewDispatcher(rdb, "multisig.notifications", prefs,
		notify.Options{StartID: "0", Block: 50 * time.Millisecond}, zap.NewNop(), email)
	seen := make(chan notify.Event, 1)
	d.Subscribe(func(ev notify.Event) { seen <- ev })

	hook := notify.NewHook(rdb, "multisig.notifications", zap.NewNop())
	hook.Dispatch(context.Background(), notify.NewEvent(notify.TriggerApproved, "polkadot", "0xms", "0xhash", alice, []string{alice, bob}))
	hook.Wait()

	entries, err := mr.Stream("multisig.notifications")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	select {
	case ev := <-seen:
		assert.Equal(t, notify.TriggerApproved, ev.Trigger)
		assert.Equal(t, "0xhash", ev.CallHash)
		assert.Equal(t, []string{bob}, ev.Recipients)
	case <-time.After(3 * time.Second):
		t.Fatal("event not read from stream")
	}
	assert.Eventually(t, func() bool { return len(email.handles()) == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestHookDropsOnRedisFailure(t *testing.T) {
	rdb, mr := datatest.NewRedis(t)
	mr.Close()
	hook := notify.NewHook(rdb, "s", zap.NewNop())
	assert.NotPanics(t, func() {
		hook.Dispatch(context.Background(), notify.NewEvent(notify.TriggerInitiated, "polkadot", "0xms", "0xhash", alice, nil))
		hook.Wait()
	})
}

func TestHookPublishesAfterCallerCancels(t *testing.T) {
	rdb, mr := datatest.NewRedis(t)
	hook := notify.NewHook(rdb, "s", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	hook.Dispatch(ctx, notify.NewEvent(notify.TriggerApproved, "polkadot", "0xms", "0xhash", alice, []string{bob}))
	cancel()
	hook.Wait()

	entries, err := mr.Stream("s")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestValidateTriggerParams(t *testing.T) {
	assert.NoError(t, notify.ValidateTriggerParams(notify.TriggerReminder, map[string]string{notify.ReminderAfter: "36h"}))
	assert.NoError(t, notify.ValidateTriggerParams(notify.TriggerApproved, nil))
	assert.Error(t, notify.ValidateTriggerParams(notify.TriggerReminder, map[string]string{notify.ReminderAfter: "tomorrow"}))
	assert.Error(t, notify.ValidateTriggerParams(notify.TriggerReminder, map[string]string{"hours": "24"}))
	assert.Error(t, notify.ValidateTriggerParams(notify.TriggerApproved, map[string]string{notify.ReminderAfter: "1h"}))
}

func TestReminderRecipients(t *testing.T) {
	prefs := fakePrefs{
		address.Canonical(bob): {TriggerPreferences: map[string]types.TriggerPreference{
			notify.TriggerReminder: {Enabled: true},
		}},
		address.Canonical(charlie): {TriggerPreferences: map[string]types.TriggerPreference{
			notify.TriggerReminder: {Enabled: true, Params: map[string]string{notify.ReminderAfter: "72h"}},
		}},
		address.Canonical(alice): {TriggerPreferences: map[string]types.TriggerPreference{
			notify.TriggerReminder: {Enabled: false},
		}},
	}
	ctx := context.Background()

	got, err := notify.ReminderRecipients(ctx, prefs, []string{alice, bob, charlie}, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, got)

	got, err = notify.ReminderRecipients(ctx, prefs, []string{alice, bob, charlie}, 96*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{bob, charlie}, got)
}

func TestDiffTriggerPreferences(t *testing.T) {
	prev := map[string]types.TriggerPreference{
		notify.TriggerInitiated: {Enabled: true},
		notify.TriggerApproved:  {Enabled: true},
		notify.TriggerReminder:  {Enabled: true, Params: map[string]string{"after": "24h"}},
	}
	next := map[string]types.TriggerPreference{
		notify.TriggerInitiated: {Enabled: true},
		notify.TriggerApproved:  {Enabled: false},
		notify.TriggerReminder:  {Enabled: true, Params: map[string]string{"after": "12h"}},
		notify.TriggerExecuted:  {Enabled: true},
	}
	assert.Equal(t,
		[]string{notify.TriggerApproved, notify.TriggerExecuted, notify.TriggerReminder},
		notify.DiffTriggerPreferences(prev, next))
	assert.Empty(t, notify.DiffTriggerPreferences(prev, prev))
}

func TestMergeChannelPreferencesResetsVerification(t *testing.T) {
	current := map[string]types.ChannelPreference{
		notify.ChannelEmail:    {Enabled: true, Handle: "a@example.com", Verified: true},
		notify.ChannelTelegram: {Enabled: true, Handle: "42", Verified: true},
	}
	merged := notify.MergeChannelPreferences(current, map[string]types.ChannelPreference{
		notify.ChannelEmail:    {Enabled: false, Handle: "a@example.com", Verified: false},
		notify.ChannelTelegram: {Enabled: true, Handle: "43", Verified: true},
	})
	assert.True(t, merged[notify.ChannelEmail].Verified)
	assert.False(t, merged[notify.ChannelEmail].Enabled)
	assert.False(t, merged[notify.ChannelTelegram].Verified)
}

func TestTelegramChannel(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := notify.NewTelegramChannel("TOKEN", srv.URL)
	require.NoError(t, ch.Send(context.Background(), "1234", notify.Message{Subject: "s", Body: "b"}))
	assert.Equal(t, "1234", body["chat_id"])
	assert.Equal(t, "s\n\nb", body["text"])
}

func TestSlackChannelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := notify.NewSlackChannel(srv.URL).Send(context.Background(), "U1", notify.Message{Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRender(t *testing.T) {
	ev := notify.NewEvent(notify.TriggerInitiated, "polkadot", bob, "0xab12cd34ef56ab12cd34ef56", alice, []string{alice, bob})
	msg := notify.Render(ev)
	assert.Contains(t, msg.Subject, "polkadot")
	assert.Contains(t, msg.Body, "5Grwva…")
}

func TestWrapURLsNoEmbed(t *testing.T) {
	assert.Equal(t, "see <https://polkadot.subscan.io/tx/0x1>.", notify.WrapURLsNoEmbed("see https://polkadot.subscan.io/tx/0x1."))
	assert.Equal(t, "no links", notify.WrapURLsNoEmbed("no links"))
}
