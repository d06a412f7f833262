package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pulsewire/server/cache"
	"github.com/pulsewire/server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmit_PublishesToUserChannel(t *testing.T) {
	ps, err := cache.NewPubSub(cache.CacheConfig{})
	require.NoError(t, err)
	svc := notify.NewService(ps, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, unsub, err := ps.Subscribe(ctx, notify.ChannelFor(7))
	require.NoError(t, err)
	defer unsub()

	svc.Emit(&notify.Event{
		Type:       notify.EventPulse,
		ToUserID:   7,
		FromUserID: 3,
		Payload:    map[string]interface{}{"pulse_id": float64(11)},
	})

	select {
	case msg := <-msgCh:
		var ev notify.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, notify.EventPulse, ev.Type)
		assert.Equal(t, int64(7), ev.ToUserID)
		assert.Equal(t, int64(3), ev.FromUserID)
		assert.Equal(t, float64(11), ev.Payload["pulse_id"])
		assert.False(t, ev.EmittedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
	}
}

func TestEmit_TriggersHooks(t *testing.T) {
	ps, err := cache.NewPubSub(cache.CacheConfig{})
	require.NoError(t, err)

	hooks := notify.NewHookCenter()
	seen := make(chan string, 1)
	hooks.Register(notify.EventFriendRequest, 0, "probe",
		func(_ context.Context, event string, _ *notify.Event) error {
			seen <- event
			return nil
		})

	svc := notify.NewService(ps, hooks, zap.NewNop())
	svc.Emit(&notify.Event{Type: notify.EventFriendRequest, ToUserID: 1})

	select {
	case event := <-seen:
		assert.Equal(t, notify.EventFriendRequest, event)
	case <-time.After(2 * time.Second):
		t.Fatal("hook never fired")
	}
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "notify:42", notify.ChannelFor(42))
}
