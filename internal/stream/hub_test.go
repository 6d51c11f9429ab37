package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/stride/internal/domain"
	"github.com/hperssn/stride/internal/runner"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for message on %s", c.ActivityID)
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("run")
	defer hub.Unregister(client)
	other := hub.Register("swim")
	defer hub.Unregister(other)

	hub.Broadcast(context.Background(), "run", []byte("hello"))

	assert.Equal(t, "hello", string(receive(t, client)))
	assert.Empty(t, other.Send)
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("run")
	assert.Equal(t, "timer:run:snapshot", ch)
	assert.Equal(t, "run", activityIDFromChannel(ch))
	assert.Empty(t, activityIDFromChannel("bad"))
	assert.Empty(t, activityIDFromChannel("tracking:abc:broadcast"))
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("run")
	hub.Unregister(client)
	hub.Unregister(client)

	_, ok := <-client.Send
	assert.False(t, ok)
}

func TestHubRelayTimerEvents(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("run")
	defer hub.Unregister(client)

	events := make(chan runner.Event, 2)
	events <- runner.Event{Type: runner.EventTick, Session: domain.Session{ActivityID: "run", ElapsedSeconds: 3}}
	events <- runner.Event{Type: runner.EventReset}
	close(events)

	require.NoError(t, hub.Relay(context.Background(), events))

	var tick runner.Event
	require.NoError(t, json.Unmarshal(receive(t, client), &tick))
	assert.Equal(t, runner.EventTick, tick.Type)
	assert.Equal(t, 3, tick.Session.ElapsedSeconds)

	var reset runner.Event
	require.NoError(t, json.Unmarshal(receive(t, client), &reset))
	assert.Equal(t, runner.EventReset, reset.Type, "reset goes to the last active activity")
}

func TestHubRedisAcrossProcesses(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbA.Close()
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA := NewHub(rdbA)
	hubB := NewHub(rdbB)
	go hubA.Run(ctx)
	go hubB.Run(ctx)

	local := hubA.Register("run")
	defer hubA.Unregister(local)
	remote := hubB.Register("run")
	defer hubB.Unregister(remote)

	// Both hubs must be subscribed before publishing.
	require.Eventually(t, func() bool {
		return s.PubSubNumPat() >= 2
	}, time.Second, 5*time.Millisecond)

	hubA.Broadcast(ctx, "run", []byte(`{"type":"tick"}`))

	assert.JSONEq(t, `{"type":"tick"}`, string(receive(t, remote)))
	assert.JSONEq(t, `{"type":"tick"}`, string(receive(t, local)))

	select {
	case msg := <-local.Send:
		t.Fatalf("origin hub must not echo its own message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	node := hub.Register("run")
	defer hub.Unregister(node)

	hub.Broadcast(context.Background(), "run", []byte("ping"))
	assert.Equal(t, "ping", string(receive(t, node)), "local delivery survives redis failure")
}

func TestHubRunWithoutRedis(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, hub.Run(ctx))
}
