package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hperssn/stride/internal/logging"
	"github.com/hperssn/stride/internal/runner"
)

const (
	channelPrefix  = "timer:"
	channelSuffix  = ":snapshot"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans timer events out to local clients per activity and mirrors them
// through redis so clients attached to other processes see them too.
type Hub struct {
	redis   *redis.Client
	origin  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	ActivityID string
	Send       chan []byte
}

type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// NewHub creates a hub. A nil redis client keeps fan-out in-process.
func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		redis:   redisClient,
		origin:  uuid.New().String(),
		clients: map[string]map[*Client]struct{}{},
	}
}

func (h *Hub) Register(activityID string) *Client {
	client := &Client{
		ActivityID: activityID,
		Send:       make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[activityID] == nil {
		h.clients[activityID] = map[*Client]struct{}{}
	}
	h.clients[activityID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if activityClients, ok := h.clients[client.ActivityID]; ok {
		if _, registered := activityClients[client]; !registered {
			return
		}
		delete(activityClients, client)
		if len(activityClients) == 0 {
			delete(h.clients, client.ActivityID)
		}
		close(client.Send)
	}
}

// Broadcast delivers payload to local clients of activityID and publishes it.
func (h *Hub) Broadcast(ctx context.Context, activityID string, payload []byte) {
	h.deliver(activityID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.origin, Payload: payload})
	if err != nil {
		logging.Logger.Error("Failed to encode relay message", "error", err)
		return
	}
	if err := h.redis.Publish(ctx, redisChannel(activityID), msg).Err(); err != nil {
		logging.Logger.Warn("Redis publish failed", "error", err, "activity_id", activityID)
	}
}

// Relay broadcasts timer events until events closes or ctx ends.
func (h *Hub) Relay(ctx context.Context, events <-chan runner.Event) error {
	var lastActivity string
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			activityID := event.Session.ActivityID
			if activityID == "" {
				// A reset event carries the empty session.
				activityID = lastActivity
			}
			lastActivity = event.Session.ActivityID
			if activityID == "" {
				continue
			}

			payload, err := json.Marshal(event)
			if err != nil {
				logging.Logger.Error("Failed to encode timer event", "error", err)
				continue
			}
			h.Broadcast(ctx, activityID, payload)
		}
	}
}

// Run forwards events published by other processes to local clients until ctx
// ends. Without redis it just waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logging.Logger.Warn("Dropping malformed relay message", "error", err, "channel", msg.Channel)
				continue
			}
			if env.Origin == h.origin {
				continue
			}
			if activityID := activityIDFromChannel(msg.Channel); activityID != "" {
				h.deliver(activityID, env.Payload)
			}
		}
	}
}

func (h *Hub) deliver(activityID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[activityID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func redisChannel(activityID string) string {
	return channelPrefix + activityID + channelSuffix
}

func activityIDFromChannel(ch string) string {
	// timer:{activity}:snapshot
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
