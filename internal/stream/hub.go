// Package stream pushes view snapshots to connected renderers. Hubs on
// different instances relay to each other through redis pub/sub.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "view:"
	channelSuffix = ":snapshot"
)

type Hub struct {
	id      string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	ViewID string
	Send   chan []byte
}

// envelope is what travels over redis; Origin lets a hub skip its own
// messages, which it already delivered locally.
type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		logger:  slog.Default().With("component", "stream"),
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.done)
		return h
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	ready := make(chan struct{})
	go h.subscribeRedis(ctx, ready)
	<-ready
	return h
}

func (h *Hub) Register(viewID string) *Client {
	client := &Client{
		ViewID: viewID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[viewID] == nil {
		h.clients[viewID] = map[*Client]struct{}{}
	}
	h.clients[viewID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if viewClients, ok := h.clients[client.ViewID]; ok {
		delete(viewClients, client)
		if len(viewClients) == 0 {
			delete(h.clients, client.ViewID)
		}
	}
	close(client.Send)
}

// Connected reports how many local clients watch viewID.
func (h *Hub) Connected(viewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[viewID])
}

// Broadcast delivers payload to local clients of viewID and relays it to
// other instances. Slow clients miss messages rather than block.
func (h *Hub) Broadcast(viewID string, payload []byte) {
	h.deliver(viewID, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.id, Payload: payload})
	if err != nil {
		return
	}
	if err := h.redis.Publish(context.Background(), redisChannel(viewID), msg).Err(); err != nil {
		h.logger.Warn("redis publish failed", "view_id", viewID, "error", err)
	}
}

func (h *Hub) deliver(viewID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[viewID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	defer close(h.done)
	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()
	// wait for the subscription so nothing published after NewHub is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Warn("redis subscribe failed", "error", err)
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Origin == h.id {
				continue
			}
			if viewID := viewIDFromChannel(msg.Channel); viewID != "" {
				h.deliver(viewID, env.Payload)
			}
		}
	}
}

// Close stops the redis relay.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

func redisChannel(viewID string) string {
	return channelPrefix + viewID + channelSuffix
}

func viewIDFromChannel(ch string) string {
	// view:{id}:snapshot
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
