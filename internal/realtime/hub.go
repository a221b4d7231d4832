package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

const subscriberBuffer = 32

type channelSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type subscriber struct {
	principal auth.Principal
	ch        chan Message
}

// Hub holds one Redis subscription per API process and fans messages out to
// connected streams. Delivery is best effort: a subscriber whose buffer is
// full misses the message.
type Hub struct {
	redis   channelSubscriber
	channel string
	logg    *logger.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber
}

func NewHub(redis channelSubscriber, channel string, logg *logger.Logger) (*Hub, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis subscriber required")
	}
	if channel == "" {
		return nil, fmt.Errorf("realtime channel required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{redis: redis, channel: channel, logg: logg, subs: make(map[uuid.UUID]*subscriber)}, nil
}

// Run blocks until ctx is done, relaying every message from Redis.
func (h *Hub) Run(ctx context.Context) error {
	pubsub := h.redis.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so publishes right after Run
	// starts are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", h.channel, err)
	}
	h.logg.Info(h.logg.WithFields(ctx, map[string]any{"channel": h.channel}), "realtime.subscribed")

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case raw, ok := <-incoming:
			if !ok {
				h.closeAll()
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				h.logg.Warn(h.logg.WithFields(ctx, map[string]any{"error": err.Error()}), "realtime.decode_failed")
				continue
			}
			h.broadcast(msg)
		}
	}
}

// Subscribe registers a stream for principal. The returned cancel func must
// be called when the stream ends.
func (h *Hub) Subscribe(principal auth.Principal) (<-chan Message, func()) {
	id := uuid.New()
	sub := &subscriber{principal: principal, ch: make(chan Message, subscriberBuffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !msg.VisibleTo(sub.principal) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
