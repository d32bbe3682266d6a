package hub

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the pub/sub channels used by the bridge.
// The full channel name is "hub:{stream}:{userID}".
const channelPrefix = "hub"

// RedisBridge fans events out through Redis pub/sub so that every instance
// of the server delivers them to its own local connections.
type RedisBridge struct {
	rdb    *redis.Client
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// AttachRedis connects the hub to Redis at the given URL and starts the
// receive loop. Events published on any instance reach this hub's local
// clients through the subscription.
func (h *Hub) AttachRedis(redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		return fmt.Errorf("ping redis: %w", err)
	}

	pubsub := rdb.PSubscribe(ctx, channelPrefix+":*")
	// Wait for the subscription confirmation so events published after
	// AttachRedis returns are guaranteed to reach this hub.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		_ = rdb.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	bridge := &RedisBridge{rdb: rdb, pubsub: pubsub, cancel: cancel}

	h.mu.Lock()
	h.bridge = bridge
	h.mu.Unlock()

	go h.receiveLoop(pubsub)

	return nil
}

// DetachRedis stops the receive loop and closes the Redis connections.
func (h *Hub) DetachRedis() {
	h.mu.Lock()
	bridge := h.bridge
	h.bridge = nil
	h.mu.Unlock()

	if bridge == nil {
		return
	}

	bridge.cancel()
	_ = bridge.pubsub.Close()
	_ = bridge.rdb.Close()
}

func (h *Hub) receiveLoop(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		stream, userID, err := parseChannel(msg.Channel)
		if err != nil {
			log.Printf("hub: dropping message on unexpected channel %q: %v", msg.Channel, err)
			continue
		}
		h.deliverLocal(stream, userID, []byte(msg.Payload))
	}
}

func (b *RedisBridge) publish(stream Stream, userID uint, payload []byte) error {
	channel := fmt.Sprintf("%s:%s:%d", channelPrefix, stream, userID)
	return b.rdb.Publish(context.Background(), channel, payload).Err()
}

func parseChannel(channel string) (Stream, uint, error) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 {
		return "", 0, fmt.Errorf("malformed channel")
	}
	userID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed user id: %w", err)
	}
	return Stream(parts[1]), uint(userID), nil
}
