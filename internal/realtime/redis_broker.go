package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wauterstoon/tickets/internal/domain"
)

const channelPrefix = "broadcast:"

// RedisBroker routes publishes through Redis pub/sub so every service
// instance delivers to its own local subscribers. The publishing instance
// receives its own publish back through the relay; the hub is only fed from
// the relay, so each connection sees each publish exactly once.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroker constructs the broker. Call Run to start the relay.
func NewRedisBroker(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: logger}
}

// PublishMessage publishes the event to the room's Redis channel. Failure is
// logged and otherwise ignored; the durable message record already exists.
func (b *RedisBroker) PublishMessage(ctx context.Context, ticketNumber int64, msg *domain.Message) {
	payload, err := json.Marshal(NewMessageEvent(msg))
	if err != nil {
		b.logger.Warn("marshal broadcast event", zap.Error(err))
		return
	}
	channel := channelPrefix + RoomForTicket(ticketNumber)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Warn("broadcast publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// Run subscribes to all room channels and relays incoming publishes into the
// local hub until the context is canceled.
func (b *RedisBroker) Run(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"ticket-*")
	defer pubsub.Close() //nolint:errcheck

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)
			b.hub.Broadcast(room, []byte(msg.Payload))
		}
	}
}
