package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wauterstoon/tickets/internal/domain"
)

// Broker publishes newly created messages to a ticket's room. Publishing is
// fire-and-forget: it happens after the durable write and its failure is
// never surfaced to the caller.
type Broker interface {
	PublishMessage(ctx context.Context, ticketNumber int64, msg *domain.Message)
}

// LocalBroker fans out directly through the in-process hub. Used when no
// Redis is configured (single-instance deployments).
type LocalBroker struct {
	hub    *Hub
	logger *zap.Logger
}

// NewLocalBroker constructs a hub-only broker.
func NewLocalBroker(hub *Hub, logger *zap.Logger) *LocalBroker {
	return &LocalBroker{hub: hub, logger: logger}
}

// PublishMessage broadcasts to local subscribers of the ticket's room.
func (b *LocalBroker) PublishMessage(ctx context.Context, ticketNumber int64, msg *domain.Message) {
	payload, err := json.Marshal(NewMessageEvent(msg))
	if err != nil {
		b.logger.Warn("marshal broadcast event", zap.Error(err))
		return
	}
	b.hub.Broadcast(RoomForTicket(ticketNumber), payload)
}
