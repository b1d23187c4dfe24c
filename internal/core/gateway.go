package core

import (
	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/proto"
)

// ConnectionGateway registers authenticated connections in the presence
// registry and pushes live events to them. Delivery is best effort: events
// for offline users or full buffers are dropped, never queued.
type ConnectionGateway struct {
	registry *PresenceRegistry
	log      *zerolog.Logger
}

// NewGateway builds a gateway around the given registry.
func NewGateway(registry *PresenceRegistry, logger *zerolog.Logger) *ConnectionGateway {
	return &ConnectionGateway{
		registry: registry,
		log:      logger,
	}
}

// Registry exposes the underlying presence registry.
func (g *ConnectionGateway) Registry() *PresenceRegistry {
	return g.registry
}

// Register marks the user online and broadcasts the updated online list to
// every registered connection, the new one included.
func (g *ConnectionGateway) Register(userID int64, conn *Conn) {
	g.registry.Register(userID, conn)
	g.log.Info().Int64("user_id", userID).Str("conn_id", conn.ID).Msg("connection registered")
	g.broadcastPresence()
}

// Unregister removes the mapping if it still belongs to this connection and
// broadcasts the updated online list. A stale disconnect (the user already
// reconnected on another handle) changes nothing and broadcasts nothing.
func (g *ConnectionGateway) Unregister(userID int64, conn *Conn) {
	if !g.registry.Unregister(userID, conn) {
		g.log.Debug().Int64("user_id", userID).Str("conn_id", conn.ID).Msg("stale disconnect ignored")
		return
	}
	g.log.Info().Int64("user_id", userID).Str("conn_id", conn.ID).Msg("connection unregistered")
	g.broadcastPresence()
}

// SendEvent delivers an event to the user's connection if one is registered.
// Absent or slow connections drop the event silently.
func (g *ConnectionGateway) SendEvent(userID int64, event string, payload any) {
	conn, ok := g.registry.Lookup(userID)
	if !ok {
		return
	}
	if !conn.send(proto.Outbound{Event: event, Data: payload}) {
		g.log.Warn().Int64("user_id", userID).Str("event", event).Msg("dropped event for slow consumer")
	}
}

func (g *ConnectionGateway) broadcastPresence() {
	ids := g.registry.SnapshotIDs()
	payload := proto.OnlineUsersPayload{UserIDs: ids}
	for _, id := range ids {
		conn, ok := g.registry.Lookup(id)
		if !ok {
			continue
		}
		if !conn.send(proto.Outbound{Event: proto.EventOnlineUsers, Data: payload}) {
			g.log.Warn().Int64("user_id", id).Msg("dropped presence broadcast for slow consumer")
		}
	}
}
