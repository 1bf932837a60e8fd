package ws

import (
	"boardsync/internal/services/board"
	"context"

	"go.uber.org/zap"
)

// Hub delivers events to the members of a room connected to this process.
type Hub struct {
	registry *Registry
}

var _ board.Fanout = (*Hub)(nil)

func NewHub(registry *Registry) *Hub { return &Hub{registry: registry} }

// Publish implements board.Fanout for single-instance deployments.
func (h *Hub) Publish(_ context.Context, ev board.Event) error {
	frame, err := encodeEnvelope(envelopeFor(ev))
	if err != nil {
		return err
	}
	h.Broadcast(ev.RoomID, frame)
	return nil
}

// Broadcast sends frame to every current member and returns how many sends
// were queued. A failing member never stops delivery to the others.
func (h *Hub) Broadcast(roomID int64, frame []byte) int {
	sent := 0
	for _, c := range h.registry.MembersOf(roomID) {
		if err := c.Send(frame); err != nil {
			zap.L().Debug("ws.deliver_failed",
				zap.Int64("room", roomID),
				zap.Uint64("conn", c.ID()),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func envelopeFor(ev board.Event) Envelope {
	return Envelope{
		Type:    MessageType(ev.Type),
		RoomID:  ev.RoomID,
		Message: ev.Message,
		UserID:  ev.UserID,
	}
}
