package ws

import (
	"context"
)

// Publish encodes an event and routes it to every session on channelID.
// Users without a live session simply miss it.
func (h *Hub) Publish(ctx context.Context, channelID, event string, payload any) error {
	frame, err := Encode(event, channelID, payload)
	if err != nil {
		return err
	}
	return h.Deliver(ctx, channelID, frame)
}

// Deliver queues an already-encoded frame for channelID.
func (h *Hub) Deliver(ctx context.Context, channelID string, frame []byte) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.deliver <- delivery{channel: channelID, frame: frame}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
