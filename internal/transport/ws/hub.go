package ws

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("ws hub closed")

// Hub routes frames to the sessions of a channel. A user may hold several
// sessions at once; all of them receive every frame. The session table is
// owned by the Run goroutine.
type Hub struct {
	sessions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	counts     chan countRequest
	done       chan struct{}

	log *zap.Logger
}

type delivery struct {
	channel string
	frame   []byte
}

type countRequest struct {
	channel string
	reply   chan int
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
		log:        log.With(zap.String("component", "ws_hub")),
	}
}

// Run processes registrations and deliveries until ctx is cancelled, then
// closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			set, ok := h.sessions[c.channel]
			if !ok {
				set = make(map[*Client]struct{})
				h.sessions[c.channel] = set
			}
			set[c] = struct{}{}
			h.log.Debug("session opened", zap.String("user_id", c.channel), zap.Int("sessions", len(set)))

		case c := <-h.unregister:
			if h.remove(c) {
				h.log.Debug("session closed", zap.String("user_id", c.channel))
			}

		case d := <-h.deliver:
			for c := range h.sessions[d.channel] {
				select {
				case c.send <- d.frame:
				default:
					h.log.Warn("dropping slow session", zap.String("user_id", c.channel))
					h.remove(c)
				}
			}

		case req := <-h.counts:
			req.reply <- len(h.sessions[req.channel])

		case <-ctx.Done():
			for _, set := range h.sessions {
				for c := range set {
					h.remove(c)
				}
			}
			return
		}
	}
}

func (h *Hub) remove(c *Client) bool {
	set, ok := h.sessions[c.channel]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.channel)
	}
	close(c.send)
	return true
}

func (h *Hub) join(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SessionCount reports how many live sessions a channel has.
func (h *Hub) SessionCount(ctx context.Context, channel string) (int, error) {
	req := countRequest{channel: channel, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.reply, nil
}
