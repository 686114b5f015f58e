// Package chat implements the live chat room: a websocket hub, per-connection clients
// and the persistence service behind them.
package chat

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// RoomMain is the single room every joined client belongs to.
const RoomMain = "main"

type delivery struct {
	payload []byte
	to      *Client // direct delivery when set
	except  *Client // broadcast skips this member
}

// Hub owns the set of connected clients. All membership changes and sends go through Run,
// so broadcast order equals the order in which Broadcast was called.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan *Client
	outbound   chan delivery
	done       chan struct{}
	stopped    chan struct{}

	log *zap.Logger

	// owned by Run
	clients  map[*Client]bool
	departed []*Client // members dropped mid fan-out, announced before the next event
}

// NewHub creates a hub; call Run in its own goroutine.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *Client),
		outbound:   make(chan delivery, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        log,
		clients:    map[*Client]bool{},
	}
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		h.announceDepartures()
		select {
		case c := <-h.register:
			h.clients[c] = false
		case c := <-h.join:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.clients[c] = true
			if !c.guest {
				h.fanOut(mustFrame(EventUserJoined, fmt.Sprintf("%s joined the chat", c.displayName)), c)
			}
			h.deliver(c, mustFrame(EventJoined, joinedPayload{Room: RoomMain, UserID: c.userID, DisplayName: c.displayName, Guest: c.guest}))
		case c := <-h.unregister:
			joined, ok := h.clients[c]
			if !ok {
				continue
			}
			h.drop(c)
			if joined && !c.guest {
				h.fanOut(mustFrame(EventUserLeft, fmt.Sprintf("%s left the chat", c.displayName)), nil)
			}
		case d := <-h.outbound:
			if d.to != nil {
				if _, ok := h.clients[d.to]; ok {
					h.deliver(d.to, d.payload)
				}
				continue
			}
			h.fanOut(d.payload, d.except)
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	<-h.stopped
}

// Register adds a freshly connected client (not yet a room member).
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and announces its departure when it was a member.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Join makes c a member of the room. When Join returns, later broadcasts include c.
func (h *Hub) Join(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
	}
}

// Broadcast sends a frame to every member.
func (h *Hub) Broadcast(event string, data interface{}) error {
	payload, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	h.enqueue(delivery{payload: payload})
	return nil
}

// SendTo delivers a frame to a single connected client.
func (h *Hub) SendTo(c *Client, event string, data interface{}) {
	payload, err := encodeFrame(event, data)
	if err != nil {
		h.log.Warn("encode direct frame failed", zap.Error(err))
		return
	}
	h.enqueue(delivery{payload: payload, to: c})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbound <- d:
	case <-h.done:
	}
}

func (h *Hub) fanOut(payload []byte, except *Client) {
	for c, joined := range h.clients {
		if !joined || c == except {
			continue
		}
		h.deliver(c, payload)
	}
}

// deliver never blocks; a client whose buffer is full is dropped.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.log.Warn("dropping slow chat client", zap.Uint("user_id", c.userID))
		if joined := h.clients[c]; joined && !c.guest {
			h.departed = append(h.departed, c)
		}
		h.drop(c)
	}
}

func (h *Hub) announceDepartures() {
	for len(h.departed) > 0 {
		c := h.departed[0]
		h.departed = h.departed[1:]
		h.fanOut(mustFrame(EventUserLeft, fmt.Sprintf("%s left the chat", c.displayName)), nil)
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: data})
}

func mustFrame(event string, data interface{}) []byte {
	b, err := encodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return b
}
