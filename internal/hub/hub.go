// Package hub owns the server's connected-client registry and the device
// backbuffer together, behind one mutex, so that priming a newly-accepted
// client with the backbuffer and broadcasting freshly-appended device bytes
// are mutually atomic: no live chunk can be enqueued to a client's Out
// channel before that client's backbuffer replay, because both happen
// inside the same critical section that also makes the client visible to
// future broadcasts.
package hub

import (
	"sync"

	"zagreus/internal/logging"
	"zagreus/internal/metrics"
)

// BackpressurePolicy controls what happens when a client's outbound buffer
// is full at broadcast time.
type BackpressurePolicy int

const (
	// PolicyDrop silently discards the chunk for that client only.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick closes the slow client; its writer then exits and closes the
	// connection, and the server removes it once its reader sees that close.
	PolicyKick
)

// Client is a hub-registered connection. Out delivers chunks in FIFO order;
// Closed is closed exactly once, signaling the client's writer to exit.
type Client struct {
	Out       chan []byte
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Closed)
	})
}

// Hub fans device bytes out to connected clients and retains a bounded tail
// of recent bytes for replay to newly-connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	back    *ringBuffer

	OutBufSize int
	Policy     BackpressurePolicy
}

// New creates a Hub with the given backbuffer capacity in bytes.
func New(backbufferSize int) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		back:       newRingBuffer(backbufferSize),
		OutBufSize: 256,
	}
}

// Accept registers a new client and primes its Out channel with the current
// backbuffer contents, atomically with respect to concurrent Append calls:
// the client either sees its priming chunk before any broadcast chunk
// appended after Accept returns, or that chunk is itself already folded
// into the backbuffer the client was primed with.
func (h *Hub) Accept() *Client {
	c := &Client{
		Out:    make(chan []byte, h.bufSize()),
		Closed: make(chan struct{}),
	}
	h.mu.Lock()
	if snap := h.back.Snapshot(); len(snap) > 0 {
		c.Out <- snap
	}
	prev := len(h.clients)
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()

	metrics.SetConnectionsActive(cur)
	if prev == 0 && cur == 1 {
		logging.L().Info("clients_first_connected")
	}
	return c
}

func (h *Hub) bufSize() int {
	if h.OutBufSize <= 0 {
		return 256
	}
	return h.OutBufSize
}

// Remove unregisters a client. Safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()

	c.Close()
	metrics.SetConnectionsActive(cur)
	if existed && cur == 0 {
		logging.L().Info("clients_last_disconnected")
	}
}

// Append adds data to the backbuffer and broadcasts it to every connected
// client, honoring the configured backpressure policy for clients whose Out
// channel is full.
func (h *Hub) Append(data []byte) {
	h.mu.Lock()
	h.back.Append(data)
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	metrics.SetBroadcastFanout(len(clients))
	metrics.SetBackbufferOccupancy(h.BackbufferLen())
	for _, c := range clients {
		select {
		case c.Out <- data:
		default:
			if h.Policy == PolicyKick {
				metrics.IncHubKick()
				c.Close()
			} else {
				metrics.IncHubDrop()
			}
		}
	}
}

// Snapshot returns a slice copy of currently connected clients.
func (h *Hub) Snapshot() []*Client {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	return n
}

// BackbufferLen returns the current backbuffer occupancy in bytes.
func (h *Hub) BackbufferLen() int {
	h.mu.Lock()
	n := h.back.size
	h.mu.Unlock()
	return n
}
