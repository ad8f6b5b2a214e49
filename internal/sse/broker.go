// Package sse streams link index changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/weft/internal/index"
)

// EventGraphUpdated tells clients to refetch the graph. It is throttled.
const EventGraphUpdated = "graph.updated"

// keepAlive is the interval between comment frames on idle streams.
const keepAlive = 25 * time.Second

// clientBuffer is the number of frames a slow client may lag behind before
// frames are dropped for it.
const clientBuffer = 64

// Event is one named SSE message. Data is sent as JSON.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// hub is the broker state. Only the loop goroutine touches it.
type hub struct {
	clients   map[chan []byte]struct{}
	graphMin  time.Duration
	lastGraph time.Time
}

func (h *hub) send(ev Event) {
	frame, err := encode(ev)
	if err != nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- frame:
		default: // lagging client
		}
	}
}

// change sends ev, then graph.updated if the graph moved and the last one
// went out at least graphMin ago.
func (h *hub) change(ev Event, graphChanged bool) {
	h.send(ev)
	if !graphChanged {
		return
	}
	if now := time.Now(); now.Sub(h.lastGraph) >= h.graphMin {
		h.lastGraph = now
		h.send(Event{Type: EventGraphUpdated, Data: map[string]string{}})
	}
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)), nil
}

// Broker fans index events out to SSE clients. All state lives in a hub
// owned by one goroutine; methods queue operations on it.
type Broker struct {
	ops     chan func(*hub)
	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. graph.updated is sent at most once per
// graphThrottle.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		ops:     make(chan func(*hub), 256),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	h := &hub{clients: make(map[chan []byte]struct{}), graphMin: graphThrottle}
	go b.loop(h)
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.quit:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// post queues op without waiting for it to run.
func (b *Broker) post(op func(*hub)) {
	if b.closed.Load() {
		return
	}
	select {
	case b.ops <- op:
	case <-b.stopped:
	}
}

// call runs op on the loop and waits. It reports false when the broker
// stopped before op ran.
func (b *Broker) call(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	ran := make(chan struct{})
	select {
	case b.ops <- func(h *hub) { op(h); close(ran) }:
	case <-b.stopped:
		return false
	}
	select {
	case <-ran:
		return true
	case <-b.stopped:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Close stops the broker and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or
// Close; after Close it is returned already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.call(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.call(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := 0
	b.call(func(h *hub) { n = len(h.clients) })
	return n
}

// Publish sends ev to every client.
func (b *Broker) Publish(ev Event) {
	b.post(func(h *hub) { h.send(ev) })
}

// PublishChange sends ev and, when graphChanged is set, a throttled
// graph.updated.
func (b *Broker) PublishChange(ev Event, graphChanged bool) {
	b.post(func(h *hub) { h.change(ev, graphChanged) })
}

// OnIndexEvent forwards a linker event. It has the shape of
// index.EventCallback.
func (b *Broker) OnIndexEvent(ev index.Event) {
	switch ev.Type {
	case index.EventDocumentSaved:
		data := map[string]any{"uuid": ev.ID.String(), "kind": ev.Kind}
		moved := false
		if u := ev.Update; u != nil {
			data["added"] = u.Added
			data["removed"] = u.Removed
			data["dangling"] = u.Dangling
			moved = u.Added+u.Removed > 0
		}
		b.PublishChange(Event{Type: ev.Type, Data: data}, moved)
	case index.EventDocumentDeleted:
		b.PublishChange(Event{Type: ev.Type, Data: map[string]any{"uuid": ev.ID.String(), "kind": ev.Kind}}, true)
	case index.EventIndexRebuilt:
		b.PublishChange(Event{Type: ev.Type, Data: ev.Stats}, true)
	}
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes. Mounted at GET /api/events.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	write := func(frame []byte) {
		_, _ = w.Write(frame)
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			write([]byte(": ping\n\n"))
		case frame, ok := <-ch:
			if !ok {
				return
			}
			write(frame)
		}
	}
}
