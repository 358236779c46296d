// Package sse implements a Server-Sent Events broker for dossier change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/dossier/internal/ident"
	"github.com/starford/dossier/internal/links"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event kinds accepted by PublishDossierEvent.
const (
	KindCreated       = "created"
	KindUpdated       = "updated"
	KindDeleted       = "deleted"
	KindChanged       = "changed"
	KindActiveChanged = "active.changed"
)

const defaultHeartbeat = 25 * time.Second

// message is one queued broadcast. dossierID scopes it to clients that
// follow that dossier; an empty dossierID reaches every client.
type message struct {
	event     Event
	dossierID string
	throttle  bool
}

type subscription struct {
	ch     chan []byte
	filter string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set, the per-dossier throttle
// timestamps and the event sequence. Public methods talk to it over
// channels.
type Broker struct {
	changedMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan message
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments on open streams.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewBroker creates a new SSE broker. External change events for the same
// dossier are throttled to one per changedThrottle.
func NewBroker(changedThrottle time.Duration, opts ...Option) *Broker {
	if changedThrottle <= 0 {
		changedThrottle = 2 * time.Second
	}

	b := &Broker{
		changedMin:    changedThrottle,
		heartbeat:     defaultHeartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan message, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastChanged := make(map[string]time.Time)
	var seq uint64

	broadcast := func(m message) {
		payload, err := json.Marshal(m.event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, m.event.Type, payload))

		for ch, filter := range clients {
			if filter != "" && m.dossierID != "" && filter != m.dossierID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.filter

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case m := <-b.publishCh:
			if m.throttle {
				now := time.Now()
				if now.Sub(lastChanged[m.dossierID]) < b.changedMin {
					continue
				}
				lastChanged[m.dossierID] = now
			}
			if m.event.Type == "dossier."+KindDeleted {
				delete(lastChanged, m.dossierID)
			}
			broadcast(m)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. A non-empty
// dossierID limits delivery to that dossier's events plus unscoped ones.
func (b *Broker) Subscribe(dossierID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, filter: dossierID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

func (b *Broker) enqueue(m message) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- m:
	case <-b.stopped:
	}
}

// Publish sends an unscoped event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.enqueue(message{event: event})
}

// PublishDossierEvent publishes a dossier lifecycle event as
// "dossier.<kind>" with {"id": id}. active.changed keeps its name and
// reaches every client. KindChanged events are throttled per dossier;
// unknown kinds are dropped.
func (b *Broker) PublishDossierEvent(kind, id string) {
	data := map[string]string{"id": id}
	switch kind {
	case KindCreated, KindUpdated, KindDeleted:
		b.enqueue(message{event: Event{Type: "dossier." + kind, Data: data}, dossierID: id})
	case KindChanged:
		b.enqueue(message{event: Event{Type: "dossier." + kind, Data: data}, dossierID: id, throttle: true})
	case KindActiveChanged:
		b.enqueue(message{event: Event{Type: KindActiveChanged, Data: data}})
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?d=<id>]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get(links.Param)
	if filter != "" && !ident.Valid(filter) {
		http.Error(w, "unknown dossier", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(filter)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
