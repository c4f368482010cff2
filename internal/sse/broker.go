// Package sse streams vault and publish events to HTTP clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Event types emitted by the broker itself. Publish events are produced by
// the publisher and passed through Publish.
const (
	TypeNoteCreated  = "note.created"
	TypeNoteUpdated  = "note.updated"
	TypeNoteDeleted  = "note.deleted"
	TypeIndexUpdated = "index.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var noteTypes = map[string]string{
	"created": TypeNoteCreated,
	"updated": TypeNoteUpdated,
	"deleted": TypeNoteDeleted,
}

// frame is an encoded event kept for replay.
type frame struct {
	id   uint64
	typ  string
	data []byte
}

type client struct {
	ch       chan []byte
	prefixes []string
}

func (c *client) wants(typ string) bool {
	if len(c.prefixes) == 0 {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

type subscribeReq struct {
	c      *client
	lastID uint64
}

type noteEventReq struct {
	kind string
	path string
}

// Option configures a Broker.
type Option func(*Broker)

// WithRefreshThrottle sets the minimum gap between index.updated events.
func WithRefreshThrottle(d time.Duration) Option { return func(b *Broker) { b.refreshMin = d } }

// WithHistory sets how many recent events are kept for clients resuming
// with Last-Event-ID.
func WithHistory(n int) Option { return func(b *Broker) { b.historySize = n } }

// WithHeartbeat sets the keep-alive comment interval; zero disables it.
func WithHeartbeat(d time.Duration) Option { return func(b *Broker) { b.heartbeat = d } }

// WithClock sets the clock used for throttling and heartbeats.
func WithClock(c clockwork.Clock) Option { return func(b *Broker) { b.clock = c } }

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the replay buffer and
// the index.updated throttle; public methods talk to it over channels.
type Broker struct {
	refreshMin  time.Duration
	historySize int
	heartbeat   time.Duration
	clock       clockwork.Clock

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		refreshMin:    2 * time.Second,
		historySize:   100,
		heartbeat:     30 * time.Second,
		clock:         clockwork.NewRealClock(),
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	if b.refreshMin <= 0 {
		b.refreshMin = 2 * time.Second
	}

	go b.run()
	return b
}

func encode(f frame) []byte {
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", f.id, f.typ, f.data))
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	var (
		lastRefresh time.Time
		nextID      uint64
		history     []frame
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		nextID++
		f := frame{id: nextID, typ: event.Type, data: payload}
		if b.historySize > 0 {
			history = append(history, f)
			if len(history) > b.historySize {
				history = history[len(history)-b.historySize:]
			}
		}
		raw := encode(f)
		for ch, c := range clients {
			if !c.wants(f.typ) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
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

		case req := <-b.subscribeCh:
			clients[req.c.ch] = req.c
			if req.lastID == 0 {
				continue
			}
			for _, f := range history {
				if f.id <= req.lastID || !req.c.wants(f.typ) {
					continue
				}
				select {
				case req.c.ch <- encode(f):
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.noteEventCh:
			typ, ok := noteTypes[req.kind]
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Data: map[string]string{"path": req.path}})

			now := b.clock.Now()
			if now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				broadcast(Event{Type: TypeIndexUpdated, Data: map[string]string{}})
			}

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

// Subscribe adds a client and returns its channel. Events newer than lastID
// still in the replay buffer are delivered first. With prefixes set, only
// event types starting with one of them are delivered.
func (b *Broker) Subscribe(lastID uint64, prefixes ...string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{c: &client{ch: ch, prefixes: prefixes}, lastID: lastID}:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a note change and a throttled index.updated
// event. It matches index.EventCallback; unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// lastEventID reads the resume point from the Last-Event-ID header or the
// lastEventId query parameter used by EventSource polyfills.
func lastEventID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	id, _ := strconv.ParseUint(raw, 10, 64)
	return id
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// "types" query parameter is a comma separated list of type prefixes, e.g.
// "publish." for publish progress only.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var prefixes []string
	for _, p := range strings.Split(r.URL.Query().Get("types"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(lastEventID(r), prefixes...)
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		ticker := b.clock.NewTicker(b.heartbeat)
		defer ticker.Stop()
		beat = ticker.Chan()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			_, _ = w.Write([]byte(": ping\n\n"))
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
