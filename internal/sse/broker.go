// Package sse implements a Server-Sent Events broker for profile changes,
// schedule refreshes and reminder delivery.
//
// Every frame carries a sequence id. The broker keeps a short history so a
// client reconnecting with Last-Event-ID receives the reminders it missed.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types emitted by the broker.
const (
	TypeProfileCreated  = "profile.created"
	TypeProfileUpdated  = "profile.updated"
	TypeProfileDeleted  = "profile.deleted"
	TypeProfilesImport  = "profiles.imported"
	TypeScheduleChanged = "schedule.changed"
	TypeScheduleUpdated = "schedule.updated"
	TypeReminder        = "reminder"
	TypeInboxProcessed  = "inbox.processed"
	TypeInboxFailed     = "inbox.failed"
)

const (
	clientBuffer = 64
	historySize  = 32
	keepAlive    = 25 * time.Second
)

type frame struct {
	id  uint64
	raw []byte
}

type subscribeReq struct {
	ch     chan []byte
	lastID uint64
}

type profileEventReq struct {
	kind  string
	id    int64
	count int
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal loop owns the clients, the history and the
// schedule.changed coalescing state. Public methods talk to it over channels.
type Broker struct {
	scheduleMin time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	profileCh     chan profileEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Bursts of profile events collapse into
// one schedule.changed hint per interval; the last burst always gets one.
func NewBroker(scheduleInterval time.Duration) *Broker {
	if scheduleInterval <= 0 {
		scheduleInterval = 2 * time.Second
	}

	b := &Broker{
		scheduleMin:   scheduleInterval,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		profileCh:     make(chan profileEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// loopState is owned by the run goroutine.
type loopState struct {
	clients map[chan []byte]struct{}
	history []frame
	seq     uint64
}

func (s *loopState) broadcast(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	s.seq++
	f := frame{
		id:  s.seq,
		raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", s.seq, event.Type, payload)),
	}
	s.history = append(s.history, f)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}

	for ch := range s.clients {
		select {
		case ch <- f.raw:
		default:
			// Slow client; it can catch up through Last-Event-ID.
		}
	}
}

// replay queues the frames newer than lastID. lastID 0 replays nothing.
func (s *loopState) replay(ch chan []byte, lastID uint64) {
	if lastID == 0 {
		return
	}
	for _, f := range s.history {
		if f.id <= lastID {
			continue
		}
		select {
		case ch <- f.raw:
		default:
			return
		}
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	st := &loopState{clients: make(map[chan []byte]struct{})}

	var lastHint time.Time
	var hintTimer *time.Timer
	var hintCh <-chan time.Time

	for {
		select {
		case <-b.stopCh:
			if hintTimer != nil {
				hintTimer.Stop()
			}
			for ch := range st.clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			st.replay(req.ch, req.lastID)
			st.clients[req.ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := st.clients[ch]; ok {
				delete(st.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			st.broadcast(event)

		case req := <-b.profileCh:
			st.broadcast(profileEvent(req))

			if hintCh != nil {
				// A trailing hint is already due.
				continue
			}
			if wait := b.scheduleMin - time.Since(lastHint); wait > 0 {
				hintTimer = time.NewTimer(wait)
				hintCh = hintTimer.C
				continue
			}
			lastHint = time.Now()
			st.broadcast(Event{Type: TypeScheduleChanged, Data: map[string]string{}})

		case <-hintCh:
			hintTimer, hintCh = nil, nil
			lastHint = time.Now()
			st.broadcast(Event{Type: TypeScheduleChanged, Data: map[string]string{}})

		case resp := <-b.countReqCh:
			resp <- len(st.clients)
		}
	}
}

func profileEvent(req profileEventReq) Event {
	data := map[string]int64{"id": req.id}
	switch req.kind {
	case "created":
		return Event{Type: TypeProfileCreated, Data: data}
	case "updated":
		return Event{Type: TypeProfileUpdated, Data: data}
	case "imported":
		return Event{Type: TypeProfilesImport, Data: map[string]int{"count": req.count}}
	default:
		return Event{Type: TypeProfileDeleted, Data: data}
	}
}

// Close stops the broker loop and closes all client channels. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeSince(0)
}

// SubscribeSince adds a new client that first receives the buffered frames
// with an id above lastID.
func (b *Broker) SubscribeSince(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, lastID: lastID}:
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

// PublishProfileEvent publishes a profile change followed by a coalesced
// schedule.changed hint. kind is created, updated or deleted.
func (b *Broker) PublishProfileEvent(kind string, id int64) {
	b.sendProfile(profileEventReq{kind: kind, id: id})
}

// PublishImport publishes a profiles.imported event carrying the number of
// imported profiles, followed by a coalesced schedule.changed hint.
func (b *Broker) PublishImport(count int) {
	b.sendProfile(profileEventReq{kind: "imported", count: count})
}

func (b *Broker) sendProfile(req profileEventReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.profileCh <- req:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The resume point
// is taken from the Last-Event-ID header, or the lastEventId query parameter
// for clients that cannot set headers.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("lastEventId")
	}
	since, _ := strconv.ParseUint(lastID, 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeSince(since)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
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
