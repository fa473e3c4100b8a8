package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types emitted by the container.
const (
	EventReady     = "ready"
	EventState     = "state"
	EventChunk     = "chunk"
	EventDetection = "detection"
	EventFault     = "fault"
	EventHeartbeat = "heartbeat"
)

// Event is a single SSE frame. ID is a monotonically increasing sequence
// number assigned by the hub at publish time. Job is empty for container-wide
// events such as detections.
type Event struct {
	ID   uint64      `json:"id"`
	Type string      `json:"type"`
	Job  string      `json:"jobId,omitempty"`
	TS   time.Time   `json:"ts"`
	Data interface{} `json:"data,omitempty"`
}

type subscriber struct {
	ch  chan Event
	job string // filter; empty means all events
}

// Hub fans events out to SSE subscribers and keeps a short per-job replay
// buffer for Last-Event-ID resumption.
type Hub struct {
	mu         sync.RWMutex
	subs       map[*subscriber]struct{}
	buffers    map[string][]Event
	nextID     uint64
	bufferSize int
	heartbeat  time.Duration
	jitter     time.Duration
	closed     bool
	closeOnce  sync.Once
	done       chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the per-job replay buffer length.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithHeartbeat sets the idle heartbeat interval. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeat = d }
}

// WithHeartbeatJitter spreads each heartbeat by up to ±j so many containers
// behind one proxy do not beat in lockstep.
func WithHeartbeatJitter(j time.Duration) Option {
	return func(h *Hub) {
		if j > 0 {
			h.jitter = j
		}
	}
}

// NewHub returns a running hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:       make(map[*subscriber]struct{}),
		buffers:    make(map[string][]Event),
		bufferSize: 64,
		heartbeat:  15 * time.Second,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.heartbeat > 0 {
		go h.heartbeatLoop()
	}
	return h
}

// Publish assigns a sequence ID and delivers the event to all matching
// subscribers. Heartbeats reach every subscriber so job-scoped streams keep
// their proxy connections alive. Slow subscribers lose the event rather than
// blocking the publisher.
//
// The non-blocking sends happen under the hub lock: subscriber channels are
// only ever closed under the same lock, so a publish can never race a
// disconnect onto a closed channel.
func (h *Hub) Publish(evtType, job string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.nextID++
	evt := Event{ID: h.nextID, Type: evtType, Job: job, TS: time.Now().UTC(), Data: data}
	if job != "" {
		buf := append(h.buffers[job], evt)
		if len(buf) > h.bufferSize {
			buf = buf[len(buf)-h.bufferSize:]
		}
		h.buffers[job] = buf
	}
	for s := range h.subs {
		if s.job != "" && s.job != evt.Job && evtType != EventHeartbeat {
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
}

// Subscribe registers a subscriber. If job is non-empty only events for that
// job (and heartbeats) are delivered. Events buffered for the job with an ID
// greater than afterID are replayed first. The returned cancel func must be
// called when the subscriber goes away.
func (h *Hub) Subscribe(job string, afterID uint64) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, 32), job: job}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if job != "" && afterID > 0 {
		for _, evt := range h.buffers[job] {
			if evt.ID > afterID {
				select {
				case s.ch <- evt:
				default:
				}
			}
		}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[s]; ok {
			delete(h.subs, s)
			close(s.ch)
		}
		h.mu.Unlock()
	}
	return s.ch, cancel
}

// DropJob discards the replay buffer for a finished job.
func (h *Hub) DropJob(job string) {
	h.mu.Lock()
	delete(h.buffers, job)
	h.mu.Unlock()
}

// Close stops the hub and disconnects all subscribers.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		h.closed = true
		for s := range h.subs {
			close(s.ch)
		}
		h.subs = make(map[*subscriber]struct{})
		h.mu.Unlock()
	})
}

func (h *Hub) heartbeatLoop() {
	for {
		interval := h.heartbeat
		if h.jitter > 0 {
			interval += time.Duration(rand.Int63n(int64(2*h.jitter))) - h.jitter
		}
		select {
		case <-h.done:
			return
		case <-time.After(interval):
			h.Publish(EventHeartbeat, "", nil)
		}
	}
}

// ServeSSE streams hub events to w using the text/event-stream framing.
// The optional "job" query parameter filters to one job and enables
// Last-Event-ID replay for it.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	job := r.URL.Query().Get("job")
	var afterID uint64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			afterID = v
		}
	}

	ch, cancel := h.Subscribe(job, afterID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, payload)
	return err
}
