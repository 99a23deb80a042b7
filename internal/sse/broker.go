// Package sse implements a Server-Sent Events broker for render updates.
package sse

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/scheduler"
)

// Event types.
const (
	EventFrameRendered = "frame.rendered"
	EventParamsChanged = "params.changed"
	EventHistogram     = "histogram"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FrameRendered is the payload of frame.rendered.
type FrameRendered struct {
	Seq        uint64    `json:"seq"`
	Tick       uint64    `json:"tick"`
	Mode       string    `json:"mode"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FrameSeq   uint64    `json:"frame_seq"`
	Checksum   string    `json:"checksum"`
	Low        float64   `json:"low"`
	High       float64   `json:"high"`
	Degenerate bool      `json:"degenerate"`
	RenderedAt time.Time `json:"rendered_at"`
}

// HistogramEvent is the payload of histogram.
type HistogramEvent struct {
	Seq    uint64           `json:"seq"`
	Counts models.Histogram `json:"counts"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + histogram throttle timestamp). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	histMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	renderCh      chan *scheduler.Output
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given histogram throttle interval.
func NewBroker(histThrottle time.Duration) *Broker {
	if histThrottle <= 0 {
		histThrottle = 2 * time.Second
	}

	b := &Broker{
		histMin:       histThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		renderCh:      make(chan *scheduler.Output, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastHist time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case out := <-b.renderCh:
			broadcast(Event{Type: EventFrameRendered, Data: frameRendered(out)})

			if out.Mode != scheduler.ModeHeatmap {
				continue
			}
			now := time.Now()
			if now.Sub(lastHist) >= b.histMin {
				lastHist = now
				broadcast(Event{Type: EventHistogram, Data: HistogramEvent{Seq: out.Seq, Counts: out.Histogram}})
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

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Show publishes frame.rendered for fresh outputs, followed by a throttled
// histogram event in heatmap mode. Re-emitted outputs are not published.
func (b *Broker) Show(out *scheduler.Output) {
	if b.closed.Load() || !out.Fresh {
		return
	}
	select {
	case b.renderCh <- out:
	case <-b.stopped:
	}
}

// PublishParams publishes params.changed.
func (b *Broker) PublishParams(p params.Params) {
	b.Publish(Event{Type: EventParamsChanged, Data: p})
}

func frameRendered(out *scheduler.Output) FrameRendered {
	return FrameRendered{
		Seq:        out.Seq,
		Tick:       out.Tick,
		Mode:       string(out.Mode),
		Width:      out.Width,
		Height:     out.Height,
		FrameSeq:   out.FrameSeq,
		Checksum:   out.FrameChecksum,
		Low:        finite(out.Low),
		High:       finite(out.High),
		Degenerate: out.Degenerate,
		RenderedAt: out.RenderedAt,
	}
}

// finite maps values JSON cannot carry to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
