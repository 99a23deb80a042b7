package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/scheduler"
)

func freshOutput(seq uint64) *scheduler.Output {
	var h models.Histogram
	h[3] = 8
	return &scheduler.Output{
		Seq:           seq,
		Tick:          seq,
		State:         scheduler.Live,
		Mode:          scheduler.ModeHeatmap,
		Fresh:         true,
		Width:         4,
		Height:        2,
		Histogram:     h,
		FrameChecksum: "abc123",
	}
}

func drain(ch chan []byte) []string {
	var msgs []string
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, string(msg))
		default:
			return msgs
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishParams(params.Params{Gain: 2.5, Offset: -1})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: params.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"gain":2.5`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestShow_HistogramThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First render triggers a histogram event, the second one is throttled.
	b.Show(freshOutput(1))
	b.Show(freshOutput(2))

	time.Sleep(50 * time.Millisecond)
	histCount := 0
	frameCount := 0
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "event: histogram"):
			histCount++
			if !strings.Contains(s, `"counts":[0,0,0,8,`) {
				t.Errorf("histogram payload = %q", s)
			}
		case strings.Contains(s, "event: frame.rendered"):
			frameCount++
		}
	}

	if frameCount != 2 {
		t.Errorf("frame events = %d, want 2", frameCount)
	}
	if histCount != 1 {
		t.Errorf("histogram events = %d, want 1 (throttled)", histCount)
	}
}

func TestShow_SkipsStaleAndTraceHistogram(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	stale := freshOutput(1)
	stale.Fresh = false
	b.Show(stale)

	tr := freshOutput(2)
	tr.Mode = scheduler.ModeTrace
	b.Show(tr)

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if len(msgs) != 1 {
		t.Fatalf("got %d events, want 1: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], `"mode":"trace"`) || !strings.Contains(msgs[0], `"seq":2`) {
		t.Errorf("unexpected payload %q", msgs[0])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Show(freshOutput(7))
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: frame.rendered") || !strings.Contains(body, `"checksum":"abc123"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Show(freshOutput(uint64(i)))
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishParams(params.Default())
	b.Show(freshOutput(1))
}
