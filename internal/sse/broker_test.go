package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishFrame(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "publish.succeeded", Data: map[string]any{"slug": "hello", "created": true}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: publish.succeeded\ndata: ") {
			t.Errorf("unexpected frame %q", s)
		}
		if !strings.Contains(s, `"slug":"hello"`) || !strings.HasSuffix(s, "\n\n") {
			t.Errorf("unexpected payload %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish event")
	}
}

func TestPublishNoteEvent_IndexThrottle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBroker(WithRefreshThrottle(time.Minute), WithClock(clock))
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a.md")
	b.PublishNoteEvent("updated", "b.md")
	b.PublishNoteEvent("renamed", "c.md")

	count := func(msgs []string) (notes, refresh int) {
		for _, s := range msgs {
			if strings.Contains(s, TypeIndexUpdated) {
				refresh++
			} else {
				notes++
			}
		}
		return
	}

	notes, refresh := count(drain(ch))
	if notes != 2 {
		t.Errorf("note events = %d, want 2", notes)
	}
	if refresh != 1 {
		t.Errorf("index events = %d, want 1 (throttled)", refresh)
	}

	clock.Advance(time.Minute)
	b.PublishNoteEvent("deleted", "a.md")
	notes, refresh = count(drain(ch))
	if notes != 1 || refresh != 1 {
		t.Errorf("after throttle window: notes=%d refresh=%d", notes, refresh)
	}
}

func TestSubscribeReplaysAfterLastID(t *testing.T) {
	b := NewBroker(WithHistory(2))
	defer b.Close()

	for _, typ := range []string{"publish.started", "publish.succeeded", "publish.failed"} {
		b.Publish(Event{Type: typ, Data: map[string]string{}})
	}
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe(2)
	defer b.Unsubscribe(ch)
	msgs := drain(ch)
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "id: 3\nevent: publish.failed") {
		t.Errorf("replayed = %q", msgs)
	}

	fresh := b.Subscribe(0)
	defer b.Unsubscribe(fresh)
	if msgs := drain(fresh); len(msgs) != 0 {
		t.Errorf("fresh subscriber got replay %q", msgs)
	}
}

func TestSubscribeFiltersByPrefix(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(0, "publish.")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("updated", "a.md")
	b.Publish(Event{Type: "publish.started", Data: map[string]string{"path": "a.md"}})

	msgs := drain(ch)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "event: publish.started") {
		t.Errorf("filtered = %q", msgs)
	}
}

// flushRecorder guards the body so the test can read it while the handler
// is still writing.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestSSEHandler(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBroker(WithHeartbeat(10*time.Second), WithClock(clock))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?types=note.", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	b.Publish(Event{Type: "publish.started", Data: map[string]string{"path": "x.md"}})
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "publish.started") {
		t.Errorf("filtered event delivered: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("heartbeat missing: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestLastEventID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/events?lastEventId=7", nil)
	if got := lastEventID(r); got != 7 {
		t.Errorf("query id = %d", got)
	}
	r.Header.Set("Last-Event-ID", "12")
	if got := lastEventID(r); got != 12 {
		t.Errorf("header id = %d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/events", nil)
	if got := lastEventID(r); got != 0 {
		t.Errorf("missing id = %d", got)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// The client buffer holds 64 frames; the rest are dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(0)
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

	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	b.PublishNoteEvent("updated", "x.md")
}
