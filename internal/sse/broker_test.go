package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
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
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "dossier.created", Data: map[string]string{"id": "a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: dossier.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

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

func TestPublishDossierEvent_Kinds(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishDossierEvent(KindCreated, "a")
	b.PublishDossierEvent(KindUpdated, "a")
	b.PublishDossierEvent(KindDeleted, "a")
	b.PublishDossierEvent(KindActiveChanged, "b")
	b.PublishDossierEvent("bogus", "a")

	msgs := drain(ch)
	if len(msgs) != 4 {
		t.Fatalf("events = %d, want 4: %q", len(msgs), msgs)
	}
	for i, want := range []string{"dossier.created", "dossier.updated", "dossier.deleted", "active.changed"} {
		if !strings.Contains(msgs[i], "\nevent: "+want+"\n") {
			t.Errorf("event %d = %q, want %s", i, msgs[i], want)
		}
	}
	if !strings.Contains(msgs[3], `"id":"b"`) {
		t.Errorf("active.changed missing id: %q", msgs[3])
	}
}

func TestPublishDossierEvent_ChangedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Bursts for one dossier collapse; other dossiers are independent.
	b.PublishDossierEvent(KindChanged, "a")
	b.PublishDossierEvent(KindChanged, "a")
	b.PublishDossierEvent(KindChanged, "b")
	// Updates are never throttled.
	b.PublishDossierEvent(KindUpdated, "a")
	b.PublishDossierEvent(KindUpdated, "a")

	changed, updated := 0, 0
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "dossier.changed"):
			changed++
		case strings.Contains(s, "dossier.updated"):
			updated++
		}
	}
	if changed != 2 {
		t.Errorf("changed events = %d, want 2 (throttled per dossier)", changed)
	}
	if updated != 2 {
		t.Errorf("updated events = %d, want 2", updated)
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

	b.Publish(Event{Type: "dossier.updated", Data: map[string]string{"id": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: dossier.updated") {
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
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
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
	b.Publish(Event{Type: "dossier.updated", Data: map[string]string{"id": "x"}})
	b.PublishDossierEvent(KindUpdated, "x")
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishDossierEvent(KindCreated, "a")
	b.PublishDossierEvent(KindUpdated, "a")

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("events = %d, want 2", len(msgs))
	}
	if !strings.HasPrefix(msgs[0], "id: 1\n") || !strings.HasPrefix(msgs[1], "id: 2\n") {
		t.Errorf("ids = %q", msgs)
	}
}

func TestSubscribeFilter(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	onlyA := b.Subscribe("a")
	defer b.Unsubscribe(onlyA)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	b.PublishDossierEvent(KindUpdated, "a")
	b.PublishDossierEvent(KindUpdated, "b")
	b.PublishDossierEvent(KindActiveChanged, "b")

	got := drain(onlyA)
	if len(got) != 2 {
		t.Fatalf("filtered events = %d, want 2: %q", len(got), got)
	}
	if !strings.Contains(got[0], `"id":"a"`) || !strings.Contains(got[1], "event: active.changed") {
		t.Errorf("filtered = %q", got)
	}
	if n := len(drain(all)); n != 3 {
		t.Errorf("unfiltered events = %d, want 3", n)
	}
}

const (
	streamA = "00000000-0000-4000-8000-00000000000a"
	streamB = "00000000-0000-4000-8000-00000000000b"
)

func TestSSEHandler_FilterAndHeartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?d="+streamA, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	b.PublishDossierEvent(KindUpdated, streamB)
	b.PublishDossierEvent(KindUpdated, streamA)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if strings.Contains(body, streamB) {
		t.Errorf("stream for a received b: %q", body)
	}
	if !strings.Contains(body, streamA) {
		t.Errorf("stream missing a: %q", body)
	}
	if !strings.Contains(body, ": keep-alive\n\n") {
		t.Errorf("stream missing heartbeat: %q", body)
	}
}

func TestSSEHandler_RejectsUnknownDossierFilter(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/events?d=rhs:activeDossierId", nil)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
}
