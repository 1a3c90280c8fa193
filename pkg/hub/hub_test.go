package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func attach(h *Hub, buf int) *Client {
	c := &Client{hub: h, send: make(chan Message, buf)}
	h.register <- c
	for {
		h.mu.RLock()
		ok := h.clients[c]
		h.mu.RUnlock()
		if ok {
			return c
		}
		time.Sleep(time.Millisecond)
	}
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("Expected a message, timed out")
	}
	return Message{}, false
}

func TestBroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	a := attach(h, 4)
	b := attach(h, 4)
	if n := h.ClientCount(); n != 2 {
		t.Errorf("Expected 2 clients, got %d", n)
	}

	if err := h.BroadcastJSON("state", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, c := range []*Client{a, b} {
		m, ok := recv(t, c)
		if !ok {
			t.Fatal("Expected open channel")
		}
		var f struct {
			Type string         `json:"type"`
			Seq  uint64         `json:"seq"`
			Data map[string]int `json:"data"`
		}
		if err := json.Unmarshal(m.Data, &f); err != nil {
			t.Fatalf("Expected JSON frame, got %v", err)
		}
		if f.Type != "state" || f.Seq != 1 || f.Data["x"] != 1 {
			t.Errorf("Expected state frame seq 1, got %+v", f)
		}
	}
}

func TestLateClientGetsLastMessage(t *testing.T) {
	h, _ := startHub(t)
	first := attach(h, 4)
	h.BroadcastJSON("state", 1)
	recv(t, first)

	late := attach(h, 4)
	m, _ := recv(t, late)
	if len(m.Data) == 0 {
		t.Errorf("Expected replayed JSON message, got %+v", m)
	}
}

func TestSlowClientDropped(t *testing.T) {
	h, _ := startHub(t)
	slow := attach(h, 1)
	h.BroadcastJSON("state", 1)
	h.BroadcastJSON("state", 2)

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := h.ClientCount(); n != 0 {
		t.Fatalf("Expected slow client to be dropped, got %d clients", n)
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("Expected slow client channel to be closed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	c := attach(h, 4)
	if !h.IsRunning() {
		t.Error("Expected hub to be running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Error("Expected client channel to be closed on stop")
	}
	if h.IsRunning() {
		t.Error("Expected hub to report stopped")
	}

	late := NewClient(h, nil)
	if _, ok := <-late.send; ok {
		t.Error("Expected client of a stopped hub to be closed")
	}
}
