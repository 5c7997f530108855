package hub

import (
	"context"
	"testing"
	"time"
)

// fakeClient registers a connection-less client so the fan-out can be
// observed through its send channel.
func fakeClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("receive timed out")
		return Message{}, false
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := New("test", nil)
	startHub(t, h)

	a := fakeClient(t, h, 4)
	b := fakeClient(t, h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}
	h.BroadcastBinary([]byte{0xff, 0xd8})

	for _, c := range []*Client{a, b} {
		m, _ := recv(t, c)
		if m.Binary || string(m.Data) != `{"n":1}` {
			t.Errorf("first message = %v %s", m.Binary, m.Data)
		}
		m, _ = recv(t, c)
		if !m.Binary || len(m.Data) != 2 {
			t.Errorf("second message = %v %v", m.Binary, m.Data)
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test", nil)
	startHub(t, h)

	slow := fakeClient(t, h, 1)
	fast := fakeClient(t, h, 8)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.BroadcastBinary([]byte("1"))
	h.BroadcastBinary([]byte("2"))
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if _, ok := recv(t, slow); !ok {
		t.Fatal("slow client should get the buffered message first")
	}
	if _, ok := recv(t, slow); ok {
		t.Error("slow client channel should be closed")
	}
	if m, _ := recv(t, fast); string(m.Data) != "1" {
		t.Errorf("fast client got %q", m.Data)
	}
}

func TestHub_OnConnect(t *testing.T) {
	h := New("test", nil)
	h.OnConnect = func(c *Client) {
		c.Send(Text([]byte(`"hello"`)))
	}
	startHub(t, h)

	c := fakeClient(t, h, 4)
	m, _ := recv(t, c)
	if string(m.Data) != `"hello"` {
		t.Errorf("initial message = %s", m.Data)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New("test", nil)
	startHub(t, h)

	c := fakeClient(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("test", nil)
	cancel := startHub(t, h)

	c := fakeClient(t, h, 1)
	waitFor(t, func() bool { return h.IsRunning() && h.ClientCount() == 1 })

	cancel()
	if _, ok := recv(t, c); ok {
		t.Error("send channel should be closed on stop")
	}
	waitFor(t, func() bool { return !h.IsRunning() })

	if got := NewClient(h, nil); got != nil {
		t.Error("NewClient() on a stopped hub should return nil")
	}
}

func TestClient_Send(t *testing.T) {
	c := &Client{send: make(chan Message, 1)}
	if !c.Send(Text(nil)) {
		t.Error("first Send() should succeed")
	}
	if c.Send(Text(nil)) {
		t.Error("Send() on a full buffer should fail")
	}
}
