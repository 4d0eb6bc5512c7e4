package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/agrinman/pomp/pomp"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []*pomp.Message
	received chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{received: make(chan struct{}, 16)}
}

func (h *recordingHandler) OnConnected(c *Conn)                   {}
func (h *recordingHandler) OnDisconnected(c *Conn, err error)      {}
func (h *recordingHandler) OnMessage(c *Conn, m *pomp.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, m)
	h.mu.Unlock()
	h.received <- struct{}{}
}

func (h *recordingHandler) waitForN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.received:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d/%d", i+1, n)
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	serverHandler := newRecordingHandler()
	serverCtx := NewContext(ln, serverHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serverCtx.Run(ctx)

	addr, err := ParseAddress("inet:" + ln.Addr().String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}

	clientHandler := newRecordingHandler()
	client, err := Connect(ctx, addr, clientHandler)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	m := pomp.NewMessage()
	if err := m.Write(1, "%d%s", int64(42), "hello"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := client.Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	serverHandler.waitForN(t, 1)

	serverHandler.mu.Lock()
	got := serverHandler.messages[0]
	serverHandler.mu.Unlock()

	values, err := got.Read("%d%s")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if values[0].(int64) != 42 || values[1].(string) != "hello" {
		t.Fatalf("got %v, want [42 hello]", values)
	}
}

func TestBroadcast(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	serverHandler := newRecordingHandler()
	serverCtx := NewContext(ln, serverHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverCtx.Run(ctx)

	addr, err := ParseAddress("inet:" + ln.Addr().String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}

	const nClients = 3
	clientHandlers := make([]*recordingHandler, nClients)
	for i := range clientHandlers {
		clientHandlers[i] = newRecordingHandler()
		conn, err := Connect(ctx, addr, clientHandlers[i])
		if err != nil {
			t.Fatalf("Connect %d: %v", i, err)
		}
		defer conn.Close()
	}

	// Give the server a moment to register each accepted connection before
	// broadcasting; Accept->track happens on the server goroutine.
	time.Sleep(100 * time.Millisecond)

	m := pomp.NewMessage()
	if err := m.Write(9, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	serverCtx.Broadcast(m)

	for _, h := range clientHandlers {
		h.waitForN(t, 1)
	}
}
