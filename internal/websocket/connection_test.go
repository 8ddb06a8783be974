package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interviewhub/pkg/interfaces"
	"interviewhub/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
	var _ interfaces.Notifier = &Registry{}
}

// newConnectionPair wraps the server side of a live socket in a Connection
// and returns the client side for reading what it sends.
func newConnectionPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *Connection, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		serverSide <- NewConnection(ws, 0, 0)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-serverSide:
		t.Cleanup(func() { conn.Close() })
		return conn, client
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func readEnvelope(t *testing.T, client *websocket.Conn) types.Envelope {
	t.Helper()
	if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	var env types.Envelope
	if err := client.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return env
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	conn, _ := newConnectionPair(t)

	if _, err := uuid.Parse(conn.ID()); err != nil {
		t.Errorf("identity %q is not a UUID: %v", conn.ID(), err)
	}
	if cap(conn.writeCh) != defaultBufferSize {
		t.Errorf("expected write buffer of %d, got %d", defaultBufferSize, cap(conn.writeCh))
	}
	if conn.Role() != types.RoleUnbound || conn.SessionCode() != "" {
		t.Error("new connection should be unbound")
	}
}

func TestConnection_Bind(t *testing.T) {
	conn, _ := newConnectionPair(t)
	conn.Bind(types.RoleHost, "ABC123")
	if conn.Role() != types.RoleHost || conn.SessionCode() != "ABC123" {
		t.Errorf("binding = %q/%q", conn.Role(), conn.SessionCode())
	}
}

func TestConnection_SendWritesEnvelope(t *testing.T) {
	conn, client := newConnectionPair(t)

	if err := conn.Send(types.EventQueueUpdate, types.QueueUpdate{Queue: []string{"a", "b"}, You: 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	env := readEnvelope(t, client)
	if env.Event != types.EventQueueUpdate || env.ID != 0 {
		t.Errorf("unexpected envelope %+v", env)
	}
	var update types.QueueUpdate
	if err := json.Unmarshal(env.Data, &update); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if update.You != 2 || len(update.Queue) != 2 {
		t.Errorf("update = %+v", update)
	}

	if err := conn.Send(types.EventSessionDeleted, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if env := readEnvelope(t, client); env.Event != types.EventSessionDeleted || len(env.Data) != 0 {
		t.Errorf("payload-less event = %+v", env)
	}
}

func TestConnection_SendAck(t *testing.T) {
	conn, client := newConnectionPair(t)

	if err := conn.SendAck(42, &types.Ack{OK: false, Error: "session not found"}); err != nil {
		t.Fatalf("SendAck: %v", err)
	}
	env := readEnvelope(t, client)
	if env.Event != types.EventAck || env.ID != 42 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if string(env.Data) != `{"ok":false,"error":"session not found"}` {
		t.Errorf("ack data = %s", env.Data)
	}
}

func TestConnection_SendInvalidPayload(t *testing.T) {
	conn, _ := newConnectionPair(t)
	if err := conn.Send("x", make(chan int)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestConnection_FullBufferDropsFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// No writer goroutine: the buffer only fills.
	conn := &Connection{id: "x", writeCh: make(chan []byte, 1), ctx: ctx, cancel: cancel}

	if err := conn.Send("one", nil); err != nil {
		t.Fatalf("first send: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- conn.Send("two", nil) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrBufferFull) {
			t.Errorf("expected ErrBufferFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full buffer")
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	conn, _ := newConnectionPair(t)

	if err := conn.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	select {
	case <-conn.Done():
	default:
		t.Error("Done should be closed")
	}
	if err := conn.Send("late", nil); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("send after close: %v", err)
	}
}

func TestConnection_ConcurrentSends(t *testing.T) {
	conn, client := newConnectionPair(t)

	const senders, perSender = 5, 10
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if err := conn.Send("tick", map[string]int{"n": j}); err != nil {
					t.Errorf("Send: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < senders*perSender; i++ {
		if env := readEnvelope(t, client); env.Event != "tick" {
			t.Fatalf("frame %d: %+v", i, env)
		}
	}
}
