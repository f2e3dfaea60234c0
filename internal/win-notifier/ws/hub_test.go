package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/win-notifier/pubsub"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expect(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["type"] != typ {
		t.Fatalf("type = %v, want %s (%v)", msg["type"], typ, msg)
	}
	return msg
}

func TestHub_DeliversOnlyToSubscribedUser(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	alice := dial(t, srv)
	bob := dial(t, srv)

	_ = alice.WriteJSON(ClientMsg{Type: "subscribe", UserID: "alice"})
	expect(t, alice, "subscribed")
	_ = bob.WriteJSON(ClientMsg{Type: "subscribe", UserID: "bob"})
	expect(t, bob, "subscribed")

	if n := hub.Broadcast(pubsub.WinNotice{Type: "win", UserID: "alice", BetID: "b1", TokensWon: 200}); n != 1 {
		t.Fatalf("delivered to %d connections, want 1", n)
	}
	msg := expect(t, alice, "win")
	if msg["betId"] != "b1" || msg["tokensWon"] != float64(200) {
		t.Errorf("notice = %v", msg)
	}

	// bob não recebe o aviso da alice; o próximo frame dele é o pong
	_ = bob.WriteJSON(ClientMsg{Type: "ping"})
	expect(t, bob, "pong")
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	_ = c.WriteJSON(ClientMsg{Type: "subscribe", UserID: "u1"})
	expect(t, c, "subscribed")
	_ = c.WriteJSON(ClientMsg{Type: "unsubscribe", UserID: "u1"})
	_ = c.WriteJSON(ClientMsg{Type: "ping"})
	expect(t, c, "pong")

	if n := hub.Broadcast(pubsub.WinNotice{UserID: "u1"}); n != 0 {
		t.Errorf("delivered after unsubscribe: %d", n)
	}
	if hub.Connections() != 1 {
		t.Errorf("connections = %d", hub.Connections())
	}
}

func TestHub_SubscribeRequiresUser(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	_ = c.WriteJSON(ClientMsg{Type: "subscribe"})
	expect(t, c, "error")
}

func TestDispatch(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	if err := dispatch(hub, `{"type":"win","userId":"nobody"}`); err != nil {
		t.Errorf("dispatch valid payload: %v", err)
	}
	if err := dispatch(hub, `not json`); err == nil {
		t.Error("dispatch accepted invalid payload")
	}
}
