package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/win-notifier/pubsub"
)

// client serializa escritas: gorilla/websocket não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub mantém as conexões inscritas por userId
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu    sync.RWMutex
	subs  map[string]map[*client]struct{} // userId -> conexões
	conns int
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.mu.Lock()
	h.conns++
	h.mu.Unlock()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.UserID == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "error": "userId required"})
				continue
			}
			h.subscribe(msg.UserID, c)
			_ = c.writeJSON(map[string]string{"type": "subscribed", "userId": msg.UserID})
		case "unsubscribe":
			h.unsubscribe(msg.UserID, c)
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	h.mu.Lock()
	for user, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, user)
		}
	}
	h.conns--
	h.mu.Unlock()
}

func (h *Hub) subscribe(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = make(map[*client]struct{})
	}
	h.subs[userID][c] = struct{}{}
}

func (h *Hub) unsubscribe(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Broadcast entrega o aviso às conexões do usuário; devolve quantas receberam
func (h *Hub) Broadcast(n pubsub.WinNotice) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[n.UserID]))
	for c := range h.subs[n.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	b, err := json.Marshal(n)
	if err != nil {
		return 0
	}
	sent := 0
	for _, c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.String("userId", n.UserID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// Connections é usado pelo gauge de conexões abertas
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns
}
