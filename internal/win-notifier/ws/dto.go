package ws

// ClientMsg é o que o cliente manda pelo WebSocket.
// Type: subscribe | unsubscribe | ping; UserID obrigatório em subscribe/unsubscribe.
type ClientMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}
