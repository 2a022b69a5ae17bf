package server

import (
	"sync"

	"github.com/codeduel-vn/codeduel/pkg/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// hub owns the live websocket connections. A participant may hold
// several connections at once (multiple tabs); events go to all of
// them.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{
		conns: make(map[string]map[*websocket.Conn]bool),
	}
}

func (h *hub) add(userId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userId] == nil {
		h.conns[userId] = make(map[*websocket.Conn]bool)
	}
	h.conns[userId][conn] = true
}

func (h *hub) remove(userId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conns[userId]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, userId)
		}
	}
}

func (h *hub) SendToUser(userId string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[userId] {
		if err := conn.WriteJSON(event); err != nil {
			logging.Error("couldn't notify player",
				zap.String("player_id", userId),
				zap.String("event", event.Type),
			)
		}
	}
}

// sendToConn writes a reply to one specific connection under the hub
// lock, so direct replies never interleave with event writes.
func (h *hub) sendToConn(conn *websocket.Conn, v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		logging.Error("couldn't write response", zap.Error(err))
	}
}

func (h *hub) BroadcastMatch(playerIds []string, event Event) {
	for _, playerId := range playerIds {
		h.SendToUser(playerId, event)
	}
}
