package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// SnapshotFunc busca o snapshot atual de um mercado; enviado logo após o subscribe
type SnapshotFunc func(ctx context.Context, marketID string) (events.PoolSnapshot, bool, error)

// conn serializa escritas; gorilla não permite writers concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas de pools por mercado
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	snapshot SnapshotFunc

	mu sync.RWMutex
	// marketID -> set of connections
	subs map[string]map[*conn]struct{}
}

// NewHub cria o hub; snapshot pode ser nil
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshot SnapshotFunc) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshot: snapshot,
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.MarketID == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "message": "marketId required"})
				continue
			}
			h.subscribe(msg.MarketID, c)
			h.sendSnapshot(r.Context(), msg.MarketID, c)
		case "unsubscribe":
			h.unsubscribe(msg.MarketID, c)
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}

	// remove a conexão de todas as assinaturas
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(marketID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[marketID]; !ok {
		h.subs[marketID] = make(map[*conn]struct{})
	}
	h.subs[marketID][c] = struct{}{}
}

func (h *Hub) unsubscribe(marketID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[marketID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, marketID)
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, marketID string, c *conn) {
	if h.snapshot == nil {
		return
	}
	snap, ok, err := h.snapshot(ctx, marketID)
	if err != nil {
		h.log.Warn("ws snapshot lookup failed", zap.String("marketId", marketID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	_ = c.writeJSON(PoolsUpdate{Type: "pools", MarketID: marketID, Payload: snap})
}

// Subscribers retorna quantas conexões acompanham o mercado
func (h *Hub) Subscribers(marketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[marketID])
}

// Broadcast envia o snapshot a todos os inscritos no mercado
func (h *Hub) Broadcast(snap events.PoolSnapshot) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.subs[snap.MarketID]))
	for c := range h.subs[snap.MarketID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	upd := PoolsUpdate{Type: "pools", MarketID: snap.MarketID, Payload: snap}
	for _, c := range conns {
		if err := c.writeJSON(upd); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
}
