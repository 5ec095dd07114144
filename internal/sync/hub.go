package sync

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"watchlog/internal/logging"
	"watchlog/internal/metrics"
)

// Hub fans title events out to live feed subscribers over TCP and websocket.
type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	metrics.FeedClients.WithLabelValues("tcp").Inc()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		metrics.FeedClients.WithLabelValues("tcp").Dec()
	}
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.mu.Unlock()
	metrics.FeedClients.WithLabelValues("ws").Inc()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.wsClients[ws]
	delete(h.wsClients, ws)
	h.mu.Unlock()
	if ok {
		metrics.FeedClients.WithLabelValues("ws").Dec()
	}
	_ = ws.Close()
}

// BroadcastJSON sends v as one JSON line to every subscriber. Subscribers
// that fail the write are dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("encode feed event")
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err != nil {
			h.dropTCP(c)
			continue
		}
		if err := w.Flush(); err != nil {
			h.dropTCP(c)
		}
	}

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.wsClients, ws)
			metrics.FeedClients.WithLabelValues("ws").Dec()
		}
	}
}

// dropTCP must be called with h.mu held.
func (h *Hub) dropTCP(c net.Conn) {
	_ = c.Close()
	delete(h.clients, c)
	metrics.FeedClients.WithLabelValues("tcp").Dec()
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

type welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

func (h *Hub) welcome(transport string) []byte {
	st := h.Stats()
	b, _ := json.Marshal(welcome{Type: "welcome", Transport: transport, Clients: st.TCPClients + st.WSClients})
	return append(b, '\n')
}
