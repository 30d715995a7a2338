package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 5 * time.Second
	subscriberSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans game updates out to websocket subscribers. A subscriber that
// falls behind loses updates rather than slowing the engine down.
type Hub struct {
	mu   sync.Mutex
	subs map[chan GameResponse]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan GameResponse]struct{})}
}

func (h *Hub) Subscribe() chan GameResponse {
	ch := make(chan GameResponse, subscriberSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan GameResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) Publish(resp GameResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleWS sends a snapshot of every game, then each update as it happens.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	for idx := 0; idx < s.engine.NumGames(); idx++ {
		resp, err := s.describe(idx)
		if err != nil {
			continue
		}
		if err := writeWS(conn, resp); err != nil {
			return
		}
	}

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case resp, ok := <-updates:
			if !ok {
				return
			}
			if err := writeWS(conn, resp); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Debug().Err(err).Msg("websocket write failed")
		return err
	}
	return nil
}
