// Package server exposes an engine over HTTP so games can be driven one
// move at a time, and streams state changes over a websocket.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/brensch/zeroclone/executor/selfplay"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/metrics"
)

const (
	DefaultSimulations = 1000
	DefaultC           = 1.4
)

type MoveRequest struct {
	Idx  int   `json:"idx"`
	Move int32 `json:"move"`
}

type MCTSRequest struct {
	Idx         int     `json:"idx"`
	Simulations int     `json:"simulations"`
	C           float64 `json:"c"`
}

// GameResponse describes one game after a request. Result is nil while the
// game is still running, otherwise +1, -1 or 0 from player 0's side.
type GameResponse struct {
	Idx    int     `json:"idx"`
	Result *int    `json:"result"`
	Turn   int     `json:"turn"`
	Legal  []int32 `json:"legal"`
	State  string  `json:"state"`
}

type AddGameResponse struct {
	Idx int `json:"idx"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type Server struct {
	engine      *selfplay.Engine
	simulations int
	c           float64
	hub         *Hub
}

// New serves engine. simulations and c are used when a play_mcts request
// leaves them out; zero picks the package defaults.
func New(engine *selfplay.Engine, simulations int, c float64) *Server {
	if simulations <= 0 {
		simulations = DefaultSimulations
	}
	if c <= 0 {
		c = DefaultC
	}
	return &Server{engine: engine, simulations: simulations, c: c, hub: NewHub()}
}

func (s *Server) Hub() *Hub { return s.hub }

// RegisterRoutes sets up all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /play_move", s.handlePlayMove)
	mux.HandleFunc("POST /play_mcts", s.handlePlayMCTS)
	mux.HandleFunc("POST /add_game", s.handleAddGame)
	mux.HandleFunc("GET /state/{idx}", s.handleState)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) handlePlayMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.engine.PlayMove(req.Idx, game.Move{ID: req.Move}); err != nil {
		writeError(w, err)
		return
	}
	s.respondGame(w, req.Idx)
}

func (s *Server) handlePlayMCTS(w http.ResponseWriter, r *http.Request) {
	req := MCTSRequest{Simulations: s.simulations, C: s.c}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Simulations <= 0 {
		writeError(w, fmt.Errorf("simulations must be positive, got %d", req.Simulations))
		return
	}
	if _, err := s.engine.PlayMCTS(r.Context(), req.Idx, req.Simulations, req.C); err != nil {
		writeError(w, err)
		return
	}
	s.respondGame(w, req.Idx)
}

func (s *Server) handleAddGame(w http.ResponseWriter, r *http.Request) {
	idx := s.engine.AddGame(nil)
	if resp, err := s.describe(idx); err == nil {
		s.hub.Publish(resp)
	}
	writeJSON(w, AddGameResponse{Idx: idx})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		writeError(w, fmt.Errorf("bad game index %q", r.PathValue("idx")))
		return
	}
	resp, err := s.describe(idx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) respondGame(w http.ResponseWriter, idx int) {
	resp, err := s.describe(idx)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(resp)
	writeJSON(w, resp)
}

func (s *Server) describe(idx int) (GameResponse, error) {
	state, err := s.engine.State(idx)
	if err != nil {
		return GameResponse{}, err
	}
	st, err := s.engine.Status(idx)
	if err != nil {
		return GameResponse{}, err
	}

	b := s.engine.Backend()
	resp := GameResponse{Idx: idx, Turn: state.Turn(), Legal: []int32{}, State: game.Describe(b, state)}
	if st.Done {
		result := int(st.Outcome)
		resp.Result = &result
	}
	for _, m := range b.LegalMoves(state) {
		resp.Legal = append(resp.Legal, m.ID)
	}
	return resp, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("bad json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

// writeError reports every engine failure as a bad request with its message.
func writeError(w http.ResponseWriter, err error) {
	log.Debug().Err(err).Msg("request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorResponse{Detail: err.Error()})
}
