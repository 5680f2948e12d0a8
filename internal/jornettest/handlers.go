package jornettest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/jornet"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleCreatePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in jornet.PlayerInput
		if err := readJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		name := ""
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
		}
		if name == "" {
			name = randomName()
		}

		player := jornet.Player{ID: uuid.New(), Key: uuid.New(), Name: name}
		if err := s.store.createPlayer(r.Context(), player, s.now()); err != nil {
			s.logger.Error("create player", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, player)
	}
}

func (s *Server) handleAddScore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaderboard, leaderboardKey, ok := s.leaderboard(w, r)
		if !ok {
			return
		}

		var in jornet.ScoreInput
		if err := readJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		playerKey, err := s.store.playerKey(r.Context(), in.Player)
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "player not found")
			return
		}
		if err != nil {
			s.logger.Error("lookup player", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		skew := s.now().Sub(time.Unix(int64(in.Timestamp), 0)).Abs()
		if skew > s.maxSkew {
			writeError(w, http.StatusBadRequest, "timestamp out of range")
			return
		}

		if !jornet.Verify(playerKey[:], in.Timestamp, leaderboardKey, in.Player, in.Score, in.Meta, in.K) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		if err := s.store.addScore(r.Context(), leaderboard, in); err != nil {
			s.logger.Error("add score", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleListScores() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaderboard, _, ok := s.leaderboard(w, r)
		if !ok {
			return
		}

		scores, err := s.store.scores(r.Context(), leaderboard)
		if err != nil {
			s.logger.Error("list scores", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, scores)
	}
}

// leaderboard resolves the {leaderboard} path parameter, writing the error
// response itself when it cannot.
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "leaderboard"))
	if err != nil {
		writeError(w, http.StatusNotFound, "leaderboard not found")
		return uuid.Nil, uuid.Nil, false
	}

	key, err := s.store.leaderboardKey(r.Context(), id)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "leaderboard not found")
		return uuid.Nil, uuid.Nil, false
	}
	if err != nil {
		s.logger.Error("lookup leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return uuid.Nil, uuid.Nil, false
	}
	return id, key, true
}
