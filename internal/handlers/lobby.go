package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/lobby"
	"github.com/jason-s-yu/heartline/internal/middleware"
	"github.com/jason-s-yu/heartline/internal/models"
)

// handleCreateLobby creates a pending lobby owned by the caller.
func (s *Server) handleCreateLobby(w http.ResponseWriter, r *http.Request) {
	var in lobby.CreateLobbyInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	l, owner, err := s.lobbies.CreateLobby(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lobby": l, "player": owner})
}

// handleSnapshot serves GET /lobbies/{id}/snapshot?tz=&debug=.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if err := requireMember(actor); err != nil {
		s.fail(w, r, err)
		return
	}
	tz, err := queryInt(r, "tz", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.snapshots.Read(r.Context(), actor.LobbyID, tz, queryBool(r, "debug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := s.lobbies.ListHistory(r.Context(), mustActor(r), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetPunishments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lobbies.GetPunishments(r.Context(), mustActor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitPunishment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.lobbies.SubmitPunishment(r.Context(), mustActor(r), body.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	spin, err := s.lobbies.SpinPunishment(r.Context(), mustActor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spin)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		s.fail(w, r, apperr.New(apperr.InvalidInput, "invalid punishment id"))
		return
	}
	p, err := s.lobbies.LockPunishment(r.Context(), mustActor(r), itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	p, err := s.lobbies.UnlockPunishment(r.Context(), mustActor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	n, err := s.lobbies.ResolveAll(r.Context(), mustActor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": n})
}

func (s *Server) handleAdjustHearts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerID uuid.UUID `json:"playerId"`
		Delta    int       `json:"delta"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.lobbies.AdjustHearts(r.Context(), mustActor(r), body.PlayerID, body.Delta)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.lobbies.TransferOwnership(r.Context(), mustActor(r), body.PlayerID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ownerId": body.PlayerID})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ready bool `json:"ready"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.lobbies.SetReady(r.Context(), mustActor(r), body.Ready); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": body.Ready})
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.SeasonStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.lobbies.TransitionStage(r.Context(), mustActor(r), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.lobbies.Join(r.Context(), mustActor(r), body.Name, body.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
