// Package handlers exposes the lobby service and live snapshots over HTTP.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/lobby"
	"github.com/jason-s-yu/heartline/internal/middleware"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/snapshot"
	"github.com/sirupsen/logrus"
)

// ActorResolver maps an authenticated user onto their role in a lobby.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID, lobbyID uuid.UUID) (models.Actor, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Lobbies   *lobby.Service
	Snapshots *snapshot.Service
	Actors    ActorResolver
	Tokens    middleware.TokenVerifier
	Logger    logrus.FieldLogger

	WatchPollEvery time.Duration
	AllowedOrigins []string
}

// Server routes lobby requests. Handlers stay thin: they resolve the actor,
// decode the body and hand off to the lobby or snapshot service.
type Server struct {
	lobbies   *lobby.Service
	snapshots *snapshot.Service
	actors    ActorResolver
	tokens    middleware.TokenVerifier
	logger    logrus.FieldLogger
	watchPoll time.Duration
	origins   []string
	wsOrigins []string
	mux       *chi.Mux
}

func NewServer(d Deps) *Server {
	if d.WatchPollEvery <= 0 {
		d.WatchPollEvery = 30 * time.Second
	}
	s := &Server{
		lobbies:   d.Lobbies,
		snapshots: d.Snapshots,
		actors:    d.Actors,
		tokens:    d.Tokens,
		logger:    d.Logger,
		watchPoll: d.WatchPollEvery,
		origins:   d.AllowedOrigins,
		wsOrigins: originHosts(d.AllowedOrigins),
		mux:       chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(s.tokens, s.fail))
		r.Post("/lobbies", s.handleCreateLobby)

		r.Route("/lobbies/{lobbyID}", func(r chi.Router) {
			r.Use(s.resolveActor)
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/watch", s.handleWatch)
			r.Get("/history", s.handleHistory)

			r.Get("/punishments", s.handleGetPunishments)
			r.Post("/punishments", s.handleSubmitPunishment)
			r.Post("/punishments/spin", s.handleSpin)
			r.Post("/punishments/unlock", s.handleUnlock)
			r.Post("/punishments/resolve", s.handleResolve)
			r.Post("/punishments/{itemID}/lock", s.handleLock)

			r.Post("/hearts", s.handleAdjustHearts)
			r.Post("/owner", s.handleTransferOwnership)
			r.Post("/ready", s.handleReady)
			r.Post("/stage", s.handleStage)
			r.Post("/join", s.handleJoin)
		})
	})
}

type actorKey struct{}

// resolveActor loads the caller's role in the lobby named by the route.
func (s *Server) resolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := uuid.Parse(chi.URLParam(r, "lobbyID"))
		if err != nil {
			s.fail(w, r, apperr.New(apperr.InvalidInput, "invalid lobby id"))
			return
		}
		actor, err := s.actors.ResolveActor(r.Context(), middleware.UserID(r.Context()), lobbyID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok
}

func mustActor(r *http.Request) models.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

// requireMember guards reads that bypass the lobby service.
func requireMember(actor models.Actor) error {
	if !actor.IsMember {
		return apperr.New(apperr.Forbidden, "not a member of this lobby")
	}
	return nil
}
