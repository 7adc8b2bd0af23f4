// Package ipc is the localhost command API the UI process calls. The
// command set is closed and versioned: every operation is a v1 route
// with a schema-validated payload.
package ipc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FocalizeApp/focalize-daemon/internal/cache"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// FeedAPI is the notifications surface the server exposes.
type FeedAPI interface {
	FetchOlder(ctx context.Context) (*types.NotificationCache, error)
	MarkOpened(ctx context.Context, ts int64) error
}

// MessagesAPI is the messaging surface the server exposes.
type MessagesAPI interface {
	Threads(ctx context.Context) ([]types.Thread, error)
	MarkAllRead(ctx context.Context) ([]types.Thread, error)
}

// ActionsAPI is the pending-action surface the server exposes.
type ActionsAPI interface {
	Submit(ctx context.Context, action types.PendingAction) error
	Check(ctx context.Context, id string) (types.ActionStatus, error)
	All(ctx context.Context) (map[string]types.PendingAction, error)
}

// NotifierAPI is the notification-event surface the server exposes.
// The UI process renders OS notifications on some platforms and
// forwards their clicks and closes here; it also reports its own
// publication confirmations.
type NotifierAPI interface {
	HandleClick(ctx context.Context, id string)
	HandleClose(ctx context.Context, id string, byUser bool)
	Dispatch(ctx context.Context, e types.Event)
}

// Server serves the v1 command API.
type Server struct {
	store    store.Store
	feed     FeedAPI
	messages MessagesAPI
	actions  ActionsAPI
	notifier NotifierAPI
	secret   string
	logger   *log.Logger
	schemas  *schemas
}

// NewServer wires the command API. secret signs and verifies UI
// session tokens.
func NewServer(s store.Store, feed FeedAPI, messages MessagesAPI, actions ActionsAPI, notifier NotifierAPI, secret string, logger *log.Logger) (*Server, error) {
	compiled, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Server{
		store:    s,
		feed:     feed,
		messages: messages,
		actions:  actions,
		notifier: notifier,
		secret:   secret,
		logger:   logger,
		schemas:  compiled,
	}, nil
}

// Routes builds the v1 router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/older", s.handleFetchOlder)
		r.Post("/notifications/opened", s.handleMarkOpened)
		r.Post("/notifications/{id}/click", s.handleNotificationClick)
		r.Post("/notifications/{id}/close", s.handleNotificationClose)

		r.Post("/publications/confirmed", s.handlePublicationConfirmed)

		r.Get("/threads", s.handleThreads)
		r.Post("/threads/read", s.handleMarkAllRead)

		r.Get("/actions", s.handleListActions)
		r.Post("/actions", s.handleSubmitAction)
		r.Post("/actions/{id}/check", s.handleCheckAction)
	})
	return r
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	c, err := cache.Load(r.Context(), s.store)
	if err != nil {
		s.fail(w, err)
		return
	}
	if c == nil {
		c = &types.NotificationCache{}
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleFetchOlder(w http.ResponseWriter, r *http.Request) {
	c, err := s.feed.FetchOlder(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if c == nil {
		c = &types.NotificationCache{}
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleMarkOpened(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := decodeValidated(r, s.schemas.markOpened, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.feed.MarkOpened(r.Context(), req.Timestamp); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	s.notifier.HandleClick(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleNotificationClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ByUser bool `json:"by_user"`
	}
	if err := decodeValidated(r, s.schemas.closeNotification, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.notifier.HandleClose(r.Context(), chi.URLParam(r, "id"), req.ByUser)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePublicationConfirmed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicationID string `json:"publication_id"`
		Kind          string `json:"kind"`
	}
	if err := decodeValidated(r, s.schemas.publicationConfirmed, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.notifier.Dispatch(r.Context(), types.PublicationConfirmedEvent{
		PublicationID: req.PublicationID,
		Kind:          req.Kind,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.messages.Threads(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	threads, err := s.messages.MarkAllRead(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.actions.All(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var action types.PendingAction
	if err := decodeValidated(r, s.schemas.submitAction, &action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if err := s.actions.Submit(r.Context(), action); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": action.ID})
}

func (s *Server) handleCheckAction(w http.ResponseWriter, r *http.Request) {
	status, err := s.actions.Check(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Printf("ipc: %v", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
