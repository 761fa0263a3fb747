package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/patrickwarner/trustsafety/internal/middleware"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/moderation"
)

// actionRoutes maps the path segment under /v1/moderation to the action.
var actionRoutes = map[string]models.ActionType{
	"dismiss": models.ActionDismiss,
	"remove":  models.ActionRemoveContent,
	"warn":    models.ActionWarn,
	"suspend": models.ActionSuspend,
	"ban":     models.ActionBan,
	"lift":    models.ActionLiftSuspension,
}

// IdempotencyHeader carries the client's idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// ModerationActionHandler executes a moderator decision.
func (s *Server) ModerationActionHandler(w http.ResponseWriter, r *http.Request) {
	typ, ok := actionRoutes[mux.Vars(r)["action"]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown moderation action")
		return
	}
	var req moderation.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := middleware.ActorFromContext(r.Context())
	req.ModeratorID = actor.UserID
	req.IdempotencyKey = r.Header.Get(IdempotencyHeader)

	act, err := s.Executor.Execute(r.Context(), typ, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// QueueHandler lists pending reports for review, oldest first.
func (s *Server) QueueHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Queue.Pending(r.Context(), queryLimit(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SuggestionHandler returns the advised next action for a user.
func (s *Server) SuggestionHandler(w http.ResponseWriter, r *http.Request) {
	sug, err := s.Ledger.Suggest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

// ActionHistoryHandler returns a user's audit trail, newest first.
func (s *Server) ActionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	acts, err := s.Store.ListActions(r.Context(), mux.Vars(r)["id"], queryLimit(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if acts == nil {
		acts = []models.ModerationAction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": acts})
}
