package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/middleware"
	"github.com/patrickwarner/trustsafety/internal/ratelimit"
)

// mutationKinds maps a mutating surface to the limit it consumes. React and
// kudos share a limit. Reports are absent: POST /v1/reports gates and
// counts them itself.
var mutationKinds = map[string]ratelimit.ActionKind{
	"post":    ratelimit.KindPost,
	"comment": ratelimit.KindComment,
	"kudos":   ratelimit.KindKudos,
	"react":   ratelimit.KindKudos,
}

// ScreenRequest is the payload for POST /v1/content/screen.
type ScreenRequest struct {
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// admit runs the suspension and rate limit checks every mutation passes.
// It writes the refusal and returns false when the mutation may not proceed.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, kind ratelimit.ActionKind) (string, bool) {
	actor, _ := middleware.ActorFromContext(r.Context())
	if err := s.Guard.Check(r.Context(), actor.UserID, string(kind)); err != nil {
		s.writeDomainError(w, r, err)
		return "", false
	}
	if res := s.Limiter.Check(r.Context(), actor.UserID, kind); !res.Allowed {
		middleware.LoggerFromRequest(r, s.Logger).Info("rate limited",
			zap.String("action_kind", string(kind)),
			zap.Duration("retry_after", res.RetryAfter))
		writeRateLimited(w, res)
		return "", false
	}
	return actor.UserID, true
}

// ScreenHandler checks a post or comment before it is created or updated.
// A denial is a normal 200 response carrying the fixed refusal message.
func (s *Server) ScreenHandler(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := ratelimit.KindPost
	switch strings.ToLower(req.Kind) {
	case "", "post":
	case "comment":
		kind = ratelimit.KindComment
	default:
		writeError(w, http.StatusBadRequest, "kind must be post or comment")
		return
	}
	actorID, ok := s.admit(w, r, kind)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Gate.Screen(r.Context(), actorID, req.Text, req.ImageURL))
}

// PrecheckHandler runs the lexical pre-filter for instant author feedback.
func (s *Server) PrecheckHandler(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Gate.Precheck(req.Text))
}

// MutationGateHandler lets other services ask whether the actor may perform
// a mutation that needs no content screening, such as a reaction.
func (s *Server) MutationGateHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := mutationKinds[strings.ToLower(mux.Vars(r)["kind"])]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action kind")
		return
	}
	if _, ok := s.admit(w, r, kind); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}
