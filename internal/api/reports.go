package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/patrickwarner/trustsafety/internal/clientinfo"
	"github.com/patrickwarner/trustsafety/internal/middleware"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/reports"
)

// ReportRequest is the payload for POST /v1/reports.
type ReportRequest struct {
	Content models.ContentRef   `json:"content"`
	Reason  models.ReportReason `json:"reason"`
	Details string              `json:"details"`
}

// SubmitReportHandler files a report on behalf of the authenticated actor.
func (s *Server) SubmitReportHandler(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := middleware.ActorFromContext(r.Context())
	report, err := s.Intake.Submit(r.Context(), reports.Submission{
		ReporterID: actor.UserID,
		Content:    req.Content,
		Reason:     req.Reason,
		Details:    req.Details,
		Client:     clientinfo.FromRequest(s.GeoIP, r),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// ReasonsHandler lists the report reasons with their display names.
func (s *Server) ReasonsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog.All())
}

// SuspensionHandler returns a user's effective suspension status.
func (s *Server) SuspensionHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	st, err := s.Guard.Status(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"suspension": st,
		"message":    st.Message(),
	})
}
