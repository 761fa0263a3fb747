package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/middleware"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/ratelimit"
	"github.com/patrickwarner/trustsafety/internal/reports"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeRateLimited(w http.ResponseWriter, res ratelimit.Result) {
	secs := int64(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	writeError(w, http.StatusTooManyRequests, res.Message)
}

// writeDomainError maps service errors onto HTTP statuses. Anything
// unrecognised is a persistence failure and is logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr      *moderation.ValidationError
		suspended *suspension.SuspendedError
		limited   *reports.RateLimitedError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, reports.ErrInvalidReason),
		errors.Is(err, reports.ErrDetailsTooLong),
		errors.Is(err, reports.ErrMissingActor),
		errors.Is(err, models.ErrInvalidContentRef):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &suspended):
		writeError(w, http.StatusForbidden, suspended.Error())
	case errors.As(err, &limited):
		writeRateLimited(w, limited.Result)
	case errors.Is(err, moderation.ErrReportNotFound), errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrReportResolved), errors.Is(err, moderation.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, moderation.ErrContentRemoval):
		middleware.LoggerFromRequest(r, s.Logger).Error("content removal failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "content removal failed; the report is unchanged")
	case errors.Is(err, suspension.ErrUnavailable):
		middleware.LoggerFromRequest(r, s.Logger).Error("suspension status unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "please try again shortly")
	default:
		middleware.LoggerFromRequest(r, s.Logger).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
