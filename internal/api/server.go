package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/escalation"
	"github.com/patrickwarner/trustsafety/internal/geoip"
	"github.com/patrickwarner/trustsafety/internal/middleware"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/ratelimit"
	"github.com/patrickwarner/trustsafety/internal/reports"
	"github.com/patrickwarner/trustsafety/internal/screening"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger      *zap.Logger
	Store       db.Store
	Gate        *screening.Gate
	Limiter     ratelimit.Limiter
	Guard       *suspension.Guard
	Intake      *reports.Intake
	Catalog     *reports.Catalog
	Ledger      *escalation.Ledger
	Executor    *moderation.Executor
	Queue       *Queue
	GeoIP       *geoip.Resolver
	Metrics     observability.MetricsRegistry
	TokenSecret []byte
	TokenTTL    time.Duration
	reloadMu    sync.Mutex
}

// Routes builds the router. Everything except health, metrics and reload
// requires a bearer token; moderation routes also require the moderator role.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/reload", s.ReloadHandler).Methods(http.MethodPost)

	authed := r.PathPrefix("/v1").Subrouter()
	authed.Use(middleware.Authenticate(s.TokenSecret, s.TokenTTL, s.Logger))
	authed.Use(middleware.WithTraceLogger(s.Logger))

	authed.HandleFunc("/content/screen", s.instrument("screen", s.ScreenHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/content/precheck", s.instrument("precheck", s.PrecheckHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/actions/{kind}", s.instrument("mutation_gate", s.MutationGateHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/reports", s.instrument("report", s.SubmitReportHandler)).Methods(http.MethodPost)
	authed.HandleFunc("/report-reasons", s.instrument("report_reasons", s.ReasonsHandler)).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}/suspension", s.instrument("suspension", s.SuspensionHandler)).Methods(http.MethodGet)

	mod := authed.PathPrefix("/moderation").Subrouter()
	mod.Use(middleware.RequireModerator)
	mod.HandleFunc("/queue", s.instrument("queue", s.QueueHandler)).Methods(http.MethodGet)
	mod.HandleFunc("/users/{id}/suggestion", s.instrument("suggestion", s.SuggestionHandler)).Methods(http.MethodGet)
	mod.HandleFunc("/users/{id}/actions", s.instrument("action_history", s.ActionHistoryHandler)).Methods(http.MethodGet)
	mod.HandleFunc("/{action}", s.instrument("moderation_action", s.ModerationActionHandler)).Methods(http.MethodPost)
	return r
}

// Reload refreshes the report reason catalog.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.Catalog == nil {
		return fmt.Errorf("reason catalog unavailable")
	}
	return s.Catalog.Reload(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency for endpoint.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.Metrics.IncrementRequests(endpoint, r.Method, fmt.Sprint(rec.status))
		s.Metrics.RecordRequestLatency(endpoint, r.Method, time.Since(start))
	}
}
