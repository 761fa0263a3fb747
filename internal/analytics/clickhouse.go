package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// Event types written to the moderation_events table.
const (
	EventScreening = "screening"
	EventReport    = "report"
	EventAction    = "moderation_action"
	EventRateLimit = "rate_limited"
	EventBlocked   = "suspension_block"
)

// AnalyticsService defines the interface for analytics operations.
// Implementations should handle cases where underlying storage is unavailable
// by returning ErrUnavailable.
type AnalyticsService interface {
	// RecordEvent records a single moderation event.
	RecordEvent(ctx context.Context, ev Event) error
	// RecordScreening is a convenience wrapper for screening decisions.
	RecordScreening(ctx context.Context, actorID, outcome, reason string) error
	// RecordReport is a convenience wrapper for accepted user reports.
	RecordReport(ctx context.Context, r models.Report, client ClientContext) error
	// RecordAction is a convenience wrapper for executed moderation actions.
	RecordAction(ctx context.Context, a models.ModerationAction) error
}

// ClientContext is request metadata attached to user-originated events.
type ClientContext struct {
	DeviceType string
	Country    string
	IsBot      bool
}

// Event is one row of the moderation_events table.
type Event struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    string            `json:"event_type"`
	ActorID      string            `json:"actor_id"`
	TargetUserID *string           `json:"target_user_id"`
	ContentType  *string           `json:"content_type"`
	ContentID    *string           `json:"content_id"`
	Outcome      string            `json:"outcome"`
	Reason       *string           `json:"reason"`
	DeviceType   *string           `json:"device_type"`
	Country      *string           `json:"country"`
	KeyValues    map[string]string `json:"key_values,omitempty"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB     *sql.DB
	Logger *zap.Logger
}

var _ AnalyticsService = (*Analytics)(nil)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(ctx context.Context, dsn string, logger *zap.Logger) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(10)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS moderation_events (
       timestamp      DateTime,
       event_type     String,
       actor_id       String,
       target_user_id Nullable(String),
       content_type   Nullable(String),
       content_id     Nullable(String),
       outcome        String,
       reason         Nullable(String),
       device_type    Nullable(String),
       country        Nullable(String),
       key_values     Map(String, String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	logger.Info("Connected to ClickHouse")
	return &Analytics{DB: db, Logger: logger}, nil
}

func (a *Analytics) log() *zap.Logger {
	if a.Logger == nil {
		return zap.L()
	}
	return a.Logger
}

// RecordEvent inserts a single event row.
func (a *Analytics) RecordEvent(ctx context.Context, ev Event) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	kv := ev.KeyValues
	if kv == nil {
		kv = map[string]string{}
	}

	stmt := `INSERT INTO moderation_events (timestamp, event_type, actor_id, target_user_id, content_type, content_id, outcome, reason, device_type, country, key_values) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.EventType, ev.ActorID,
		nullString(ev.TargetUserID), nullString(ev.ContentType), nullString(ev.ContentID),
		ev.Outcome, nullString(ev.Reason), nullString(ev.DeviceType), nullString(ev.Country), kv); err != nil {
		a.log().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", ev.EventType))
		return fmt.Errorf("insert %s event: %w", ev.EventType, err)
	}
	return nil
}

// RecordScreening records a screening gate decision.
func (a *Analytics) RecordScreening(ctx context.Context, actorID, outcome, reason string) error {
	return a.RecordEvent(ctx, ScreeningEvent(actorID, outcome, reason))
}

// RecordReport records an accepted report with the reporter's client context.
func (a *Analytics) RecordReport(ctx context.Context, r models.Report, client ClientContext) error {
	return a.RecordEvent(ctx, ReportEvent(r, client))
}

// RecordAction records an executed moderation action.
func (a *Analytics) RecordAction(ctx context.Context, act models.ModerationAction) error {
	return a.RecordEvent(ctx, ActionEvent(act))
}

// ScreeningEvent builds the row for a screening decision.
func ScreeningEvent(actorID, outcome, reason string) Event {
	return Event{
		EventType: EventScreening,
		ActorID:   actorID,
		Outcome:   outcome,
		Reason:    optional(reason),
	}
}

// ReportEvent builds the row for an accepted report.
func ReportEvent(r models.Report, client ClientContext) Event {
	ev := Event{
		Timestamp:   r.CreatedAt,
		EventType:   EventReport,
		ActorID:     r.ReporterID,
		ContentType: optional(string(r.Content.Type)),
		ContentID:   optional(r.Content.ID),
		Outcome:     string(r.Status),
		Reason:      optional(string(r.Reason)),
		DeviceType:  optional(client.DeviceType),
		Country:     optional(client.Country),
		KeyValues:   map[string]string{"report_id": r.ID},
	}
	if client.IsBot {
		ev.KeyValues["bot"] = "true"
	}
	return ev
}

// ActionEvent builds the row for a moderation action.
func ActionEvent(act models.ModerationAction) Event {
	ev := Event{
		Timestamp:    act.CreatedAt,
		EventType:    EventAction,
		ActorID:      act.ModeratorID,
		TargetUserID: optional(act.TargetUserID),
		Outcome:      string(act.Type),
		KeyValues:    map[string]string{"action_id": act.ID},
	}
	if act.Content != nil {
		ev.ContentType = optional(string(act.Content.Type))
		ev.ContentID = optional(act.Content.ID)
	}
	if act.ReportID != nil {
		ev.KeyValues["report_id"] = *act.ReportID
	}
	if act.Days > 0 {
		ev.KeyValues["days"] = fmt.Sprint(act.Days)
	}
	return ev
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.log().Error("clickhouse close", zap.Error(err))
		}
	}
}

// GetEventsByActor returns the events an actor produced, newest first.
func (a *Analytics) GetEventsByActor(ctx context.Context, actorID string, limit int) ([]Event, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT timestamp, event_type, actor_id, target_user_id, content_type, content_id, outcome, reason, device_type, country FROM moderation_events WHERE actor_id=? ORDER BY timestamp DESC LIMIT ?`
	rows, err := a.DB.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			a.log().Warn("rows close", zap.Error(err))
		}
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.ActorID, &ev.TargetUserID, &ev.ContentType, &ev.ContentID, &ev.Outcome, &ev.Reason, &ev.DeviceType, &ev.Country); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
