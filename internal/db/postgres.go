package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

var _ Store = (*Postgres)(nil)

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    suspension_kind VARCHAR(20),
    suspended_until TIMESTAMPTZ NULL,
    suspension_reason TEXT NULL
);

CREATE TABLE IF NOT EXISTS report_reasons (
    code VARCHAR(50) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    description TEXT,
    severity VARCHAR(20) DEFAULT 'medium'
);

CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    reporter_id TEXT NOT NULL,
    content_type VARCHAR(20) NOT NULL,
    content_id TEXT NOT NULL,
    reason VARCHAR(50) NOT NULL,
    details TEXT,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    reviewed_at TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS moderation_actions (
    id TEXT PRIMARY KEY,
    moderator_id TEXT NOT NULL,
    target_user_id TEXT NOT NULL,
    action_type VARCHAR(30) NOT NULL,
    report_id TEXT NULL REFERENCES reports(id),
    content_type VARCHAR(20) NULL,
    content_id TEXT NULL,
    notes TEXT,
    days INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reports_status_created ON reports (status, created_at);
CREATE INDEX IF NOT EXISTS idx_reports_content ON reports (content_type, content_id);
CREATE INDEX IF NOT EXISTS idx_moderation_actions_target ON moderation_actions (target_user_id, created_at);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if err := p.ensureReportReasons(ctx); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ensureReportReasons inserts default report reasons if none exist.
func (p *Postgres) ensureReportReasons(ctx context.Context) error {
	var count int
	if err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_reasons`).Scan(&count); err != nil {
		return fmt.Errorf("count report_reasons: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, rr := range DefaultReportReasons {
		if _, err := p.DB.ExecContext(ctx, `INSERT INTO report_reasons (code, display_name, description, severity) VALUES ($1,$2,$3,$4)`, rr.Code, rr.DisplayName, rr.Description, rr.Severity); err != nil {
			return fmt.Errorf("insert report reason %s: %w", rr.Code, err)
		}
	}
	return nil
}

// GetUser loads a user and decodes its suspension columns.
func (p *Postgres) GetUser(ctx context.Context, id string) (models.User, error) {
	var (
		u      models.User
		kind   sql.NullString
		until  sql.NullTime
		reason sql.NullString
	)
	err := p.DB.QueryRowContext(ctx, `SELECT id, display_name, suspension_kind, suspended_until, suspension_reason FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.DisplayName, &kind, &until, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Suspension = models.StatusFromFields(kind.String, nullTimePtr(until), nullStringPtr(reason))
	return u, nil
}

// UpsertUser inserts or replaces a user row.
func (p *Postgres) UpsertUser(ctx context.Context, u models.User) error {
	kind, until, reason := u.Suspension.Fields()
	_, err := p.DB.ExecContext(ctx, `INSERT INTO users (id, display_name, suspension_kind, suspended_until, suspension_reason)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name, suspension_kind=EXCLUDED.suspension_kind,
            suspended_until=EXCLUDED.suspended_until, suspension_reason=EXCLUDED.suspension_reason`,
		u.ID, u.DisplayName, string(kind), until, reason)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// InsertReport stores a new report.
func (p *Postgres) InsertReport(ctx context.Context, r *models.Report) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO reports (id, reporter_id, content_type, content_id, reason, details, status, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.ReporterID, string(r.Content.Type), r.Content.ID, string(r.Reason), r.Details, string(r.Status), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

const reportColumns = `id, reporter_id, content_type, content_id, reason, details, status, created_at, reviewed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var (
		r        models.Report
		ctype    string
		reason   string
		status   string
		details  sql.NullString
		reviewed sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.ReporterID, &ctype, &r.Content.ID, &reason, &details, &status, &r.CreatedAt, &reviewed); err != nil {
		return models.Report{}, err
	}
	r.Content.Type = models.ContentType(ctype)
	r.Reason = models.ReportReason(reason)
	r.Status = models.ReportStatus(status)
	r.Details = details.String
	r.ReviewedAt = nullTimePtr(reviewed)
	return r, nil
}

// GetReport retrieves a report by ID.
func (p *Postgres) GetReport(ctx context.Context, id string) (models.Report, error) {
	r, err := scanReport(p.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, models.ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("select report: %w", err)
	}
	return r, nil
}

// ListPendingReports returns pending reports oldest first.
func (p *Postgres) ListPendingReports(ctx context.Context, limit int) ([]models.Report, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE status='pending' ORDER BY created_at, id LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// CountOpenReports counts pending or reviewed reports against ref.
func (p *Postgres) CountOpenReports(ctx context.Context, ref models.ContentRef) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE content_type=$1 AND content_id=$2 AND status IN ('pending','reviewed')`,
		string(ref.Type), ref.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// CommitAction resolves the report, updates the suspension and appends the
// audit row in one transaction.
func (p *Postgres) CommitAction(ctx context.Context, c ActionCommit) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	a := c.Action
	if a.ReportID != nil && c.ReportStatus != "" {
		res, err := tx.ExecContext(ctx, `UPDATE reports SET status=$1, reviewed_at=$2 WHERE id=$3 AND status IN ('pending','reviewed')`,
			string(c.ReportStatus), c.ResolvedAt.UTC(), *a.ReportID)
		if err != nil {
			return fmt.Errorf("resolve report: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("resolve report: %w", err)
		} else if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id=$1)`, *a.ReportID).Scan(&exists); err != nil {
				return fmt.Errorf("resolve report: %w", err)
			}
			if !exists {
				return models.ErrNotFound
			}
			return ErrReportResolved
		}
	}

	if c.Suspension != nil {
		kind, until, reason := c.Suspension.Fields()
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, suspension_kind, suspended_until, suspension_reason) VALUES ($1,$2,$3,$4)
                ON CONFLICT (id) DO UPDATE SET suspension_kind=EXCLUDED.suspension_kind,
                suspended_until=EXCLUDED.suspended_until, suspension_reason=EXCLUDED.suspension_reason`,
			a.TargetUserID, string(kind), until, reason); err != nil {
			return fmt.Errorf("update suspension: %w", err)
		}
	}

	var ctype, cid sql.NullString
	if a.Content != nil {
		ctype = sql.NullString{String: string(a.Content.Type), Valid: true}
		cid = sql.NullString{String: a.Content.ID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO moderation_actions (id, moderator_id, target_user_id, action_type, report_id, content_type, content_id, notes, days, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ModeratorID, a.TargetUserID, string(a.Type), a.ReportID, ctype, cid, a.Notes, a.Days, a.CreatedAt); err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit action: %w", err)
	}
	return nil
}

const actionColumns = `id, moderator_id, target_user_id, action_type, report_id, content_type, content_id, notes, days, created_at`

func scanAction(row rowScanner) (models.ModerationAction, error) {
	var (
		a        models.ModerationAction
		atype    string
		reportID sql.NullString
		ctype    sql.NullString
		cid      sql.NullString
		notes    sql.NullString
	)
	if err := row.Scan(&a.ID, &a.ModeratorID, &a.TargetUserID, &atype, &reportID, &ctype, &cid, &notes, &a.Days, &a.CreatedAt); err != nil {
		return models.ModerationAction{}, err
	}
	a.Type = models.ActionType(atype)
	a.ReportID = nullStringPtr(reportID)
	a.Notes = notes.String
	if ctype.Valid && cid.Valid {
		a.Content = &models.ContentRef{Type: models.ContentType(ctype.String), ID: cid.String}
	}
	return a, nil
}

// GetAction retrieves an audit record by ID.
func (p *Postgres) GetAction(ctx context.Context, id string) (models.ModerationAction, error) {
	a, err := scanAction(p.DB.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM moderation_actions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ModerationAction{}, models.ErrNotFound
	}
	if err != nil {
		return models.ModerationAction{}, fmt.Errorf("select action: %w", err)
	}
	return a, nil
}

// ListActions returns the target's audit history newest first.
func (p *Postgres) ListActions(ctx context.Context, targetUserID string, limit int) ([]models.ModerationAction, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+actionColumns+` FROM moderation_actions WHERE target_user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		targetUserID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.ModerationAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// CountActions counts the target's actions whose type is in types.
func (p *Postgres) CountActions(ctx context.Context, targetUserID string, types []models.ActionType) (int, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_actions WHERE target_user_id=$1 AND action_type = ANY($2)`,
		targetUserID, pq.Array(names)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// LoadReportReasons reads the reason catalog.
func (p *Postgres) LoadReportReasons(ctx context.Context) ([]models.ReasonInfo, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT code, display_name, description, severity FROM report_reasons ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query report reasons: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.ReasonInfo
	for rows.Next() {
		var (
			ri       models.ReasonInfo
			code     string
			desc     sql.NullString
			severity sql.NullString
		)
		if err := rows.Scan(&code, &ri.DisplayName, &desc, &severity); err != nil {
			return nil, fmt.Errorf("scan report reason: %w", err)
		}
		ri.Code = models.ReportReason(code)
		ri.Description = desc.String
		ri.Severity = severity.String
		out = append(out, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
