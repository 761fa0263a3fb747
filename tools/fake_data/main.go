package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/config"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/token"
)

var (
	userCount   = flag.Int("users", 50, "number of users")
	reportCount = flag.Int("reports", 200, "number of pending reports")
	suspended   = flag.Int("suspended", 3, "users seeded with an active suspension")
	legacyBans  = flag.Int("legacy-bans", 1, "users seeded with the legacy far-future ban encoding")
	moderator   = flag.String("moderator", "mod-demo", "moderator ID to mint a token for")
	seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	skipReload  = flag.Bool("skip-reload", false, "skip automatic reload after data insertion")
)

func main() {
	flag.Parse()

	logger, err := observability.InitLoggerWithService("fake-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx := context.Background()
	pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	r := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC()

	users := make([]models.User, *userCount)
	for i := range users {
		users[i] = models.User{ID: fmt.Sprintf("user-%04d", i+1), DisplayName: fakeName(r), Suspension: models.Active()}
		switch {
		case i < *suspended:
			days := []int{3, 7, 30}[r.Intn(3)]
			users[i].Suspension = models.SuspendedUntil(now.AddDate(0, 0, days), "seeded suspension")
		case i < *suspended+*legacyBans:
			// written the way pre-kind rows were, without a suspension_kind
			if err := insertLegacyBan(ctx, pg, users[i]); err != nil {
				logger.Fatal("insert legacy ban", zap.Error(err))
			}
			continue
		}
		if err := pg.UpsertUser(ctx, users[i]); err != nil {
			logger.Fatal("insert user", zap.Error(err))
		}
	}

	for i := 0; i < *reportCount; i++ {
		rep := randomReport(r, users, now)
		if err := pg.InsertReport(ctx, &rep); err != nil {
			logger.Fatal("insert report", zap.Error(err))
		}
	}

	fmt.Printf("inserted %d users and %d reports\n", len(users), *reportCount)

	if cfg.TokenSecret != "" {
		tok, err := token.Generate(*moderator, token.RoleModerator, []byte(cfg.TokenSecret))
		if err != nil {
			logger.Fatal("mint moderator token", zap.Error(err))
		}
		fmt.Printf("moderator token for %s:\n%s\n", *moderator, tok)
	}

	if !*skipReload {
		if err := callReloadEndpoint(&cfg); err != nil {
			logger.Error("reload endpoint failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Warning: failed to reload server data: %v\n", err)
		} else {
			fmt.Println("server data reloaded")
		}
	}
}

func insertLegacyBan(ctx context.Context, pg *db.Postgres, u models.User) error {
	_, err := pg.DB.ExecContext(ctx, `INSERT INTO users (id, display_name, suspended_until, suspension_reason)
        VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
		u.ID, u.DisplayName, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), "seeded legacy ban")
	return err
}

var sampleDetails = []string{
	"",
	"keeps posting the same link",
	"this account is pretending to be me",
	"rude replies on every one of my posts",
	"the picture is not ok",
}

func randomReport(r *rand.Rand, users []models.User, now time.Time) models.Report {
	reporter := users[r.Intn(len(users))]
	target := users[r.Intn(len(users))]

	ref := models.ContentRef{Type: models.ContentTypeUser, ID: target.ID}
	switch r.Intn(4) {
	case 0:
		ref = models.ContentRef{Type: models.ContentTypePost, ID: fmt.Sprintf("post-%d", r.Intn(500))}
	case 1:
		ref = models.ContentRef{Type: models.ContentTypeComment, ID: fmt.Sprintf("comment-%d", r.Intn(2000))}
	case 2:
		ref = models.ContentRef{Type: models.ContentTypeGoal, ID: fmt.Sprintf("goal-%d", r.Intn(100))}
	}

	return models.Report{
		ID:         uuid.NewString(),
		ReporterID: reporter.ID,
		Content:    ref,
		Reason:     models.ReportReasons[r.Intn(len(models.ReportReasons))],
		Details:    sampleDetails[r.Intn(len(sampleDetails))],
		Status:     models.ReportPending,
		CreatedAt:  now.Add(-time.Duration(r.Intn(72*60)) * time.Minute),
	}
}

var firstNames = []string{"Ada", "Bea", "Cal", "Dev", "Eli", "Fay", "Gus", "Hal", "Ivy", "Jo"}
var lastNames = []string{"Runner", "Lifter", "Walker", "Climber", "Swimmer", "Rider"}

func fakeName(r *rand.Rand) string {
	return fmt.Sprintf("%s %s", firstNames[r.Intn(len(firstNames))], lastNames[r.Intn(len(lastNames))])
}

func callReloadEndpoint(cfg *config.Config) error {
	reloadURL := fmt.Sprintf("http://localhost:%s/reload", cfg.Port)
	req, err := http.NewRequest(http.MethodPost, reloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
