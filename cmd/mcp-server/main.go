// Command mcp-server exposes moderator tools over the Model Context Protocol
// on stdio, acting as one configured moderator.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/api"
	"github.com/patrickwarner/trustsafety/internal/config"
	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/escalation"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/notify"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/reports"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr
	logger, err := observability.InitStderrLogger(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	moderatorID := os.Getenv("MCP_MODERATOR_ID")
	if moderatorID == "" {
		logger.Fatal("MCP_MODERATOR_ID environment variable is required")
	}

	ctx := context.Background()
	pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, 10, 5, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger)
	opts := []moderation.Option{moderation.WithLogger(logger)}
	if rs, err := db.InitRedis(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("Redis unavailable, notifications will only be logged", zap.Error(err))
	} else {
		defer rs.Close()
		dispatcher = notify.NewRedisDispatcher(rs, cfg.NotificationChannel, logger)
		opts = append(opts, moderation.WithKeyStore(moderation.NewRedisKeyStore(rs, cfg.IdempotencyKeyTTL)))
	}

	tiers, err := escalation.ParseTiers(cfg.EscalationSuspendTiers)
	if err != nil {
		logger.Fatal("Invalid ESCALATION_SUSPEND_TIERS", zap.Error(err))
	}
	policy, err := escalation.NewPolicy(tiers, cfg.EscalationBanThreshold)
	if err != nil {
		logger.Fatal("Invalid escalation policy", zap.Error(err))
	}

	var contentSvc interface {
		content.Remover
		content.Previewer
	} = content.Unavailable{}
	if cfg.ContentServiceURL != "" {
		contentSvc = content.NewClient(content.Options{BaseURL: cfg.ContentServiceURL, Timeout: cfg.ContentServiceTimeout}, logger)
	}

	catalog := reports.NewCatalog(pg)
	if err := catalog.Reload(ctx); err != nil {
		logger.Warn("Failed to load report reasons, using codes as labels", zap.Error(err))
	}

	tools := &moderatorTools{
		moderatorID: moderatorID,
		store:       pg,
		queue:       api.NewQueue(pg, contentSvc, catalog, logger),
		ledger:      escalation.NewLedger(pg, policy),
		guard:       suspension.NewGuard(pg, nil, logger),
		executor:    moderation.NewExecutor(pg, contentSvc, dispatcher, opts...),
		logger:      logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "trustsafety-moderator",
		Version: "1.0.0",
	}, nil)
	tools.register(server)

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP moderator server running via stdio", zap.String("moderator_id", moderatorID))
	if err := server.Run(ctx, transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
