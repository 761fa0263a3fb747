package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/config"
	"github.com/patrickwarner/trustsafety/internal/observability"
)

// query_events prints the moderation events recorded for one actor.
func main() {
	logger, err := observability.InitStderrLogger("query-events")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var actor, dsn string
	var limit int
	flag.StringVar(&actor, "actor", "", "user or moderator ID")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN (defaults to CLICKHOUSE_DSN)")
	flag.IntVar(&limit, "limit", 100, "maximum events to return")
	flag.Parse()

	if actor == "" {
		fmt.Fprintln(os.Stderr, "actor required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "no ClickHouse DSN configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := analytics.InitClickHouse(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	events, err := a.GetEventsByActor(ctx, actor, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
