// Command icl-sweep runs the storage hygiene pass against PostgreSQL:
// it stamps expired member keys and deletes dead token and session rows.
// Lazy invalidation already keeps reads correct; the sweep only reclaims
// space and keeps stored statuses honest. Run it from cron.
//
// One-shot by default for cron; -interval keeps it running on a cadence:
//
//	DATABASE_URL=postgres://... icl-sweep
//	DATABASE_URL=postgres://... icl-sweep -interval 1h
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	innercircle "github.com/aolweb/innercircle"
	"github.com/aolweb/innercircle/tokenstore"
)

func main() {
	interval := flag.Duration("interval", 0, "sweep cadence; 0 runs once and exits")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	cfg, err := innercircle.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	cfg.Storage.Backend = innercircle.BackendRelational
	cfg.Audit.Enabled = false

	engine, err := innercircle.New().
		WithConfig(cfg).
		WithPostgres(pool).
		Build()
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	store, err := tokenstore.NewPostgres(pool)
	if err != nil {
		log.Fatalf("token store: %v", err)
	}

	for {
		if err := sweep(engine, store); err != nil {
			log.Fatal(err)
		}
		if *interval <= 0 {
			return
		}
		time.Sleep(*interval)
	}
}

func sweep(engine *innercircle.Engine, store *tokenstore.Postgres) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := engine.CleanupExpiredKeys(ctx)
	if err != nil {
		return fmt.Errorf("key sweep: %w", err)
	}
	deleted, err := store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("token sweep: %w", err)
	}

	fmt.Printf("keys expired: %d, token/session rows deleted: %d\n", res.Expired, deleted)
	return nil
}
