// Command migrate applies, inspects and rolls back the BookSwap schema.
//
//	go run ./cmd/migrate up            apply pending SQL migrations
//	go run ./cmd/migrate auto          run GORM AutoMigrate for every model
//	go run ./cmd/migrate status        show schema mode and pending versions
//	go run ./cmd/migrate list          list embedded migrations
//	go run ./cmd/migrate down <v>      roll back one version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"bookswap/internal/config"
	"bookswap/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: go run ./cmd/migrate <up|auto|status|list|down <version>>")

type step func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var steps = map[string]step{
	"up":     up,
	"auto":   auto,
	"status": status,
	"list":   list,
	"down":   down,
}

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	fn, ok := steps[name]
	if !ok {
		return errUsage
	}

	// list reads only the embedded files.
	if name == "list" {
		return fn(context.Background(), nil, nil, args[1:])
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	return fn(context.Background(), db, cfg, args[1:])
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Println("sql migrations applied")
	return nil
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied for books, requests, ratings, disputes, messages and notifications")
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("driver=%s mode=%s env=%s sql=%t auto=%t applied=%v",
		db.Dialector.Name(), st.Mode, st.Environment, st.WillRunSQL, st.WillRunAutoMigrate, st.AppliedVersions)
	if len(st.PendingMigrations) == 0 {
		log.Println("schema is up to date")
	}
	for _, m := range st.PendingMigrations {
		log.Printf("pending: %06d_%s", m.Version, m.Name)
	}
	return nil
}

func list(_ context.Context, _ *gorm.DB, _ *config.Config, _ []string) error {
	for _, m := range database.GetMigrations() {
		fmt.Printf("%06d_%s\n", m.Version, m.Name)
	}
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if database.GetMigrationByVersion(version) == nil {
		return fmt.Errorf("no embedded migration with version %d", version)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback of %06d failed: %w", version, err)
	}
	log.Printf("rolled back migration %06d", version)
	return nil
}
