package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

//go:embed seed/*.sql
var embedSeed embed.FS

// seedTable versiona os dados de demonstração separado do schema
const seedTable = "goose_seed_version"

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Migrate aplica as migrations de schema embutidas
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Seed insere perfis e partidas de demonstração. Só para ambiente local:
// o chamador decide (SEED_DEMO).
func Seed(db *sql.DB) error {
	goose.SetBaseFS(embedSeed)
	defer goose.SetBaseFS(embedMigrations)

	prev := goose.TableName()
	goose.SetTableName(seedTable)
	defer goose.SetTableName(prev)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "seed"); err != nil {
		return fmt.Errorf("goose seed: %w", err)
	}
	return nil
}
