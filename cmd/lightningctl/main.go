// lightningctl is a minimal, non-interactive entry point: it reads a query
// from stdin, generates a summary table and its triggers, and applies them
// against the database named by DB_CONNECTION_STRING. It is not a
// flag-parsing CLI — connection configuration, prompts, and a dashboard are
// someone else's concern.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lightningsum/lightning"
)

func main() {
	query, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reading query from stdin: %v", err)
	}

	db, err := openConnection()
	if err != nil {
		log.Fatalf("opening database connection: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	artifacts, err := lightning.Generate(ctx, db, string(query))
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	fmt.Println(artifacts.Preview)

	err = lightning.Apply(ctx, db, artifacts, lightning.Config{}, func(done, total int) {
		log.Printf("backfill progress: %d/%d chunks", done, total)
	})
	if err != nil {
		log.Fatalf("apply: %v", err)
	}

	log.Printf("summary table %s is materialized", artifacts.SummaryName)
}

// openConnection mirrors the teacher's connection setup: read
// DB_CONNECTION_STRING from the environment, apply the module's pool
// defaults, and verify reachability with a bounded ping before returning.
func openConnection() (*sql.DB, error) {
	connString := os.Getenv("DB_CONNECTION_STRING")
	if connString == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}

	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}

	db.SetMaxOpenConns(lightning.DBMaxOpenConns)
	db.SetMaxIdleConns(lightning.DBMaxIdleConns)
	db.SetConnMaxLifetime(lightning.DBConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), lightning.DBPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
