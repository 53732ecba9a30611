package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"insurance-ledger/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ConnectAndCreateDB creates the ledger database on first boot, applies schema.sql to it,
// and returns a pooled connection.
func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBname)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		if _, err := defaultDB.Exec(createQuery); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		log.Printf("Database '%s' created", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	// The schema only uses IF NOT EXISTS, so it is safe to apply on every boot.
	if err := executeSchema(db); err != nil {
		log.Printf("Warning: Failed to execute schema.sql: %v", err)
	}

	return db, nil
}

func executeSchema(db *sqlx.DB) error {
	schemaLocations := []string{
		"schema.sql",
		"/app/schema.sql",
		filepath.Join(os.Getenv("PWD"), "schema.sql"),
	}

	var schemaPath string
	for _, location := range schemaLocations {
		if _, err := os.Stat(location); err == nil {
			schemaPath = location
			break
		}
	}
	if schemaPath == "" {
		return fmt.Errorf("schema.sql not found in any expected locations: %v", schemaLocations)
	}

	schemaContent, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema.sql from %s: %w", schemaPath, err)
	}

	log.Printf("Executing schema from: %s", schemaPath)

	successCount := 0
	for i, statement := range splitStatements(string(schemaContent)) {
		if _, err := db.Exec(statement); err != nil {
			log.Printf("Warning: Failed to execute statement %d: %v", i+1, err)
			continue
		}
		successCount++
	}

	log.Printf("Schema execution completed. Successfully executed %d statements", successCount)
	return nil
}

// splitStatements drops comment lines and splits on semicolons.
func splitStatements(schema string) []string {
	var lines []string
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var statements []string
	for _, statement := range strings.Split(strings.Join(lines, "\n"), ";") {
		if statement = strings.TrimSpace(statement); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

// RetryConnectOnFailed keeps dialing every wait until a connection succeeds or ctx ends.
func RetryConnectOnFailed(ctx context.Context, wait time.Duration, cfg config.PostgresConfig) (*sqlx.DB, error) {
	for {
		db, err := ConnectAndCreateDB(cfg)
		if err == nil {
			return db, nil
		}
		log.Printf("failed to connect database: %s, next retry in %v", err, wait)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to database: %w", err)
		case <-time.After(wait):
		}
	}
}
