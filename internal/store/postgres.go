// Package store provides storage backends for guidedflow flow documents.
//
// This file implements a PostgreSQL-backed flow document store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/chatlift/guidedflow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// ListFlows returns every flow owned by owner, main first, then by name.
func (s *PostgresStore) ListFlows(ctx context.Context, owner string) ([]models.Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, language, active, options, version FROM flows
		 WHERE owner = $1
		 ORDER BY CASE WHEN name = $2 THEN 0 ELSE 1 END, name`, owner, models.MainFlowName)
	if err != nil {
		slog.Error("PostgresStore ListFlows query failed", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			slog.Error("PostgresStore ListFlows scan failed", "error", err, "owner", owner)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListFlows rows iteration failed", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("PostgresStore ListFlows succeeded", "owner", owner, "count", len(flows))
	return flows, nil
}

// SaveFlow inserts or updates one flow, bumping its version.
func (s *PostgresStore) SaveFlow(ctx context.Context, owner string, flow models.Flow) (models.Flow, error) {
	f := assignIDs(flow)
	optionsJSON, err := encodeOptions(f.Options)
	if err != nil {
		return models.Flow{}, err
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM flows WHERE owner = $1 AND id = $2`, owner, f.ID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if f.Version != 0 {
			return models.Flow{}, ErrVersionConflict
		}
		f.Version = 1
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO flows (id, owner, name, language, active, options, version) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.ID, owner, f.Name, f.Language, f.Active, optionsJSON, f.Version)
		if err != nil {
			slog.Error("PostgresStore SaveFlow insert failed", "error", err, "owner", owner, "flow", f.Name)
			return models.Flow{}, fmt.Errorf("failed to insert flow %s: %w", f.Name, err)
		}
	case err != nil:
		slog.Error("PostgresStore SaveFlow version lookup failed", "error", err, "owner", owner, "flow", f.Name)
		return models.Flow{}, fmt.Errorf("failed to look up flow %s: %w", f.Name, err)
	default:
		res, err := s.db.ExecContext(ctx,
			`UPDATE flows SET name = $1, language = $2, active = $3, options = $4, version = version + 1, updated_at = now()
			 WHERE owner = $5 AND id = $6 AND version = $7`,
			f.Name, f.Language, f.Active, optionsJSON, owner, f.ID, f.Version)
		if err != nil {
			slog.Error("PostgresStore SaveFlow update failed", "error", err, "owner", owner, "flow", f.Name)
			return models.Flow{}, fmt.Errorf("failed to update flow %s: %w", f.Name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return models.Flow{}, fmt.Errorf("failed to read update result for flow %s: %w", f.Name, err)
		}
		if affected == 0 {
			slog.Debug("PostgresStore SaveFlow version conflict", "owner", owner, "flow", f.Name, "version", f.Version, "stored", current)
			return models.Flow{}, ErrVersionConflict
		}
		f.Version++
	}

	slog.Debug("PostgresStore SaveFlow succeeded", "owner", owner, "flow", f.Name, "version", f.Version)
	return f, nil
}

// DeleteFlow removes one flow by name.
func (s *PostgresStore) DeleteFlow(ctx context.Context, owner string, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE owner = $1 AND name = $2`, owner, name)
	if err != nil {
		slog.Error("PostgresStore DeleteFlow failed", "error", err, "owner", owner, "flow", name)
		return fmt.Errorf("failed to delete flow %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for flow %s: %w", name, err)
	}
	if affected == 0 {
		return ErrFlowNotFound
	}
	slog.Debug("PostgresStore DeleteFlow succeeded", "owner", owner, "flow", name)
	return nil
}

// ReplaceAll atomically replaces the owner's whole graph.
func (s *PostgresStore) ReplaceAll(ctx context.Context, owner string, flows []models.Flow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("PostgresStore ReplaceAll begin failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE owner = $1`, owner); err != nil {
		slog.Error("PostgresStore ReplaceAll clear failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to clear flows: %w", err)
	}
	for _, flow := range flows {
		f := assignIDs(flow)
		optionsJSON, err := encodeOptions(f.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flows (id, owner, name, language, active, options, version) VALUES ($1, $2, $3, $4, $5, $6, 1)`,
			f.ID, owner, f.Name, f.Language, f.Active, optionsJSON); err != nil {
			slog.Error("PostgresStore ReplaceAll insert failed", "error", err, "owner", owner, "flow", f.Name)
			return fmt.Errorf("failed to insert flow %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore ReplaceAll commit failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to commit import: %w", err)
	}
	slog.Debug("PostgresStore ReplaceAll succeeded", "owner", owner, "count", len(flows))
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
