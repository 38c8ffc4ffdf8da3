// Package store provides storage backends for guidedflow flow documents.
//
// This file implements an SQLite-backed flow document store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/chatlift/guidedflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// ListFlows returns every flow owned by owner, main first, then by name.
func (s *SQLiteStore) ListFlows(ctx context.Context, owner string) ([]models.Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, language, active, options, version FROM flows
		 WHERE owner = ?
		 ORDER BY CASE WHEN name = ? THEN 0 ELSE 1 END, name`, owner, models.MainFlowName)
	if err != nil {
		slog.Error("SQLiteStore ListFlows query failed", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			slog.Error("SQLiteStore ListFlows scan failed", "error", err, "owner", owner)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListFlows rows iteration failed", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("SQLiteStore ListFlows succeeded", "owner", owner, "count", len(flows))
	return flows, nil
}

// SaveFlow inserts or updates one flow, bumping its version.
func (s *SQLiteStore) SaveFlow(ctx context.Context, owner string, flow models.Flow) (models.Flow, error) {
	f := assignIDs(flow)
	optionsJSON, err := encodeOptions(f.Options)
	if err != nil {
		return models.Flow{}, err
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM flows WHERE owner = ? AND id = ?`, owner, f.ID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if f.Version != 0 {
			return models.Flow{}, ErrVersionConflict
		}
		f.Version = 1
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO flows (id, owner, name, language, active, options, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, owner, f.Name, f.Language, f.Active, optionsJSON, f.Version)
		if err != nil {
			slog.Error("SQLiteStore SaveFlow insert failed", "error", err, "owner", owner, "flow", f.Name)
			return models.Flow{}, fmt.Errorf("failed to insert flow %s: %w", f.Name, err)
		}
	case err != nil:
		slog.Error("SQLiteStore SaveFlow version lookup failed", "error", err, "owner", owner, "flow", f.Name)
		return models.Flow{}, fmt.Errorf("failed to look up flow %s: %w", f.Name, err)
	default:
		res, err := s.db.ExecContext(ctx,
			`UPDATE flows SET name = ?, language = ?, active = ?, options = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			 WHERE owner = ? AND id = ? AND version = ?`,
			f.Name, f.Language, f.Active, optionsJSON, owner, f.ID, f.Version)
		if err != nil {
			slog.Error("SQLiteStore SaveFlow update failed", "error", err, "owner", owner, "flow", f.Name)
			return models.Flow{}, fmt.Errorf("failed to update flow %s: %w", f.Name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return models.Flow{}, fmt.Errorf("failed to read update result for flow %s: %w", f.Name, err)
		}
		if affected == 0 {
			slog.Debug("SQLiteStore SaveFlow version conflict", "owner", owner, "flow", f.Name, "version", f.Version, "stored", current)
			return models.Flow{}, ErrVersionConflict
		}
		f.Version++
	}

	slog.Debug("SQLiteStore SaveFlow succeeded", "owner", owner, "flow", f.Name, "version", f.Version)
	return f, nil
}

// DeleteFlow removes one flow by name.
func (s *SQLiteStore) DeleteFlow(ctx context.Context, owner string, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE owner = ? AND name = ?`, owner, name)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlow failed", "error", err, "owner", owner, "flow", name)
		return fmt.Errorf("failed to delete flow %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for flow %s: %w", name, err)
	}
	if affected == 0 {
		return ErrFlowNotFound
	}
	slog.Debug("SQLiteStore DeleteFlow succeeded", "owner", owner, "flow", name)
	return nil
}

// ReplaceAll atomically replaces the owner's whole graph.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, owner string, flows []models.Flow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("SQLiteStore ReplaceAll begin failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE owner = ?`, owner); err != nil {
		slog.Error("SQLiteStore ReplaceAll clear failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to clear flows: %w", err)
	}
	for _, flow := range flows {
		f := assignIDs(flow)
		optionsJSON, err := encodeOptions(f.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flows (id, owner, name, language, active, options, version) VALUES (?, ?, ?, ?, ?, ?, 1)`,
			f.ID, owner, f.Name, f.Language, f.Active, optionsJSON); err != nil {
			slog.Error("SQLiteStore ReplaceAll insert failed", "error", err, "owner", owner, "flow", f.Name)
			return fmt.Errorf("failed to insert flow %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore ReplaceAll commit failed", "error", err, "owner", owner)
		return fmt.Errorf("failed to commit import: %w", err)
	}
	slog.Debug("SQLiteStore ReplaceAll succeeded", "owner", owner, "count", len(flows))
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
