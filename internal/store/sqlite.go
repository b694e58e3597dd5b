package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/i474232898/srf-weather/internal/weather"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists snapshots in a SQLite database so history survives
// restarts. Each row keeps the whole snapshot as JSON.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
}

var _ weather.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. If maxHistory is <= 0, history per location is unbounded.
func OpenSQLite(path string, maxHistory int) (*SQLiteStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	if err := RunMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStore{db: db, maxHistory: maxHistory}, nil
}

// RunMigrations applies all migrations to the database at path.
// It returns without error when the schema is already current.
func RunMigrations(path string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot inserts the snapshot and trims the location's history to maxHistory.
func (s *SQLiteStore) SaveSnapshot(loc weather.Location, snapshot weather.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO snapshots (location_id, fetched_at, payload) VALUES (?, ?, ?)`,
		loc.ID(), snapshot.FetchedAt.UnixMilli(), string(payload),
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if s.maxHistory > 0 {
		if _, err := tx.Exec(`
			DELETE FROM snapshots
			WHERE location_id = ?1 AND id NOT IN (
				SELECT id FROM snapshots WHERE location_id = ?1
				ORDER BY fetched_at DESC, id DESC LIMIT ?2
			)`, loc.ID(), s.maxHistory); err != nil {
			return fmt.Errorf("failed to trim snapshot history: %w", err)
		}
	}

	return tx.Commit()
}

// GetLatest returns the most recently fetched snapshot for a location.
func (s *SQLiteStore) GetLatest(loc weather.Location) (weather.Snapshot, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM snapshots WHERE location_id = ? ORDER BY fetched_at DESC, id DESC LIMIT 1`,
		loc.ID(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

// GetRange returns the snapshots fetched between from and to (inclusive), oldest first.
func (s *SQLiteStore) GetRange(loc weather.Location, from, to time.Time) ([]weather.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM snapshots
		 WHERE location_id = ? AND fetched_at >= ? AND fetched_at <= ?
		 ORDER BY fetched_at, id`,
		loc.ID(), from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var result []weather.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Prune deletes every snapshot fetched before the cutoff.
func (s *SQLiteStore) Prune(before time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE fetched_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return int(n), nil
}

func decodeSnapshot(payload string) (weather.Snapshot, error) {
	var snap weather.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return weather.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
