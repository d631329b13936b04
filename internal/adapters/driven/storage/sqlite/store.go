// Package sqlite provides the durable record store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/florianmw/bpexplore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.RecordStore = (*Store)(nil)

// Store is a SQLite-backed record store. It is the durable half of the
// cache: records survive process restarts and are only replaced wholesale
// by a re-sync.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.bpexplore/data/cache.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".bpexplore", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cache.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Get retrieves a record by ID within a dataset.
func (s *Store) Get(ctx context.Context, dataset, id string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, title, organisation_name, organisation_id, contact_name,
		       donations_prohibited, closed, raw
		FROM records WHERE dataset = ? AND id = ?
	`, dataset, id)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	return rec, nil
}

// PutAll upserts a batch of records in a single transaction. The batch is
// all-or-nothing: a failure rolls every row back, so dataset metadata can
// never describe half-written pages.
func (s *Store) PutAll(ctx context.Context, dataset string, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (dataset, id, kind, title, organisation_name, organisation_id,
		                     contact_name, donations_prohibited, closed, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset, id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			organisation_name = excluded.organisation_name,
			organisation_id = excluded.organisation_id,
			contact_name = excluded.contact_name,
			donations_prohibited = excluded.donations_prohibited,
			closed = excluded.closed,
			raw = excluded.raw
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, dataset, rec.ID, string(rec.Kind), rec.Title,
			rec.OrganisationName, rec.OrganisationID, rec.ContactName,
			rec.DonationsProhibited, rec.Closed, string(rec.Raw)); err != nil {
			return 0, fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(records), nil
}

// ForEach streams every record of a dataset in ID order.
func (s *Store) ForEach(ctx context.Context, dataset string, fn func(domain.Record) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, title, organisation_name, organisation_id, contact_name,
		       donations_prohibited, closed, raw
		FROM records WHERE dataset = ?
		ORDER BY id
	`, dataset)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return fmt.Errorf("scanning record: %w", err)
		}
		if err := fn(*rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating records: %w", err)
	}
	return nil
}

// Clear removes all records and metadata of a dataset.
func (s *Store) Clear(ctx context.Context, dataset string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE dataset = ?", dataset); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dataset_meta WHERE dataset = ?", dataset); err != nil {
		return fmt.Errorf("clearing metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetMeta retrieves dataset sync metadata. Metadata written by a different
// schema version yields domain.ErrSchemaMismatch so the dataset is treated
// as absent instead of being misread.
func (s *Store) GetMeta(ctx context.Context, dataset string) (*domain.CacheDataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dataset, status, last_synced_at, record_count, schema_version
		FROM dataset_meta WHERE dataset = ?
	`, dataset)

	var meta domain.CacheDataset
	var status string
	var lastSynced sql.NullTime
	var schemaVersion int
	if err := row.Scan(&meta.Name, &status, &lastSynced, &meta.RecordCount, &schemaVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning dataset meta: %w", err)
	}

	if schemaVersion != domain.SchemaVersion {
		return nil, domain.ErrSchemaMismatch
	}

	meta.Status = domain.CacheStatus(status)
	if lastSynced.Valid {
		meta.LastSyncedAt = lastSynced.Time
	}
	return &meta, nil
}

// SetMeta stores dataset sync metadata stamped with the current schema
// version.
func (s *Store) SetMeta(ctx context.Context, dataset string, meta domain.CacheDataset) error {
	var lastSynced sql.NullTime
	if !meta.LastSyncedAt.IsZero() {
		lastSynced = sql.NullTime{Time: meta.LastSyncedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset_meta (dataset, status, last_synced_at, record_count, schema_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dataset) DO UPDATE SET
			status = excluded.status,
			last_synced_at = excluded.last_synced_at,
			record_count = excluded.record_count,
			schema_version = excluded.schema_version
	`, dataset, string(meta.Status), lastSynced, meta.RecordCount, domain.SchemaVersion)

	if err != nil {
		return fmt.Errorf("saving dataset meta: %w", err)
	}
	return nil
}

// scanRecord scans one record row via the given scan function.
func scanRecord(scan func(...any) error) (*domain.Record, error) {
	var rec domain.Record
	var kind string
	var raw sql.NullString

	if err := scan(&rec.ID, &kind, &rec.Title, &rec.OrganisationName, &rec.OrganisationID,
		&rec.ContactName, &rec.DonationsProhibited, &rec.Closed, &raw); err != nil {
		return nil, err
	}

	rec.Kind = domain.EntityKind(kind)
	if raw.Valid && raw.String != "" {
		rec.Raw = []byte(raw.String)
	}
	return &rec, nil
}
