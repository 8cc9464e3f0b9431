// Package sqlitestore persists project ledgers in a local SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store implements storage.Store on SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// ListProjects returns projects in creation order.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM projects ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var (
			p       model.Project
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse project created_at: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject inserts an empty project.
func (s *Store) CreateProject(ctx context.Context, name string) (model.Project, error) {
	p := model.Project{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)",
			p.ID, p.Name, p.CreatedAt.Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return model.Project{}, storage.ErrProjectExists
		}
		return model.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// Load returns the project's rolls in saved order.
func (s *Store) Load(ctx context.Context, project string) ([]model.Roll, error) {
	id, err := s.projectID(ctx, s.db, project)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT roll_id, emulsion, length_ft, status, location, magazine, notes, exposed_date
		FROM rolls WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select rolls: %w", err)
	}
	defer rows.Close()

	rolls := []model.Roll{}
	for rows.Next() {
		var (
			r       model.Roll
			status  string
			exposed sql.NullString
		)
		if err := rows.Scan(&r.RollID, &r.Emulsion, &r.LengthFt, &status, &r.Location, &r.Magazine, &r.Notes, &exposed); err != nil {
			return nil, fmt.Errorf("scan roll: %w", err)
		}
		r.Status = model.Status(status)
		if exposed.Valid && exposed.String != "" {
			d, err := time.Parse(model.DateLayout, exposed.String)
			if err != nil {
				return nil, fmt.Errorf("parse exposed_date of %s: %w", r.RollID, err)
			}
			r.ExposedDate = &d
		}
		rolls = append(rolls, r)
	}
	return rolls, rows.Err()
}

// Save replaces the project's rolls in one transaction.
func (s *Store) Save(ctx context.Context, project string, rolls []model.Roll) error {
	return retryOnBusy(ctx, func() error {
		return s.save(ctx, project, rolls)
	})
}

func (s *Store) save(ctx context.Context, project string, rolls []model.Roll) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.projectID(ctx, tx, project)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM rolls WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("clear rolls: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rolls (project_id, position, roll_id, emulsion, length_ft, status, location, magazine, notes, exposed_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert roll: %w", err)
	}
	defer stmt.Close()

	for i, r := range rolls {
		var exposed any
		if r.ExposedDate != nil {
			exposed = r.ExposedDate.Format(model.DateLayout)
		}
		if _, err := stmt.ExecContext(ctx, id, i, r.RollID, r.Emulsion, r.LengthFt, string(r.Status),
			r.Location, r.Magazine, r.Notes, exposed); err != nil {
			return fmt.Errorf("insert roll %s: %w", r.RollID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) projectID(ctx context.Context, q queryer, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM projects WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrProjectNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select project: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
