package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

const uniqueViolation = "23505"

var rollColumns = []string{
	"project_id", "position", "roll_id", "emulsion", "length_ft",
	"status", "location", "magazine", "notes", "exposed_date",
}

// RollRepository wraps all SQL the inventory needs on postgres.
type RollRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Store = (*RollRepository)(nil)

// NewRollRepository constructs a repository.
func NewRollRepository(pool *pgxpool.Pool) *RollRepository {
	return &RollRepository{pool: pool, now: time.Now}
}

// Close releases the pool.
func (r *RollRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListProjects returns projects in creation order.
func (r *RollRepository) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, name, created_at FROM projects ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Project, error) {
		var p model.Project
		err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
		p.CreatedAt = p.CreatedAt.UTC()
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	return projects, nil
}

// CreateProject inserts an empty project.
func (r *RollRepository) CreateProject(ctx context.Context, name string) (model.Project, error) {
	p := model.Project{ID: uuid.NewString(), Name: name, CreatedAt: r.now().UTC()}
	_, err := r.pool.Exec(ctx, `INSERT INTO projects (id, name, created_at) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Project{}, storage.ErrProjectExists
		}
		return model.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// Load returns the project's rolls in saved order.
func (r *RollRepository) Load(ctx context.Context, project string) ([]model.Roll, error) {
	id, err := projectID(ctx, r.pool, project)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT roll_id, emulsion, length_ft, status, location, magazine, notes, exposed_date
		FROM rolls WHERE project_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select rolls: %w", err)
	}
	rolls, err := pgx.CollectRows(rows, scanRoll)
	if err != nil {
		return nil, fmt.Errorf("scan rolls: %w", err)
	}
	return rolls, nil
}

// Save replaces the project's rolls inside one transaction using COPY.
func (r *RollRepository) Save(ctx context.Context, project string, rolls []model.Roll) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		id, err := projectID(ctx, tx, project)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rolls WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("clear rolls: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"rolls"}, rollColumns, pgx.CopyFromRows(rollRows(id, rolls))); err != nil {
			return fmt.Errorf("copy rolls: %w", err)
		}
		return nil
	})
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func projectID(ctx context.Context, q rowQuerier, name string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.QueryRow(ctx, `SELECT id FROM projects WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgtype.UUID{}, storage.ErrProjectNotFound
	}
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("select project: %w", err)
	}
	return id, nil
}

func scanRoll(row pgx.CollectableRow) (model.Roll, error) {
	var (
		r       model.Roll
		status  string
		exposed *time.Time
	)
	if err := row.Scan(&r.RollID, &r.Emulsion, &r.LengthFt, &status, &r.Location, &r.Magazine, &r.Notes, &exposed); err != nil {
		return model.Roll{}, err
	}
	r.Status = model.Status(status)
	if exposed != nil {
		d := time.Date(exposed.Year(), exposed.Month(), exposed.Day(), 0, 0, 0, 0, time.UTC)
		r.ExposedDate = &d
	}
	return r, nil
}

// rollRows flattens rolls into COPY rows in rollColumns order.
func rollRows(projectID pgtype.UUID, rolls []model.Roll) [][]any {
	out := make([][]any, 0, len(rolls))
	for i, r := range rolls {
		var exposed any
		if r.ExposedDate != nil {
			exposed = *r.ExposedDate
		}
		out = append(out, []any{
			projectID, int32(i), r.RollID, r.Emulsion, r.LengthFt,
			string(r.Status), r.Location, r.Magazine, r.Notes, exposed,
		})
	}
	return out
}
