// Package storage defines the persistence contract for project ledgers and an
// in-memory implementation of it.
package storage

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

var (
	// ErrProjectNotFound is returned when a project has never been created.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectExists is returned by CreateProject for a name already in use.
	ErrProjectExists = errors.New("project already exists")
)

// Store persists whole roll collections per project. Load returns rolls in
// the order they were saved; Save replaces the collection atomically.
type Store interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, name string) (model.Project, error)
	Load(ctx context.Context, project string) ([]model.Roll, error)
	Save(ctx context.Context, project string, rolls []model.Roll) error
}

// Closer is implemented by stores holding connections or file handles.
type Closer interface {
	Close() error
}

// CloneRolls deep-copies rolls so callers and stores never share dates.
func CloneRolls(rolls []model.Roll) []model.Roll {
	out := make([]model.Roll, len(rolls))
	for i, r := range rolls {
		if r.ExposedDate != nil {
			d := *r.ExposedDate
			r.ExposedDate = &d
		}
		out[i] = r
	}
	return out
}
