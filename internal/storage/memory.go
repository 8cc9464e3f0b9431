package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

type memoryProject struct {
	project model.Project
	rolls   []model.Roll
}

// MemoryStore keeps every project in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*memoryProject
	now      func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*memoryProject),
		now:      time.Now,
	}
}

// ListProjects returns projects sorted by creation time.
func (m *MemoryStore) ListProjects(_ context.Context) ([]model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p.project)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateProject registers an empty project.
func (m *MemoryStore) CreateProject(_ context.Context, name string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[name]; ok {
		return model.Project{}, ErrProjectExists
	}
	p := model.Project{ID: uuid.NewString(), Name: name, CreatedAt: m.now().UTC()}
	m.projects[name] = &memoryProject{project: p}
	return p, nil
}

// Load returns a copy of the project's rolls.
func (m *MemoryStore) Load(_ context.Context, project string) ([]model.Roll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[project]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return CloneRolls(p.rolls), nil
}

// Save replaces the project's rolls with a copy of rolls.
func (m *MemoryStore) Save(_ context.Context, project string, rolls []model.Roll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[project]
	if !ok {
		return ErrProjectNotFound
	}
	p.rolls = CloneRolls(rolls)
	return nil
}
