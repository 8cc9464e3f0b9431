package s3storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

const (
	projectsPrefix  = "projects/"
	projectObject   = "project.json"
	snapshotObject  = "rolls.json"
	jsonContentType = "application/json"
)

// snapshot is the JSON document written for each save.
type snapshot struct {
	Project string       `json:"project"`
	SavedAt time.Time    `json:"saved_at"`
	Rolls   []model.Roll `json:"rolls"`
}

// Snapshots implements storage.Store by writing one JSON snapshot per project
// to the snapshot bucket. A single PUT replaces the whole collection.
type Snapshots struct {
	*Storage
}

var _ storage.Store = Snapshots{}

// Snapshots exposes the bucket as a storage.Store.
func (s *Storage) Snapshots() Snapshots {
	return Snapshots{Storage: s}
}

func projectKey(name string) string  { return projectsPrefix + name + "/" + projectObject }
func snapshotKey(name string) string { return projectsPrefix + name + "/" + snapshotObject }

// ListProjects reads every project descriptor, ordered by creation time.
func (s Snapshots) ListProjects(ctx context.Context) ([]model.Project, error) {
	keys, err := s.objects.list(ctx, s.snapshotBucket, projectsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := []model.Project{}
	for _, key := range keys {
		if path.Base(key) != projectObject {
			continue
		}
		data, err := s.objects.get(ctx, s.snapshotBucket, key)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var p model.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

// CreateProject writes the descriptor and an empty snapshot.
func (s Snapshots) CreateProject(ctx context.Context, name string) (model.Project, error) {
	if strings.Contains(name, "/") {
		return model.Project{}, fmt.Errorf("project name %q contains '/'", name)
	}
	exists, err := s.objects.exists(ctx, s.snapshotBucket, projectKey(name))
	if err != nil {
		return model.Project{}, fmt.Errorf("stat project: %w", err)
	}
	if exists {
		return model.Project{}, storage.ErrProjectExists
	}
	p := model.Project{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	data, err := json.Marshal(p)
	if err != nil {
		return model.Project{}, fmt.Errorf("encode project: %w", err)
	}
	if err := s.putSnapshot(ctx, name, nil); err != nil {
		return model.Project{}, err
	}
	if err := s.objects.put(ctx, s.snapshotBucket, projectKey(name), data, jsonContentType); err != nil {
		return model.Project{}, fmt.Errorf("put project: %w", err)
	}
	return p, nil
}

// Load decodes the project's latest snapshot.
func (s Snapshots) Load(ctx context.Context, project string) ([]model.Roll, error) {
	if err := s.requireProject(ctx, project); err != nil {
		return nil, err
	}
	data, err := s.objects.get(ctx, s.snapshotBucket, snapshotKey(project))
	if errors.Is(err, ErrObjectMissing) {
		return []model.Roll{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Rolls == nil {
		snap.Rolls = []model.Roll{}
	}
	return snap.Rolls, nil
}

// Save overwrites the project's snapshot.
func (s Snapshots) Save(ctx context.Context, project string, rolls []model.Roll) error {
	if err := s.requireProject(ctx, project); err != nil {
		return err
	}
	return s.putSnapshot(ctx, project, rolls)
}

func (s Snapshots) requireProject(ctx context.Context, project string) error {
	ok, err := s.objects.exists(ctx, s.snapshotBucket, projectKey(project))
	if err != nil {
		return fmt.Errorf("stat project: %w", err)
	}
	if !ok {
		return storage.ErrProjectNotFound
	}
	return nil
}

func (s Snapshots) putSnapshot(ctx context.Context, project string, rolls []model.Roll) error {
	if rolls == nil {
		rolls = []model.Roll{}
	}
	data, err := json.Marshal(snapshot{Project: project, SavedAt: s.now().UTC(), Rolls: rolls})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.objects.put(ctx, s.snapshotBucket, snapshotKey(project), data, jsonContentType); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
