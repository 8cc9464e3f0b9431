// Package inventory runs ledger operations against a storage backend. Each
// mutation is a critical section per project: lock, load, apply, save.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/ledger"
	"github.com/dharsanguruparan/rolltrack/internal/lock"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
	"github.com/dharsanguruparan/rolltrack/internal/manifest"
	"github.com/dharsanguruparan/rolltrack/internal/metrics"
	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/seed"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

const defaultTrailLimit = 500

// idsLockKey cannot collide with a project lock: project names start with a
// letter or digit.
const idsLockKey = ":ids"

// ManifestEnqueuer schedules the lab manifest for a shipment.
type ManifestEnqueuer interface {
	EnqueueManifest(ctx context.Context, shipment manifest.Shipment) error
}

// Options wires a Service. Store and Seed are required.
type Options struct {
	Store          storage.Store
	Backend        string
	Locker         lock.Locker
	Seed           *seed.Provider
	Logger         *logger.Logger
	Metrics        *metrics.InventoryMetrics
	Manifests      ManifestEnqueuer
	DefaultWasteFt float64
	TrailLimit     int
	Clock          func() time.Time
	NewID          func() string
}

// Service is safe for concurrent use.
type Service struct {
	store        storage.Store
	backend      string
	locker       lock.Locker
	seed         *seed.Provider
	log          *logger.Logger
	metrics      *metrics.InventoryMetrics
	manifests    ManifestEnqueuer
	defaultWaste float64
	trailLimit   int
	now          func() time.Time
	newID        func() string

	mu      sync.Mutex
	pending map[string][]model.Roll
	trails  map[string][]Event
}

// New builds a Service, filling optional collaborators with defaults.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("inventory: store is required")
	}
	if opts.Seed == nil {
		return nil, errors.New("inventory: seed provider is required")
	}
	s := &Service{
		store:        opts.Store,
		backend:      opts.Backend,
		locker:       opts.Locker,
		seed:         opts.Seed,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		manifests:    opts.Manifests,
		defaultWaste: opts.DefaultWasteFt,
		trailLimit:   opts.TrailLimit,
		now:          opts.Clock,
		newID:        opts.NewID,
		pending:      make(map[string][]model.Roll),
		trails:       make(map[string][]Event),
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.trailLimit <= 0 {
		s.trailLimit = defaultTrailLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newShipmentID
	}
	return s, nil
}

// CanonicalProject is the project that is seeded with opening stock.
func (s *Service) CanonicalProject() string {
	return s.seed.CanonicalProject()
}

// ListProjects returns every project known to the store.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "list projects")
	}
	return projects, nil
}

// CreateProject registers a project. The canonical project starts with the
// seed inventory; any other project starts empty. Seeding fails with
// DUPLICATE_ID when another project already uses one of the seed ids.
func (s *Service) CreateProject(ctx context.Context, name string) (project model.Project, err error) {
	defer func() { s.metrics.ObserveOperation("create_project", err) }()
	return s.createProject(ctx, name)
}

// EnsureProject creates the project if it does not exist yet.
func (s *Service) EnsureProject(ctx context.Context, name string) error {
	_, err := s.createProject(ctx, name)
	if errors.Is(err, storage.ErrProjectExists) {
		return nil
	}
	return err
}

func (s *Service) createProject(ctx context.Context, name string) (model.Project, error) {
	name, err := model.NormalizeProjectName(name)
	if err != nil {
		return model.Project{}, err
	}
	release, err := s.lockFor(ctx, name, true)
	if err != nil {
		return model.Project{}, err
	}
	defer release()

	_, err = s.store.Load(ctx, name)
	switch {
	case err == nil:
		return model.Project{}, projectExists(name)
	case !errors.Is(err, storage.ErrProjectNotFound):
		return model.Project{}, apperr.Wrap(apperr.CodeStorage, err, "load ledger")
	}

	rolls := s.seed.Seed(name)
	if err := s.checkReserved(ctx, name, rolls); err != nil {
		return model.Project{}, err
	}

	project, err := s.store.CreateProject(ctx, name)
	if errors.Is(err, storage.ErrProjectExists) {
		return model.Project{}, projectExists(name)
	}
	if err != nil {
		return model.Project{}, apperr.Wrap(apperr.CodeStorage, err, "create project")
	}
	ctx = s.log.WithProject(ctx, name)

	if len(rolls) > 0 {
		if err := s.save(ctx, name, rolls); err != nil {
			return project, err
		}
	}
	s.log.Info(ctx, fmt.Sprintf("project created with %d rolls", len(rolls)))
	return project, nil
}

func projectExists(name string) error {
	return apperr.Wrap(apperr.CodeDuplicateID, storage.ErrProjectExists, fmt.Sprintf("project %q already exists", name))
}

// Ledger returns the current ledger of a project, including changes that are
// not yet saved.
func (s *Service) Ledger(ctx context.Context, project string) (ledger.Ledger, error) {
	return s.load(ctx, project)
}

// Rolls lists a project's rolls, optionally restricted to statuses.
func (s *Service) Rolls(ctx context.Context, project string, statuses ...model.Status) ([]model.Roll, error) {
	l, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return l.Rolls(), nil
	}
	return l.Filter(statuses...), nil
}

// Roll returns one roll by exact id.
func (s *Service) Roll(ctx context.Context, project, rollID string) (model.Roll, error) {
	l, err := s.load(ctx, project)
	if err != nil {
		return model.Roll{}, err
	}
	r, ok := l.Get(rollID)
	if !ok {
		return model.Roll{}, apperr.Newf(apperr.CodeNotFound, "roll %q not found", rollID)
	}
	return r, nil
}

// Candidates lists the rolls that can be unloaded.
func (s *Service) Candidates(ctx context.Context, project string) ([]model.Roll, error) {
	l, err := s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	return l.Candidates(), nil
}

// Dashboard summarises a project's set stock.
func (s *Service) Dashboard(ctx context.Context, project string) (ledger.Dashboard, error) {
	l, err := s.load(ctx, project)
	if err != nil {
		return ledger.Dashboard{}, err
	}
	return l.Dashboard(), nil
}

// Pending reports whether the project holds changes that failed to save.
func (s *Service) Pending(project string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[project]
	return ok
}

// Flush retries saving changes retained after a failed save. It is a no-op
// when nothing is pending.
func (s *Service) Flush(ctx context.Context, project string) (err error) {
	defer func() { s.metrics.ObserveOperation("flush", err) }()
	release, err := s.locker.Acquire(ctx, project)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	rolls, ok := s.pending[project]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	ctx = s.log.WithProject(ctx, project)
	if err := s.save(ctx, project, rolls); err != nil {
		return err
	}
	s.log.Info(ctx, "pending changes flushed")
	return nil
}

// load returns the retained unsaved state if there is one, otherwise the
// stored collection. Ids used by other projects are reserved.
func (s *Service) load(ctx context.Context, project string) (ledger.Ledger, error) {
	rolls, err := s.loadRolls(ctx, project)
	if err != nil {
		return ledger.Ledger{}, err
	}
	reserved, err := s.reservedIDs(ctx, project)
	if err != nil {
		return ledger.Ledger{}, err
	}
	return ledger.New(rolls, ledger.WithReservedIDs(reserved...)), nil
}

func (s *Service) loadRolls(ctx context.Context, project string) ([]model.Roll, error) {
	s.mu.Lock()
	if rolls, ok := s.pending[project]; ok {
		s.mu.Unlock()
		return storage.CloneRolls(rolls), nil
	}
	s.mu.Unlock()

	rolls, err := s.store.Load(ctx, project)
	if errors.Is(err, storage.ErrProjectNotFound) {
		return nil, apperr.Newf(apperr.CodeNotFound, "project %q not found", project)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "load ledger")
	}
	return rolls, nil
}

func (s *Service) reservedIDs(ctx context.Context, project string) ([]string, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, err, "list projects")
	}
	var ids []string
	for _, p := range projects {
		if p.Name == project {
			continue
		}
		rolls, err := s.loadRolls(ctx, p.Name)
		if apperr.IsCode(err, apperr.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, r := range rolls {
			ids = append(ids, r.RollID)
		}
	}
	return ids, nil
}

// checkReserved fails with DUPLICATE_ID when any of rolls carries an id that
// another project already holds.
func (s *Service) checkReserved(ctx context.Context, project string, rolls []model.Roll) error {
	if len(rolls) == 0 {
		return nil
	}
	reserved, err := s.reservedIDs(ctx, project)
	if err != nil {
		return err
	}
	taken := make(map[string]struct{}, len(reserved))
	for _, id := range reserved {
		taken[id] = struct{}{}
	}
	var clashes []string
	for _, r := range rolls {
		if _, ok := taken[r.RollID]; ok {
			clashes = append(clashes, r.RollID)
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	return apperr.Newf(apperr.CodeDuplicateID, "%d seed rolls are already used by another project", len(clashes)).
		WithDetails(map[string]string{"roll_id": strings.Join(clashes, ", ")})
}

// lockFor takes the project lock. Mutations that can introduce roll ids first
// take the id lock shared by every project, so allocation sees a stable id set.
func (s *Service) lockFor(ctx context.Context, project string, addsIDs bool) (func(), error) {
	releaseIDs := func() {}
	if addsIDs {
		r, err := s.locker.Acquire(ctx, idsLockKey)
		if err != nil {
			return nil, err
		}
		releaseIDs = r
	}
	release, err := s.locker.Acquire(ctx, project)
	if err != nil {
		releaseIDs()
		return nil, err
	}
	return func() {
		release()
		releaseIDs()
	}, nil
}

// save persists rolls. On failure the rolls are retained as pending so the
// next read sees them and Flush can retry.
func (s *Service) save(ctx context.Context, project string, rolls []model.Roll) error {
	start := s.now()
	err := s.store.Save(ctx, project, rolls)
	s.metrics.ObserveSave(s.backend, s.now().Sub(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.pending[project] = storage.CloneRolls(rolls)
		s.log.Error(ctx, "save failed; changes kept in memory", err)
		return apperr.Wrap(apperr.CodeStorage, err, "save ledger")
	}
	delete(s.pending, project)
	return nil
}

// mutate runs fn inside the project's critical section and saves its result.
// fn's events are recorded even when the save fails, since the new state is
// retained.
func (s *Service) mutate(ctx context.Context, project string, addsIDs bool, fn func(ledger.Ledger) (ledger.Ledger, []ledger.Event, error)) error {
	release, err := s.lockFor(ctx, project, addsIDs)
	if err != nil {
		return err
	}
	defer release()

	current, err := s.load(ctx, project)
	if err != nil {
		return err
	}
	next, events, err := fn(current)
	if err != nil {
		return err
	}
	saveErr := s.save(ctx, project, next.Rolls())
	s.record(project, events)
	return saveErr
}
