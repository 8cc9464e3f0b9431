package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/ledger"
	"github.com/dharsanguruparan/rolltrack/internal/manifest"
	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/seed"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

const seededRolls = 66

var shootDay = time.Date(2026, 5, 14, 18, 30, 0, 0, time.UTC)

// flakyStore fails Save while failSave is set.
type flakyStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failSave bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = v
}

func (f *flakyStore) Save(ctx context.Context, project string, rolls []model.Roll) error {
	f.mu.Lock()
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, project, rolls)
}

type fakeEnqueuer struct {
	mu        sync.Mutex
	shipments []manifest.Shipment
	err       error
}

func (f *fakeEnqueuer) EnqueueManifest(_ context.Context, s manifest.Shipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.shipments = append(f.shipments, s)
	return nil
}

func newTestService(t *testing.T, store storage.Store, opts ...func(*Options)) *Service {
	t.Helper()
	o := Options{
		Store:          store,
		Backend:        "memory",
		Seed:           seed.NewProvider(seed.Default(), "coburg"),
		DefaultWasteFt: 15,
		Clock:          func() time.Time { return shootDay },
		NewID:          func() string { return "shipment-1" },
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := New(o)
	require.NoError(t, err)
	return svc
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	_, err = New(Options{Store: storage.NewMemoryStore()})
	require.Error(t, err)
}

func TestCreateProjectSeedsOnlyCanonical(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore())

	_, err := svc.CreateProject(ctx, " coburg ")
	require.NoError(t, err)
	_, err = svc.CreateProject(ctx, "berlin")
	require.NoError(t, err)

	coburg, err := svc.Rolls(ctx, "coburg")
	require.NoError(t, err)
	assert.Len(t, coburg, seededRolls)

	berlin, err := svc.Rolls(ctx, "berlin")
	require.NoError(t, err)
	assert.Empty(t, berlin)

	_, err = svc.CreateProject(ctx, "coburg")
	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateID))
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	_, err = svc.CreateProject(ctx, "a/b")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	projects, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	_, err = svc.Rolls(ctx, "paris")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestUnloadAppliesDefaultWasteAndPersists(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(t, store)
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	res, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_1000_01", ExposedFt: 900, Magazine: "G2 (7115)"})
	require.NoError(t, err)
	require.NotNil(t, res.ShortEnd)
	assert.Equal(t, "SET_500T_1000_01a", res.ShortEnd.RollID)
	assert.Equal(t, 85.0, res.ShortEnd.LengthFt)
	assert.Equal(t, 85.0, res.RemainderFt)

	stored, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Len(t, stored, seededRolls+1)

	r, err := svc.Roll(ctx, "coburg", "SET_500T_1000_01")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExposed, r.Status)
	assert.Equal(t, 900.0, r.LengthFt)
	require.NotNil(t, r.ExposedDate)
	assert.Equal(t, "2026-05-14", r.ExposedDate.Format(model.DateLayout))

	zero := 0.0
	res, err = svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_400_01", ExposedFt: 360, WasteFt: &zero})
	require.NoError(t, err)
	assert.Nil(t, res.ShortEnd, "remainder of exactly 40 is waste")

	trail := svc.Activity("coburg")
	require.Len(t, trail, 3)
	assert.Equal(t, ledger.ActionUnload, trail[0].Action)
	assert.Equal(t, ledger.ActionShortEnd, trail[1].Action)
	assert.Equal(t, "SET_500T_1000_01a", trail[1].RollID)
	assert.True(t, shootDay.Equal(trail[0].Time))
}

func TestUnloadRejectionsLeaveLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: "CP_500T_400_01", ExposedFt: 100})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "not on set")

	_, err = svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_400_01", ExposedFt: 390})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "exposed + default waste exceeds length")

	_, err = svc.Unload(ctx, "coburg", UnloadInput{RollID: "NOPE", ExposedFt: 1})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	rolls, err := svc.Rolls(ctx, "coburg", model.StatusExposed)
	require.NoError(t, err)
	assert.Empty(t, rolls)
	assert.Empty(t, svc.Activity("coburg"))
}

func TestRollIDsAreUniqueAcrossProjects(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))
	require.NoError(t, svc.EnsureProject(ctx, "berlin"))

	_, err := svc.Create(ctx, "berlin", model.Roll{RollID: "TX004a", LengthFt: 300, Status: model.StatusShortEnd, Location: "on set"})
	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateID))

	_, err = svc.Create(ctx, "berlin", model.Roll{RollID: "TX004", LengthFt: 1000, Status: model.StatusFresh, Location: "on set"})
	require.NoError(t, err)

	res, err := svc.Unload(ctx, "berlin", UnloadInput{RollID: "TX004", ExposedFt: 500})
	require.NoError(t, err)
	require.NotNil(t, res.ShortEnd)
	assert.Equal(t, "TX004b", res.ShortEnd.RollID, "TX004a belongs to coburg")
}

func TestFailedSaveIsRetainedAndFlushed(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	svc := newTestService(t, store)
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	store.setFail(true)
	_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_400_01", ExposedFt: 350})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeStorage))
	assert.True(t, svc.Pending("coburg"))

	r, err := svc.Roll(ctx, "coburg", "SET_500T_400_01")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExposed, r.Status, "in-memory state survives the failed save")

	stored, err := store.MemoryStore.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFresh, findRoll(t, stored, "SET_500T_400_01").Status)

	require.Error(t, svc.Flush(ctx, "coburg"))
	assert.True(t, svc.Pending("coburg"))

	store.setFail(false)
	require.NoError(t, svc.Flush(ctx, "coburg"))
	assert.False(t, svc.Pending("coburg"))
	require.NoError(t, svc.Flush(ctx, "coburg"))

	stored, err = store.MemoryStore.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExposed, findRoll(t, stored, "SET_500T_400_01").Status)
}

func findRoll(t *testing.T, rolls []model.Roll, id string) model.Roll {
	t.Helper()
	for _, r := range rolls {
		if r.RollID == id {
			return r
		}
	}
	require.Failf(t, "roll missing", "%s not in collection", id)
	return model.Roll{}
}

func TestShipEnqueuesManifest(t *testing.T) {
	ctx := context.Background()
	queue := &fakeEnqueuer{}
	svc := newTestService(t, storage.NewMemoryStore(), func(o *Options) { o.Manifests = queue })
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	for _, id := range []string{"SET_500T_400_01", "SET_500T_400_02"} {
		_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: id, ExposedFt: 350})
		require.NoError(t, err)
	}

	out, err := svc.Ship(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count())
	assert.Equal(t, 700.0, out.TotalFt)
	assert.Equal(t, "shipment-1", out.ShipmentID)
	assert.True(t, out.ManifestQueued)
	require.Len(t, queue.shipments, 1)
	assert.Equal(t, "coburg", queue.shipments[0].Project)
	assert.Len(t, queue.shipments[0].Rolls, 2)

	again, err := svc.Ship(ctx, "coburg")
	require.NoError(t, err)
	assert.Zero(t, again.Count())
	assert.Equal(t, "Nothing to ship.", again.Summary)
	assert.Empty(t, again.ShipmentID)
	assert.Len(t, queue.shipments, 1)

	lab, err := svc.Rolls(ctx, "coburg", model.StatusSentToLab)
	require.NoError(t, err)
	assert.Len(t, lab, 2)
}

func TestShipSurvivesQueueFailure(t *testing.T) {
	ctx := context.Background()
	queue := &fakeEnqueuer{err: errors.New("redis down")}
	svc := newTestService(t, storage.NewMemoryStore(), func(o *Options) { o.Manifests = queue })
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))
	_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_400_01", ExposedFt: 350})
	require.NoError(t, err)

	out, err := svc.Ship(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count())
	assert.False(t, out.ManifestQueued)
}

func TestEditAndReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))
	require.NoError(t, svc.EnsureProject(ctx, "berlin"))

	status := model.StatusSentToLab
	updated, err := svc.Edit(ctx, "coburg", "TX004a", model.RollPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSentToLab, updated.Status)

	_, err = svc.Edit(ctx, "coburg", "NOPE", model.RollPatch{Status: &status})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
	require.Len(t, svc.Activity("coburg"), 1)

	rolls, err := svc.Reset(ctx, "coburg")
	require.NoError(t, err)
	assert.Len(t, rolls, seededRolls)
	r, err := svc.Roll(ctx, "coburg", "TX004a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusShortEnd, r.Status)

	trail := svc.Activity("coburg")
	require.Len(t, trail, 1)
	assert.Equal(t, ledger.ActionReset, trail[0].Action)

	_, err = svc.Create(ctx, "berlin", model.Roll{RollID: "B_01", LengthFt: 400, Status: model.StatusFresh})
	require.NoError(t, err)
	berlin, err := svc.Reset(ctx, "berlin")
	require.NoError(t, err)
	assert.Empty(t, berlin)

	_, err = svc.Reset(ctx, "paris")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore())
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	candidates, err := svc.Candidates(ctx, "coburg")
	require.NoError(t, err)
	assert.Len(t, candidates, 8+4+1+1+5)

	dash, err := svc.Dashboard(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, 8*400.0+4*1000+400+1000+375+300+350+70+280, dash.AvailableFt)
	require.Len(t, dash.Emulsions, 2)
	assert.Equal(t, "5219 (500T)", dash.Emulsions[0].Emulsion)
}

func TestTrailIsBounded(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.NewMemoryStore(), func(o *Options) { o.TrailLimit = 3 })
	require.NoError(t, svc.EnsureProject(ctx, "berlin"))
	for i := 1; i <= 5; i++ {
		_, err := svc.Create(ctx, "berlin", model.Roll{RollID: fmt.Sprintf("B_%02d", i), LengthFt: 400, Status: model.StatusFresh})
		require.NoError(t, err)
	}
	trail := svc.Activity("berlin")
	require.Len(t, trail, 3)
	assert.Equal(t, "B_03", trail[0].RollID)
	assert.Equal(t, "B_05", trail[2].RollID)
}

func TestConcurrentUnloadsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(t, store)
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: id, ExposedFt: 900})
			errs <- err
		}(fmt.Sprintf("SET_500T_1000_%02d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Len(t, stored, seededRolls+4)
	seen := map[string]bool{}
	for _, r := range stored {
		assert.False(t, seen[r.RollID], "duplicate id %s", r.RollID)
		seen[r.RollID] = true
	}
}

// slowStore holds every Save open for delay so concurrent callers overlap.
type slowStore struct {
	*storage.MemoryStore
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, project string, rolls []model.Roll) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Save(ctx, project, rolls)
}

func TestConcurrentUnloadsAcrossProjectsGetDistinctShortEnds(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{MemoryStore: storage.NewMemoryStore(), delay: 30 * time.Millisecond}
	svc := newTestService(t, store)
	for project, id := range map[string]string{"p1": "TX004a", "p2": "TX004b"} {
		require.NoError(t, svc.EnsureProject(ctx, project))
		_, err := svc.Create(ctx, project, model.Roll{RollID: id, Emulsion: "5219 (500T)", LengthFt: 300, Status: model.StatusShortEnd, Location: "on set"})
		require.NoError(t, err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		shorts = map[string]string{}
	)
	for project, id := range map[string]string{"p1": "TX004a", "p2": "TX004b"} {
		wg.Add(1)
		go func(project, id string) {
			defer wg.Done()
			res, err := svc.Unload(ctx, project, UnloadInput{RollID: id, ExposedFt: 100})
			assert.NoError(t, err)
			if res.ShortEnd != nil {
				mu.Lock()
				shorts[project] = res.ShortEnd.RollID
				mu.Unlock()
			}
		}(project, id)
	}
	wg.Wait()

	require.Len(t, shorts, 2)
	assert.NotEqual(t, shorts["p1"], shorts["p2"], "short ends: p1=%s p2=%s", shorts["p1"], shorts["p2"])
	assert.ElementsMatch(t, []string{"TX004c", "TX004d"}, []string{shorts["p1"], shorts["p2"]})
}

func TestSeedingRejectsIDsHeldByAnotherProject(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(t, store)

	require.NoError(t, svc.EnsureProject(ctx, "other"))
	_, err := svc.Create(ctx, "other", model.Roll{RollID: "TX004a", LengthFt: 300, Status: model.StatusShortEnd, Location: "on set"})
	require.NoError(t, err)

	_, err = svc.CreateProject(ctx, "coburg")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateID))
	assert.Equal(t, map[string]string{"roll_id": "TX004a"}, apperr.As(err).Details())
	require.Error(t, svc.EnsureProject(ctx, "coburg"), "an id clash is not an existing project")

	_, err = svc.Rolls(ctx, "coburg")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), "nothing is created on a clash")
}

func TestResetRejectsIDsHeldByAnotherProject(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(t, store)
	require.NoError(t, svc.EnsureProject(ctx, "coburg"))
	require.NoError(t, svc.EnsureProject(ctx, "berlin"))

	_, err := svc.Unload(ctx, "coburg", UnloadInput{RollID: "SET_500T_400_01", ExposedFt: 350})
	require.NoError(t, err)
	// An id clash that predates the shared id lock, written straight to the store.
	require.NoError(t, store.Save(ctx, "berlin", []model.Roll{{RollID: "TX004a", LengthFt: 300, Status: model.StatusShortEnd, Location: "on set"}}))

	_, err = svc.Reset(ctx, "coburg")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateID))

	r, err := svc.Roll(ctx, "coburg", "SET_500T_400_01")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExposed, r.Status, "a rejected reset leaves the collection alone")
	assert.NotEmpty(t, svc.Activity("coburg"))
}
