package s3storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

type memObjects struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memObjects) put(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[bucket+"/"+key]
	if !ok {
		return nil, ErrObjectMissing
	}
	return data, nil
}

func (m *memObjects) exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[bucket+"/"+key]
	return ok, nil
}

func (m *memObjects) list(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if rest, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(rest, prefix) {
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func newTestStorage() (*Storage, *memObjects) {
	objs := &memObjects{data: map[string][]byte{}}
	clock := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	return &Storage{
		objects:        objs,
		snapshotBucket: "ledger",
		manifestBucket: "manifests",
		now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}, objs
}

func TestSnapshotsImplementStore(t *testing.T) {
	ctx := context.Background()
	s, objs := newTestStorage()
	store := s.Snapshots()

	_, err := store.Load(ctx, "coburg")
	require.ErrorIs(t, err, storage.ErrProjectNotFound)

	for _, name := range []string{"coburg", "berlin"} {
		_, err := store.CreateProject(ctx, name)
		require.NoError(t, err)
	}
	_, err = store.CreateProject(ctx, "coburg")
	require.ErrorIs(t, err, storage.ErrProjectExists)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "coburg", projects[0].Name)
	assert.Equal(t, "berlin", projects[1].Name)

	empty, err := store.Load(ctx, "berlin")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	rolls := []model.Roll{
		{RollID: "A1_02", Emulsion: "5219 (500T)", LengthFt: 900, Status: model.StatusExposed},
		{RollID: "A1_02a", Emulsion: "5219 (500T)", LengthFt: 85, Status: model.StatusShortEnd, Location: "on set"},
	}
	require.NoError(t, store.Save(ctx, "coburg", rolls))
	loaded, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, rolls, loaded)

	raw := string(objs.data["ledger/projects/coburg/rolls.json"])
	assert.Contains(t, raw, `"length_ft":900`)

	require.ErrorIs(t, store.Save(ctx, "paris", rolls), storage.ErrProjectNotFound)
}

func TestManifestKeyAndMissingManifest(t *testing.T) {
	assert.Equal(t, "manifests/coburg/abc.xlsx", ManifestKey("coburg", "abc"))

	ctx := context.Background()
	s, objs := newTestStorage()
	_, err := s.PresignManifestURL(ctx, "coburg", "abc", time.Minute)
	require.ErrorIs(t, err, ErrObjectMissing)

	require.NoError(t, s.UploadManifest(ctx, "coburg", "abc", []byte("xlsx")))
	assert.Equal(t, []byte("xlsx"), objs.data["manifests/manifests/coburg/abc.xlsx"])
}
