package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx, "coburg")
	require.ErrorIs(t, err, ErrProjectNotFound)
	require.ErrorIs(t, store.Save(ctx, "coburg", nil), ErrProjectNotFound)

	p, err := store.CreateProject(ctx, "coburg")
	require.NoError(t, err)
	assert.Equal(t, "coburg", p.Name)
	assert.NotEmpty(t, p.ID)

	_, err = store.CreateProject(ctx, "coburg")
	require.ErrorIs(t, err, ErrProjectExists)

	rolls, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	assert.Empty(t, rolls)

	day := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	in := []model.Roll{
		{RollID: "B", Emulsion: "5219 (500T)", LengthFt: 400, Status: model.StatusFresh, Location: "Set (Praxis)"},
		{RollID: "A", Emulsion: "5219 (500T)", LengthFt: 350, Status: model.StatusExposed, Location: "Set (Praxis)", ExposedDate: &day},
	}
	require.NoError(t, store.Save(ctx, "coburg", in))

	*in[1].ExposedDate = day.AddDate(0, 0, 1)
	out, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].RollID)
	assert.True(t, day.Equal(*out[1].ExposedDate), "store must not alias caller dates")
}

func TestMemoryStoreListProjectsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	for _, name := range []string{"zeta", "alpha", "coburg"} {
		_, err := store.CreateProject(ctx, name)
		require.NoError(t, err)
	}
	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "coburg"}, names)
}
