package sheetstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rolltrack.xlsx")
	store, err := Open(path)
	require.NoError(t, err)

	_, err = store.Load(ctx, "coburg")
	require.ErrorIs(t, err, storage.ErrProjectNotFound)

	p, err := store.CreateProject(ctx, "coburg")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	_, err = store.CreateProject(ctx, "Coburg")
	require.ErrorIs(t, err, storage.ErrProjectExists)

	day := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	rolls := []model.Roll{
		{RollID: "A1_02", Emulsion: "5219 (500T)", LengthFt: 900, Status: model.StatusExposed, Location: "on set", Magazine: "G2 (7115)", Notes: "Mag: G2 (7115)", ExposedDate: &day},
		{RollID: "A1_02a", Emulsion: "5219 (500T)", LengthFt: 85.5, Status: model.StatusShortEnd, Location: "on set", Notes: "Short end from A1_02"},
	}
	require.NoError(t, store.Save(ctx, "coburg", rolls))

	reopened, err := Open(path)
	require.NoError(t, err)
	loaded, err := reopened.Load(ctx, "coburg")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, rolls[0].RollID, loaded[0].RollID)
	assert.Equal(t, 900.0, loaded[0].LengthFt)
	assert.Equal(t, model.StatusExposed, loaded[0].Status)
	require.NotNil(t, loaded[0].ExposedDate)
	assert.True(t, day.Equal(*loaded[0].ExposedDate))
	assert.Equal(t, 85.5, loaded[1].LengthFt)
	assert.Nil(t, loaded[1].ExposedDate)

	projects, err := reopened.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)
}

func TestLengthIsStoredAsNumber(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rolltrack.xlsx")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.CreateProject(ctx, "coburg")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "coburg", []model.Roll{
		{RollID: "A1_01", LengthFt: 400, Status: model.StatusFresh},
	}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	cellType, err := f.GetCellType("coburg", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)
}

func TestSaveShrinksSheet(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "rolltrack.xlsx"))
	require.NoError(t, err)
	_, err = store.CreateProject(ctx, "coburg")
	require.NoError(t, err)

	three := []model.Roll{
		{RollID: "A", LengthFt: 1, Status: model.StatusFresh},
		{RollID: "B", LengthFt: 2, Status: model.StatusFresh},
		{RollID: "C", LengthFt: 3, Status: model.StatusFresh},
	}
	require.NoError(t, store.Save(ctx, "coburg", three))
	require.NoError(t, store.Save(ctx, "coburg", three[:1]))

	loaded, err := store.Load(ctx, "coburg")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "A", loaded[0].RollID)
}

func TestParseRollRejectsTextLength(t *testing.T) {
	_, err := parseRoll([]string{"A1_01", "5219", "four hundred", "Fresh"})
	require.Error(t, err)

	r, err := parseRoll([]string{"A1_01", "5219", "400", "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, 400.0, r.LengthFt)
	assert.Empty(t, r.Location)
}
