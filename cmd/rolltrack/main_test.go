package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

func setupCLIEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ROLLTRACK_STORAGE", "sqlite")
	t.Setenv("ROLLTRACK_SQLITE_PATH", filepath.Join(dir, "rolltrack.db"))
	t.Setenv("ROLLTRACK_LOCK", "file")
	t.Setenv("ROLLTRACK_LOCK_DIR", dir)
	t.Setenv("ROLLTRACK_SEED_PROJECT", "coburg")
	t.Setenv("ROLLTRACK_SEED_FILE", "")
	t.Setenv("ROLLTRACK_REDIS_ADDR", "")
	t.Setenv("ROLLTRACK_S3_ENDPOINT", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestListShowsAvailableRolls(t *testing.T) {
	setupCLIEnv(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SET_500T_1000_01")
	assert.Contains(t, out, "TX004a")
	assert.Contains(t, out, "66 rolls")
}

func TestUnloadPersistsAcrossInvocations(t *testing.T) {
	setupCLIEnv(t)

	out, err := run(t, "unload", "SET_500T_1000_01", "--exposed", "900", "--magazine", "G2 (7115)")
	require.NoError(t, err)
	assert.Contains(t, out, "SET_500T_1000_01a")
	assert.Contains(t, out, "short_end")

	out, err = run(t, "list", "--status", "exposed", "--json")
	require.NoError(t, err)
	var rolls []model.Roll
	require.NoError(t, json.Unmarshal([]byte(out), &rolls))
	require.Len(t, rolls, 1)
	assert.Equal(t, "SET_500T_1000_01", rolls[0].RollID)
	assert.Equal(t, 900.0, rolls[0].LengthFt)
	assert.Equal(t, "G2 (7115)", rolls[0].Magazine)

	out, err = run(t, "ship")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rolls sent to lab")
	assert.Contains(t, out, "Shipment ")

	out, err = run(t, "ship")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to ship.")
}

func TestUnloadRejections(t *testing.T) {
	setupCLIEnv(t)

	_, err := run(t, "unload", "SET_500T_400_01")
	require.Error(t, err)

	_, err = run(t, "unload", "CP_500T_400_01", "--exposed", "100")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Contains(t, describeError(err), "roll_id must be an on-set Fresh or Short End roll")

	_, err = run(t, "unload", "NOPE", "--exposed", "1")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestCreateEditAndReset(t *testing.T) {
	setupCLIEnv(t)

	_, err := run(t, "create", "--id", "TX900", "--emulsion", "5207 (250D)", "--length", "400", "--location", "on set")
	require.NoError(t, err)

	_, err = run(t, "create", "--id", "TX900", "--length", "400")
	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateID))

	_, err = run(t, "edit", "TX900")
	require.Error(t, err)

	_, err = run(t, "edit", "TX900", "--status", "sent to lab", "--exposed-date", "2026-05-14")
	require.NoError(t, err)

	out, err := run(t, "list", "--all", "--json")
	require.NoError(t, err)
	var rolls []model.Roll
	require.NoError(t, json.Unmarshal([]byte(out), &rolls))
	require.Len(t, rolls, 67)
	last := rolls[len(rolls)-1]
	assert.Equal(t, model.StatusSentToLab, last.Status)
	require.NotNil(t, last.ExposedDate)

	_, err = run(t, "reset")
	require.Error(t, err)

	out, err = run(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "66 rolls")
}

func TestProjectsAndDashboard(t *testing.T) {
	setupCLIEnv(t)

	out, err := run(t, "projects", "create", "berlin")
	require.NoError(t, err)
	assert.Contains(t, out, "Project berlin created.")

	out, err = run(t, "list", "-p", "berlin")
	require.NoError(t, err)
	assert.Contains(t, out, "No rolls.")

	out, err = run(t, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "coburg")
	assert.Contains(t, out, "berlin")

	out, err = run(t, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Available on set:")
}
