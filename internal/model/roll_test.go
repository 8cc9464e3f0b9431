package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
)

func TestIsOnSet(t *testing.T) {
	assert.True(t, IsOnSet("Set (Praxis)"))
	assert.True(t, IsOnSet("on set"))
	assert.True(t, IsOnSet("SET"))
	assert.False(t, IsOnSet("Cineplus"))
	assert.False(t, IsOnSet("Schweizsprinter"))
	assert.False(t, IsOnSet(""))
}

func TestValidate(t *testing.T) {
	good := Roll{RollID: "A1_01", Emulsion: "5219 (500T)", LengthFt: 400, Status: StatusFresh, Location: "on set"}
	require.NoError(t, Validate(good))

	zero := good
	zero.LengthFt = 0
	require.NoError(t, Validate(zero))

	cases := map[string]struct {
		mutate func(*Roll)
		field  string
	}{
		"empty id":       {func(r *Roll) { r.RollID = "  " }, "roll_id"},
		"negative feet":  {func(r *Roll) { r.LengthFt = -1 }, "length_ft"},
		"unknown status": {func(r *Roll) { r.Status = "Lost" }, "status"},
		"missing status": {func(r *Roll) { r.Status = "" }, "status"},
		"nan feet":       {func(r *Roll) { r.LengthFt = math.NaN() }, "length_ft"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := good
			tc.mutate(&r)
			err := Validate(r)
			require.Error(t, err)
			require.True(t, apperr.IsCode(err, apperr.CodeValidation))
			details, ok := apperr.As(err).Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]Status{
		"fresh":       StatusFresh,
		"Short End":   StatusShortEnd,
		"short_end":   StatusShortEnd,
		"EXPOSED":     StatusExposed,
		"sent-to-lab": StatusSentToLab,
	} {
		got, ok := ParseStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseStatus("developed")
	assert.False(t, ok)
}

func TestRollPatchApply(t *testing.T) {
	original := Roll{RollID: "TX004a", Emulsion: "5219 (500T)", LengthFt: 300, Status: StatusShortEnd, Location: "Set (Praxis)"}
	assert.True(t, RollPatch{}.Empty())
	assert.Equal(t, original, RollPatch{}.Apply(original))

	length := 250.0
	status := StatusSentToLab
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	patch := RollPatch{LengthFt: &length, Status: &status, ExposedDate: &day}
	updated := patch.Apply(original)

	assert.False(t, patch.Empty())
	assert.Equal(t, 250.0, updated.LengthFt)
	assert.Equal(t, StatusSentToLab, updated.Status)
	require.NotNil(t, updated.ExposedDate)
	assert.True(t, day.Equal(*updated.ExposedDate))
	assert.Equal(t, "TX004a", updated.RollID)
	assert.Equal(t, 300.0, original.LengthFt)
}

func TestNormalizeProjectName(t *testing.T) {
	name, err := NormalizeProjectName("  coburg ")
	require.NoError(t, err)
	assert.Equal(t, "coburg", name)

	for _, bad := range []string{"", "   ", "-lead", "a/b", "this-name-is-far-too-long-for-a-sheet"} {
		_, err := NormalizeProjectName(bad)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation), bad)
	}
}
