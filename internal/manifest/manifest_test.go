package manifest

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

func TestBuildWritesRowsAndTotals(t *testing.T) {
	day := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	shipment := Shipment{
		ID:        "6f1c",
		Project:   "coburg",
		ShippedAt: time.Date(2026, 5, 15, 7, 0, 0, 0, time.UTC),
		Rolls: []model.Roll{
			{RollID: "A1_01", Emulsion: "5219 (500T)", LengthFt: 350, Status: model.StatusSentToLab, Magazine: "G1 (6887)", ExposedDate: &day},
			{RollID: "A1_02", Emulsion: "5219 (500T)", LengthFt: 900, Status: model.StatusSentToLab, Magazine: "G2 (7115)", ExposedDate: &day},
		},
	}
	assert.Equal(t, 1250.0, shipment.TotalFt())

	data, err := Build(shipment)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "coburg", rows[1][1])
	assert.Equal(t, []string{"Roll", "Emulsion", "Exposed ft", "Duration", "Magazine", "Exposed date", "Notes"}, rows[5])
	assert.Equal(t, "A1_01", rows[6][0])
	assert.Equal(t, "07:46 min", rows[6][3])
	assert.Equal(t, "2026-05-14", rows[6][5])
	assert.Equal(t, "Total", rows[8][0])
	assert.Equal(t, "2 rolls", rows[8][1])
	assert.Equal(t, "27:46 min", rows[8][3])

	total, err := f.GetCellValue(SheetName, "C9", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1250", total)
}

func TestBuildEmptyShipment(t *testing.T) {
	data, err := Build(Shipment{ID: "x", Project: "berlin"})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(SheetName, "D7")
	require.NoError(t, err)
	assert.Equal(t, "00:00 min", v)
}
