// Package manifest renders the lab manifest that travels with a shipment of
// exposed rolls.
package manifest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/rolltrack/internal/footage"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// SheetName is the worksheet holding the manifest rows.
const SheetName = "Manifest"

var headings = []any{"Roll", "Emulsion", "Exposed ft", "Duration", "Magazine", "Exposed date", "Notes"}

// Shipment is everything a manifest shows.
type Shipment struct {
	ID        string       `json:"shipment_id"`
	Project   string       `json:"project"`
	ShippedAt time.Time    `json:"shipped_at"`
	Rolls     []model.Roll `json:"rolls"`
}

// TotalFt sums the exposed footage of the shipment.
func (s Shipment) TotalFt() float64 {
	var total float64
	for _, r := range s.Rolls {
		total += r.LengthFt
	}
	return total
}

// Build renders the shipment as an xlsx workbook: a title block, one row per
// roll and a totals row.
func Build(s Shipment) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	set := func(cell string, v any) error {
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
		return nil
	}
	if err := set("A1", "Lab manifest"); err != nil {
		return nil, err
	}
	if err := set("A2", "Project"); err != nil {
		return nil, err
	}
	if err := set("B2", s.Project); err != nil {
		return nil, err
	}
	if err := set("A3", "Shipment"); err != nil {
		return nil, err
	}
	if err := set("B3", s.ID); err != nil {
		return nil, err
	}
	if err := set("A4", "Shipped"); err != nil {
		return nil, err
	}
	if err := set("B4", s.ShippedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	const headerRow = 6
	if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", headerRow), &headings); err != nil {
		return nil, fmt.Errorf("write headings: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("G%d", headerRow), bold); err != nil {
		return nil, err
	}

	row := headerRow + 1
	for _, r := range s.Rolls {
		exposed := ""
		if r.ExposedDate != nil {
			exposed = r.ExposedDate.Format(model.DateLayout)
		}
		values := []any{r.RollID, r.Emulsion, r.LengthFt, footage.Duration(r.LengthFt), r.Magazine, exposed, r.Notes}
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return nil, fmt.Errorf("write roll %s: %w", r.RollID, err)
		}
		row++
	}

	total := s.TotalFt()
	totals := []any{"Total", fmt.Sprintf("%d rolls", len(s.Rolls)), total, footage.Duration(total)}
	if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), &totals); err != nil {
		return nil, fmt.Errorf("write totals: %w", err)
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "A", "B", 16); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "G", "G", 40); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
