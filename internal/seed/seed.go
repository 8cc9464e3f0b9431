// Package seed produces the canonical starting inventory of a project from a
// table of stock batches and literal short ends.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

//go:embed default_seed.toml
var defaultSeed []byte

// Batch expands into Count fresh rolls with ids Prefix_01 .. Prefix_NN.
type Batch struct {
	Prefix   string  `toml:"prefix"`
	Count    int     `toml:"count"`
	Emulsion string  `toml:"emulsion"`
	LengthFt float64 `toml:"length_ft"`
	Location string  `toml:"location"`
	Note     string  `toml:"note"`
}

// ShortEnd is a pre-existing partial roll listed literally.
type ShortEnd struct {
	RollID   string  `toml:"roll_id"`
	Emulsion string  `toml:"emulsion"`
	LengthFt float64 `toml:"length_ft"`
	Location string  `toml:"location"`
	Note     string  `toml:"note"`
}

// Table lists the batches and short ends a project starts with.
type Table struct {
	Batches   []Batch    `toml:"batch"`
	ShortEnds []ShortEnd `toml:"short_end"`
}

// Default returns the embedded opening stock table.
func Default() Table {
	table, err := Parse(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("embedded seed table: %v", err))
	}
	return table
}

// Parse decodes and validates a TOML seed table.
func Parse(data []byte) (Table, error) {
	var table Table
	if err := toml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("decode seed table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// LoadFile reads a seed table from path. An empty path yields the default table.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read seed table: %w", err)
	}
	return Parse(data)
}

// Validate checks that the table expands into valid records with unique ids.
func (t Table) Validate() error {
	var errs []error
	for i, b := range t.Batches {
		if b.Prefix == "" {
			errs = append(errs, fmt.Errorf("batch %d: prefix is required", i))
		}
		if b.Count <= 0 {
			errs = append(errs, fmt.Errorf("batch %q: count must be positive", b.Prefix))
		}
	}
	seen := make(map[string]struct{})
	for _, r := range t.Rolls() {
		if err := model.Validate(r); err != nil {
			errs = append(errs, fmt.Errorf("roll %q: %w", r.RollID, err))
		}
		if _, dup := seen[r.RollID]; dup {
			errs = append(errs, fmt.Errorf("roll %q: duplicate id", r.RollID))
		}
		seen[r.RollID] = struct{}{}
	}
	return errors.Join(errs...)
}

// Rolls expands the table: batches first in table order, then the short ends.
// The output depends only on the table.
func (t Table) Rolls() []model.Roll {
	rolls := make([]model.Roll, 0, t.size())
	for _, b := range t.Batches {
		for i := 1; i <= b.Count; i++ {
			rolls = append(rolls, model.Roll{
				RollID:   fmt.Sprintf("%s_%02d", b.Prefix, i),
				Emulsion: b.Emulsion,
				LengthFt: b.LengthFt,
				Status:   model.StatusFresh,
				Location: b.Location,
				Notes:    b.Note,
			})
		}
	}
	for _, s := range t.ShortEnds {
		rolls = append(rolls, model.Roll{
			RollID:   s.RollID,
			Emulsion: s.Emulsion,
			LengthFt: s.LengthFt,
			Status:   model.StatusShortEnd,
			Location: s.Location,
			Notes:    s.Note,
		})
	}
	return rolls
}

func (t Table) size() int {
	n := len(t.ShortEnds)
	for _, b := range t.Batches {
		if b.Count > 0 {
			n += b.Count
		}
	}
	return n
}

// Provider hands out seed collections for project bootstrap and reset.
type Provider struct {
	table            Table
	canonicalProject string
}

// NewProvider binds a table to the project that receives it.
func NewProvider(table Table, canonicalProject string) *Provider {
	return &Provider{table: table, canonicalProject: canonicalProject}
}

// CanonicalProject names the project that is seeded on creation and reset.
func (p *Provider) CanonicalProject() string {
	return p.canonicalProject
}

// Seed returns the starting collection for project: the expanded table for the
// canonical project, an empty collection for any other.
func (p *Provider) Seed(project string) []model.Roll {
	if project != p.canonicalProject {
		return []model.Roll{}
	}
	return p.table.Rolls()
}
