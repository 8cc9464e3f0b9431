// Package sheetstore keeps project ledgers in an xlsx workbook: a _projects
// sheet listing projects and one worksheet of rolls per project.
package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

const projectsSheet = "_projects"

var (
	projectHeader = []any{"id", "name", "created_at"}
	rollHeader    = []any{"roll_id", "emulsion", "length_ft", "status", "location", "magazine", "notes", "exposed_date"}
	rawValues     = excelize.Options{RawCellValue: true}
)

// Store implements storage.Store on a single workbook file. Every call opens
// the file fresh and every write replaces it by rename, so readers never see
// a half-written workbook.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open returns a Store for path, creating an empty workbook when none exists.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create workbook dir: %w", err)
			}
		}
		f := excelize.NewFile()
		defer f.Close()
		if err := f.SetSheetName("Sheet1", projectsSheet); err != nil {
			return nil, fmt.Errorf("name projects sheet: %w", err)
		}
		if err := f.SetSheetRow(projectsSheet, "A1", &projectHeader); err != nil {
			return nil, fmt.Errorf("write projects header: %w", err)
		}
		if err := s.write(f); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat workbook: %w", err)
	}
	return s, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

// ListProjects reads the _projects sheet.
func (s *Store) ListProjects(_ context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readProjects(f)
}

// CreateProject appends to _projects and adds an empty roll sheet. Worksheet
// titles are case-insensitive, so names differing only in case collide.
func (s *Store) CreateProject(_ context.Context, name string) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return model.Project{}, err
	}
	defer f.Close()

	projects, err := readProjects(f)
	if err != nil {
		return model.Project{}, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return model.Project{}, storage.ErrProjectExists
		}
	}

	p := model.Project{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	cell, err := excelize.CoordinatesToCellName(1, len(projects)+2)
	if err != nil {
		return model.Project{}, err
	}
	row := []any{p.ID, p.Name, p.CreatedAt.Format(time.RFC3339Nano)}
	if err := f.SetSheetRow(projectsSheet, cell, &row); err != nil {
		return model.Project{}, fmt.Errorf("write project row: %w", err)
	}
	if err := writeRolls(f, name, nil); err != nil {
		return model.Project{}, err
	}
	if err := s.write(f); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// Load reads the project's worksheet in row order.
func (s *Store) Load(_ context.Context, project string) ([]model.Roll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := requireProject(f, project); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(project, rawValues)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", project, err)
	}
	rolls := []model.Roll{}
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}
		r, err := parseRoll(row)
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", project, i+1, err)
		}
		rolls = append(rolls, r)
	}
	return rolls, nil
}

// Save rewrites the project's worksheet.
func (s *Store) Save(_ context.Context, project string, rolls []model.Roll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireProject(f, project); err != nil {
		return err
	}
	if err := writeRolls(f, project, rolls); err != nil {
		return err
	}
	return s.write(f)
}

func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

func (s *Store) write(f *excelize.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".rolltrack-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func readProjects(f *excelize.File) ([]model.Project, error) {
	rows, err := f.GetRows(projectsSheet, rawValues)
	if err != nil {
		return nil, fmt.Errorf("read projects sheet: %w", err)
	}
	projects := []model.Project{}
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}
		row = pad(row, len(projectHeader))
		created, err := time.Parse(time.RFC3339Nano, row[2])
		if err != nil {
			return nil, fmt.Errorf("projects row %d: parse created_at: %w", i+1, err)
		}
		projects = append(projects, model.Project{ID: row[0], Name: row[1], CreatedAt: created})
	}
	return projects, nil
}

func requireProject(f *excelize.File, name string) error {
	projects, err := readProjects(f)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.Name == name {
			return nil
		}
	}
	return storage.ErrProjectNotFound
}

// writeRolls replaces the project's worksheet with a header and one row per roll.
func writeRolls(f *excelize.File, sheet string, rolls []model.Roll) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("look up sheet %s: %w", sheet, err)
	}
	if idx >= 0 {
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("clear sheet %s: %w", sheet, err)
		}
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &rollHeader); err != nil {
		return fmt.Errorf("write roll header: %w", err)
	}
	for i, r := range rolls {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		exposed := ""
		if r.ExposedDate != nil {
			exposed = r.ExposedDate.Format(model.DateLayout)
		}
		row := []any{r.RollID, r.Emulsion, r.LengthFt, string(r.Status), r.Location, r.Magazine, r.Notes, exposed}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write roll %s: %w", r.RollID, err)
		}
	}
	return nil
}

func parseRoll(row []string) (model.Roll, error) {
	row = pad(row, len(rollHeader))
	length, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return model.Roll{}, fmt.Errorf("length_ft %q is not numeric", row[2])
	}
	r := model.Roll{
		RollID:   row[0],
		Emulsion: row[1],
		LengthFt: length,
		Status:   model.Status(row[3]),
		Location: row[4],
		Magazine: row[5],
		Notes:    row[6],
	}
	if raw := strings.TrimSpace(row[7]); raw != "" {
		d, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return model.Roll{}, fmt.Errorf("exposed_date %q: %w", raw, err)
		}
		r.ExposedDate = &d
	}
	return r, nil
}

func pad(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
