package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/footage"
	"github.com/dharsanguruparan/rolltrack/internal/lifecycle"
	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/rollid"
)

// ShortEndThresholdFt is the largest remainder treated as waste. Only a
// remainder strictly above it becomes a new short end.
const ShortEndThresholdFt = 40

// ShortEndLocation is where new short ends are filed.
const ShortEndLocation = "on set"

// UnloadRequest describes a roll coming out of a camera.
type UnloadRequest struct {
	RollID    string
	ExposedFt float64
	WasteFt   float64
	Magazine  string
	Note      string
	Today     time.Time
}

// UnloadResult reports what an unload changed.
type UnloadResult struct {
	Exposed     model.Roll  `json:"exposed"`
	ShortEnd    *model.Roll `json:"short_end,omitempty"`
	StartFt     float64     `json:"start_ft"`
	RemainderFt float64     `json:"remainder_ft"`
	Summary     string      `json:"summary"`
	Events      []Event     `json:"events"`
}

// Unload takes an on-set Fresh or Short End roll out of the camera. The roll
// becomes Exposed and its length is overwritten with the exposed footage. A
// remainder above ShortEndThresholdFt is appended as a new Short End with an id
// derived from the parent; a smaller remainder is dropped as untracked waste.
func (l Ledger) Unload(req UnloadRequest) (Ledger, UnloadResult, error) {
	if err := validateFeet(req.ExposedFt, req.WasteFt); err != nil {
		return l, UnloadResult{}, err
	}
	if req.Today.IsZero() {
		return l, UnloadResult{}, apperr.New(apperr.CodeValidation, "unload date is required").
			WithDetails(map[string]string{"today": "is required"})
	}
	i, ok := l.index[req.RollID]
	if !ok {
		return l, UnloadResult{}, apperr.Newf(apperr.CodeNotFound, "roll %q not found", req.RollID)
	}
	current := l.rolls[i]
	if !lifecycle.Unloadable(current) {
		return l, UnloadResult{}, apperr.Newf(apperr.CodeValidation,
			"roll %q is not available for unload (status %q, location %q)", current.RollID, current.Status, current.Location).
			WithDetails(map[string]string{"roll_id": "must be an on-set Fresh or Short End roll"})
	}
	startFt := current.LengthFt
	if req.ExposedFt+req.WasteFt > startFt {
		return l, UnloadResult{}, apperr.Newf(apperr.CodeValidation,
			"exposed %g ft + waste %g ft exceeds the %g ft on roll %q", req.ExposedFt, req.WasteFt, startFt, current.RollID).
			WithDetails(map[string]string{"exposed_ft": fmt.Sprintf("exposed + waste must not exceed %g", startFt)})
	}
	next, err := lifecycle.Next(current.Status, lifecycle.TriggerUnload)
	if err != nil {
		return l, UnloadResult{}, apperr.Wrap(apperr.CodeValidation, err, "invalid transition")
	}

	today := dateOnly(req.Today)
	exposed := cloneRoll(current)
	exposed.Status = next
	exposed.LengthFt = req.ExposedFt
	exposed.Magazine = req.Magazine
	exposed.Notes = unloadNote(req.Magazine, req.Note)
	exposed.ExposedDate = &today

	rolls := cloneRolls(l.rolls)
	rolls[i] = exposed

	remainder := startFt - req.ExposedFt - req.WasteFt
	result := UnloadResult{
		Exposed:     cloneRoll(exposed),
		StartFt:     startFt,
		RemainderFt: remainder,
		Summary:     fmt.Sprintf("Roll %s -> %s exposed.", current.RollID, footage.Duration(req.ExposedFt)),
		Events: []Event{{
			Action: ActionUnload,
			RollID: current.RollID,
			Info: fmt.Sprintf("%g ft loaded, %g ft exposed, %g ft waste, %g ft remaining",
				startFt, req.ExposedFt, req.WasteFt, remainder),
		}},
	}

	if remainder > ShortEndThresholdFt {
		shortEnd := model.Roll{
			RollID:   rollid.NextShortEndID(l.IDs(), current.RollID),
			Emulsion: current.Emulsion,
			LengthFt: remainder,
			Status:   model.StatusShortEnd,
			Location: ShortEndLocation,
			Notes:    "Short end from " + current.RollID,
		}
		rolls = append(rolls, shortEnd)
		result.ShortEnd = &shortEnd
		result.Summary += fmt.Sprintf(" New short end: %s (%s)", shortEnd.RollID, footage.Duration(remainder))
		result.Events = append(result.Events, Event{
			Action: ActionShortEnd,
			RollID: shortEnd.RollID,
			Info:   fmt.Sprintf("%g ft %s from %s", remainder, current.Emulsion, current.RollID),
		})
	}

	return l.with(rolls), result, nil
}

func validateFeet(exposed, waste float64) error {
	details := map[string]string{}
	if math.IsNaN(exposed) || math.IsInf(exposed, 0) || exposed < 0 {
		details["exposed_ft"] = "must be a non-negative number"
	}
	if math.IsNaN(waste) || math.IsInf(waste, 0) || waste < 0 {
		details["waste_ft"] = "must be a non-negative number"
	}
	if len(details) > 0 {
		return apperr.New(apperr.CodeValidation, "invalid footage").WithDetails(details)
	}
	return nil
}

func unloadNote(magazine, note string) string {
	magazine = strings.TrimSpace(magazine)
	note = strings.TrimSpace(note)
	switch {
	case magazine == "":
		return note
	case note == "":
		return "Mag: " + magazine
	default:
		return "Mag: " + magazine + " | " + note
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
