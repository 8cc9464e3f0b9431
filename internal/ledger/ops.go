package ledger

import (
	"fmt"
	"strings"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/footage"
	"github.com/dharsanguruparan/rolltrack/internal/lifecycle"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// ShipResult lists the rolls moved to the lab.
type ShipResult struct {
	Shipped []model.Roll `json:"shipped"`
	TotalFt float64      `json:"total_ft"`
	Summary string       `json:"summary"`
	Events  []Event      `json:"events"`
}

// Count is the number of shipped rolls.
func (r ShipResult) Count() int {
	return len(r.Shipped)
}

// Ship moves every Exposed roll to Sent to Lab. With nothing exposed it is a
// no-op that returns an empty result.
func (l Ledger) Ship() (Ledger, ShipResult) {
	result := ShipResult{Shipped: []model.Roll{}}
	var rolls []model.Roll
	for i, r := range l.rolls {
		next, err := lifecycle.Next(r.Status, lifecycle.TriggerShip)
		if err != nil {
			continue
		}
		if rolls == nil {
			rolls = cloneRolls(l.rolls)
		}
		rolls[i].Status = next
		result.Shipped = append(result.Shipped, cloneRoll(rolls[i]))
		result.TotalFt += r.LengthFt
		result.Events = append(result.Events, Event{
			Action: ActionShip,
			RollID: r.RollID,
			Info:   fmt.Sprintf("%g ft %s", r.LengthFt, r.Emulsion),
		})
	}
	if rolls == nil {
		result.Summary = "Nothing to ship."
		return l, result
	}
	result.Summary = fmt.Sprintf("%d rolls sent to lab, %g ft (%s).",
		len(result.Shipped), result.TotalFt, footage.Duration(result.TotalFt))
	return l.with(rolls), result
}

// Create appends a manually entered roll. The roll must pass record validation
// and its id must not already exist in the ledger or among the reserved ids.
func (l Ledger) Create(r model.Roll) (Ledger, model.Roll, error) {
	r = cloneRoll(r)
	r.RollID = strings.TrimSpace(r.RollID)
	if err := model.Validate(r); err != nil {
		return l, model.Roll{}, err
	}
	if l.taken(r.RollID) {
		return l, model.Roll{}, apperr.Newf(apperr.CodeDuplicateID, "roll %q already exists", r.RollID).
			WithDetails(map[string]string{"roll_id": r.RollID})
	}
	rolls := append(cloneRolls(l.rolls), r)
	return l.with(rolls), cloneRoll(r), nil
}

// Edit overwrites the patched fields of the roll with exactly rollID. Edits
// bypass the lifecycle guards so an operator can correct any record; the
// result must still pass record validation.
func (l Ledger) Edit(rollID string, patch model.RollPatch) (Ledger, model.Roll, error) {
	i, ok := l.index[rollID]
	if !ok {
		return l, model.Roll{}, apperr.Newf(apperr.CodeNotFound, "roll %q not found", rollID)
	}
	before := l.rolls[i]
	updated := patch.Apply(cloneRoll(before))
	if err := model.Validate(updated); err != nil {
		return l, model.Roll{}, err
	}
	if !lifecycle.Allowed(before.Status, updated.Status, lifecycle.TriggerEdit) {
		return l, model.Roll{}, apperr.Newf(apperr.CodeValidation, "status %q cannot be assigned", updated.Status)
	}
	rolls := cloneRolls(l.rolls)
	rolls[i] = updated
	return l.with(rolls), cloneRoll(updated), nil
}

// EditEvent describes a manual edit for the activity trail.
func EditEvent(before, after model.Roll) Event {
	var changes []string
	if before.Status != after.Status {
		changes = append(changes, fmt.Sprintf("status %s -> %s", before.Status, after.Status))
	}
	if before.LengthFt != after.LengthFt {
		changes = append(changes, fmt.Sprintf("length %g -> %g ft", before.LengthFt, after.LengthFt))
	}
	if before.Location != after.Location {
		changes = append(changes, fmt.Sprintf("location %q -> %q", before.Location, after.Location))
	}
	if before.Emulsion != after.Emulsion {
		changes = append(changes, fmt.Sprintf("emulsion %q -> %q", before.Emulsion, after.Emulsion))
	}
	if before.Magazine != after.Magazine {
		changes = append(changes, fmt.Sprintf("magazine %q -> %q", before.Magazine, after.Magazine))
	}
	if before.Notes != after.Notes {
		changes = append(changes, "notes updated")
	}
	if !sameDate(before, after) {
		changes = append(changes, "exposed date updated")
	}
	info := strings.Join(changes, ", ")
	if info == "" {
		info = "no changes"
	}
	return Event{Action: ActionEdit, RollID: after.RollID, Info: info}
}

func sameDate(a, b model.Roll) bool {
	switch {
	case a.ExposedDate == nil && b.ExposedDate == nil:
		return true
	case a.ExposedDate == nil || b.ExposedDate == nil:
		return false
	default:
		return a.ExposedDate.Equal(*b.ExposedDate)
	}
}
