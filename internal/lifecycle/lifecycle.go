// Package lifecycle encodes the allowed roll status transitions.
//
//	Fresh ──unload──┐
//	                ├──> Exposed ──ship──> Sent to Lab
//	Short End ─unload┘
//
// Fresh and Short End are both initial states; a Fresh roll never becomes a
// Short End itself, the remainder of an unload is a new record. Manual edits
// may move a roll between any two states.
package lifecycle

import (
	"fmt"

	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// Trigger names the operation requesting a transition.
type Trigger string

const (
	TriggerUnload Trigger = "unload"
	TriggerShip   Trigger = "ship"
	TriggerEdit   Trigger = "edit"
)

var transitions = map[Trigger]map[model.Status]model.Status{
	TriggerUnload: {
		model.StatusFresh:    model.StatusExposed,
		model.StatusShortEnd: model.StatusExposed,
	},
	TriggerShip: {
		model.StatusExposed: model.StatusSentToLab,
	},
}

// Next returns the status a roll in from moves to under trigger. Manual edits
// have no implied target and always fail here; use Allowed for them.
func Next(from model.Status, trigger Trigger) (model.Status, error) {
	if to, ok := transitions[trigger][from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%s not allowed from status %q", trigger, from)
}

// Allowed reports whether trigger may move a roll from one status to another.
func Allowed(from, to model.Status, trigger Trigger) bool {
	if trigger == TriggerEdit {
		return from.Valid() && to.Valid()
	}
	next, err := Next(from, trigger)
	return err == nil && next == to
}

// Initial reports whether s may be assigned to a newly created record.
func Initial(s model.Status) bool {
	return s == model.StatusFresh || s == model.StatusShortEnd
}

// Terminal reports whether s has no outgoing transition under normal flow.
func Terminal(s model.Status) bool {
	return s == model.StatusSentToLab
}

// Unloadable reports whether the roll may be taken out of a camera: it must be
// on set and in an unload-eligible status.
func Unloadable(r model.Roll) bool {
	_, err := Next(r.Status, TriggerUnload)
	return err == nil && r.OnSet()
}
