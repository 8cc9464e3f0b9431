package ledger

import (
	"github.com/dharsanguruparan/rolltrack/internal/footage"
	"github.com/dharsanguruparan/rolltrack/internal/lifecycle"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// Candidates returns the rolls that can be unloaded right now, in ledger order.
func (l Ledger) Candidates() []model.Roll {
	out := []model.Roll{}
	for _, r := range l.rolls {
		if lifecycle.Unloadable(r) {
			out = append(out, cloneRoll(r))
		}
	}
	return out
}

// Filter returns the rolls whose status is one of statuses. No statuses means
// every roll.
func (l Ledger) Filter(statuses ...model.Status) []model.Roll {
	if len(statuses) == 0 {
		return l.Rolls()
	}
	want := make(map[model.Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	out := []model.Roll{}
	for _, r := range l.rolls {
		if _, ok := want[r.Status]; ok {
			out = append(out, cloneRoll(r))
		}
	}
	return out
}

// AvailableSetFt sums the footage of Fresh and Short End rolls on set.
func (l Ledger) AvailableSetFt() float64 {
	var total float64
	for _, r := range l.rolls {
		if lifecycle.Unloadable(r) {
			total += r.LengthFt
		}
	}
	return total
}

// EmulsionStock is the on-set footage of one emulsion.
type EmulsionStock struct {
	Emulsion         string  `json:"emulsion"`
	FreshFt          float64 `json:"fresh_ft"`
	FreshDuration    string  `json:"fresh_duration"`
	ShortEndFt       float64 `json:"short_end_ft"`
	ShortEndDuration string  `json:"short_end_duration"`
}

// Dashboard summarises set stock per emulsion and footage bound for the lab.
type Dashboard struct {
	Emulsions         []EmulsionStock `json:"emulsions"`
	AvailableFt       float64         `json:"available_ft"`
	AvailableDuration string          `json:"available_duration"`
	ExposedFt         float64         `json:"exposed_ft"`
	SentToLabFt       float64         `json:"sent_to_lab_ft"`
	LabFt             float64         `json:"lab_ft"`
	LabDuration       string          `json:"lab_duration"`
}

// Dashboard builds the set overview. Emulsions appear in the order they are
// first seen in the ledger.
func (l Ledger) Dashboard() Dashboard {
	d := Dashboard{Emulsions: []EmulsionStock{}}
	pos := map[string]int{}
	for _, r := range l.rolls {
		switch r.Status {
		case model.StatusExposed:
			d.ExposedFt += r.LengthFt
			continue
		case model.StatusSentToLab:
			d.SentToLabFt += r.LengthFt
			continue
		}
		if !r.OnSet() {
			continue
		}
		i, ok := pos[r.Emulsion]
		if !ok {
			i = len(d.Emulsions)
			pos[r.Emulsion] = i
			d.Emulsions = append(d.Emulsions, EmulsionStock{Emulsion: r.Emulsion})
		}
		switch r.Status {
		case model.StatusFresh:
			d.Emulsions[i].FreshFt += r.LengthFt
		case model.StatusShortEnd:
			d.Emulsions[i].ShortEndFt += r.LengthFt
		}
		d.AvailableFt += r.LengthFt
	}
	for i := range d.Emulsions {
		d.Emulsions[i].FreshDuration = footage.Duration(d.Emulsions[i].FreshFt)
		d.Emulsions[i].ShortEndDuration = footage.Duration(d.Emulsions[i].ShortEndFt)
	}
	d.AvailableDuration = footage.Duration(d.AvailableFt)
	d.LabFt = d.ExposedFt + d.SentToLabFt
	d.LabDuration = footage.Duration(d.LabFt)
	return d
}
