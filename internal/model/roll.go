// Package model contains the roll and project records shared across packages.
package model

import (
	"strings"
	"time"
)

// Status describes where a roll sits in its lifecycle.
type Status string

const (
	StatusFresh     Status = "Fresh"
	StatusShortEnd  Status = "Short End"
	StatusExposed   Status = "Exposed"
	StatusSentToLab Status = "Sent to Lab"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusFresh, StatusShortEnd, StatusExposed, StatusSentToLab}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus matches case-insensitively and accepts "short_end"/"sent-to-lab" spellings.
func ParseStatus(raw string) (Status, bool) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw))
	for _, known := range Statuses {
		if strings.EqualFold(norm, string(known)) {
			return known, true
		}
	}
	return "", false
}

// DateLayout is used wherever an exposed date is rendered or stored as text.
const DateLayout = "2006-01-02"

// Roll is one physical roll of film stock.
//
// LengthFt is remaining usable footage while the roll is Fresh or a Short End.
// Once the roll is Exposed it holds the footage actually exposed; the starting
// length survives only in the notes.
type Roll struct {
	RollID      string     `json:"roll_id" validate:"required"`
	Emulsion    string     `json:"emulsion"`
	LengthFt    float64    `json:"length_ft" validate:"gte=0"`
	Status      Status     `json:"status" validate:"rollstatus"`
	Location    string     `json:"location"`
	Magazine    string     `json:"magazine,omitempty"`
	Notes       string     `json:"notes"`
	ExposedDate *time.Time `json:"exposed_date,omitempty"`
}

// OnSet reports whether the roll is stored on set.
func (r Roll) OnSet() bool {
	return IsOnSet(r.Location)
}

// IsOnSet matches the word "set" anywhere in the location, ignoring case, so
// "Set (Praxis)" and "on set" both count.
func IsOnSet(location string) bool {
	return strings.Contains(strings.ToLower(location), "set")
}

// RollPatch carries the fields a manual edit overwrites; nil fields are kept.
type RollPatch struct {
	Emulsion    *string    `json:"emulsion,omitempty"`
	LengthFt    *float64   `json:"length_ft,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Magazine    *string    `json:"magazine,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	ExposedDate *time.Time `json:"exposed_date,omitempty"`
}

// Apply returns a copy of r with the patch applied.
func (p RollPatch) Apply(r Roll) Roll {
	if p.Emulsion != nil {
		r.Emulsion = *p.Emulsion
	}
	if p.LengthFt != nil {
		r.LengthFt = *p.LengthFt
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Magazine != nil {
		r.Magazine = *p.Magazine
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.ExposedDate != nil {
		d := *p.ExposedDate
		r.ExposedDate = &d
	}
	return r
}

// Empty reports whether the patch changes nothing.
func (p RollPatch) Empty() bool {
	return p.Emulsion == nil && p.LengthFt == nil && p.Status == nil && p.Location == nil &&
		p.Magazine == nil && p.Notes == nil && p.ExposedDate == nil
}

// Project is a named partition of the ledger.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
