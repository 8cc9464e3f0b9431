// Package ledger holds one project's roll collection and the operations that
// transform it. A Ledger is a value: every operation returns a new Ledger and
// leaves the receiver untouched, including when it fails.
package ledger

import (
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// Event is one line of the activity trail produced by an operation.
type Event struct {
	Action string `json:"action"`
	RollID string `json:"roll_id"`
	Info   string `json:"info"`
}

const (
	ActionUnload   = "unload"
	ActionShortEnd = "short_end"
	ActionShip     = "ship"
	ActionCreate   = "create"
	ActionEdit     = "edit"
	ActionReset    = "reset"
)

// Ledger is an ordered collection of rolls with unique ids. Reserved ids
// belong to other partitions of the inventory; they are never assigned here.
type Ledger struct {
	rolls    []model.Roll
	index    map[string]int
	reserved map[string]struct{}
}

// Option configures a Ledger built by New.
type Option func(*Ledger)

// WithReservedIDs marks ids that are taken elsewhere.
func WithReservedIDs(ids ...string) Option {
	return func(l *Ledger) {
		for _, id := range ids {
			l.reserved[id] = struct{}{}
		}
	}
}

// New copies rolls into a Ledger. Order is preserved.
func New(rolls []model.Roll, opts ...Option) Ledger {
	l := Ledger{reserved: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&l)
	}
	l.rolls = cloneRolls(rolls)
	l.reindex()
	return l
}

// Rolls returns a copy of the collection in ledger order.
func (l Ledger) Rolls() []model.Roll {
	return cloneRolls(l.rolls)
}

// Len returns the number of rolls.
func (l Ledger) Len() int {
	return len(l.rolls)
}

// Get finds a roll by exact id.
func (l Ledger) Get(rollID string) (model.Roll, bool) {
	i, ok := l.index[rollID]
	if !ok {
		return model.Roll{}, false
	}
	return cloneRoll(l.rolls[i]), true
}

// IDs returns every id in the ledger plus the reserved ids.
func (l Ledger) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(l.rolls)+len(l.reserved))
	for id := range l.reserved {
		ids[id] = struct{}{}
	}
	for _, r := range l.rolls {
		ids[r.RollID] = struct{}{}
	}
	return ids
}

func (l Ledger) taken(rollID string) bool {
	if _, ok := l.index[rollID]; ok {
		return true
	}
	_, ok := l.reserved[rollID]
	return ok
}

// with returns a copy of l whose collection is rolls.
func (l Ledger) with(rolls []model.Roll) Ledger {
	next := Ledger{rolls: rolls, reserved: l.reserved}
	next.reindex()
	return next
}

func (l *Ledger) reindex() {
	l.index = make(map[string]int, len(l.rolls))
	for i, r := range l.rolls {
		if _, dup := l.index[r.RollID]; !dup {
			l.index[r.RollID] = i
		}
	}
}

func cloneRolls(rolls []model.Roll) []model.Roll {
	out := make([]model.Roll, len(rolls))
	for i, r := range rolls {
		out[i] = cloneRoll(r)
	}
	return out
}

func cloneRoll(r model.Roll) model.Roll {
	if r.ExposedDate != nil {
		d := *r.ExposedDate
		r.ExposedDate = &d
	}
	return r
}
