package inventory

import (
	"time"

	"github.com/dharsanguruparan/rolltrack/internal/ledger"
)

// Event is a timestamped activity trail entry.
type Event struct {
	Time time.Time `json:"time"`
	ledger.Event
}

// Activity returns the project's trail, oldest first. The trail lives in
// memory only and is bounded.
func (s *Service) Activity(project string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.trails[project]...)
}

func (s *Service) record(project string, events []ledger.Event) {
	if len(events) == 0 {
		return
	}
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := s.trails[project]
	for _, e := range events {
		trail = append(trail, Event{Time: now, Event: e})
	}
	if over := len(trail) - s.trailLimit; over > 0 {
		trail = append([]Event(nil), trail[over:]...)
	}
	s.trails[project] = trail
}

func (s *Service) clearTrail(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trails, project)
}
