package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/rolltrack/internal/ledger"
	"github.com/dharsanguruparan/rolltrack/internal/manifest"
	"github.com/dharsanguruparan/rolltrack/internal/model"
)

// UnloadInput is an unload request as it arrives from an operator. A nil
// WasteFt takes the configured default.
type UnloadInput struct {
	RollID    string
	ExposedFt float64
	WasteFt   *float64
	Magazine  string
	Note      string
}

// ShipOutcome is a ship result plus the shipment it produced.
type ShipOutcome struct {
	ledger.ShipResult
	ShipmentID     string `json:"shipment_id,omitempty"`
	ManifestQueued bool   `json:"manifest_queued"`
}

func newShipmentID() string {
	return uuid.NewString()
}

// Unload records a roll coming out of the camera.
func (s *Service) Unload(ctx context.Context, project string, in UnloadInput) (result ledger.UnloadResult, err error) {
	defer func() { s.metrics.ObserveOperation(ledger.ActionUnload, err) }()
	waste := s.defaultWaste
	if in.WasteFt != nil {
		waste = *in.WasteFt
	}
	req := ledger.UnloadRequest{
		RollID:    strings.TrimSpace(in.RollID),
		ExposedFt: in.ExposedFt,
		WasteFt:   waste,
		Magazine:  strings.TrimSpace(in.Magazine),
		Note:      strings.TrimSpace(in.Note),
		Today:     s.now(),
	}
	err = s.mutate(ctx, project, true, func(l ledger.Ledger) (ledger.Ledger, []ledger.Event, error) {
		next, res, err := l.Unload(req)
		result = res
		return next, res.Events, err
	})
	if result.Summary == "" {
		return result, err
	}
	s.metrics.AddFeetExposed(result.Exposed.Emulsion, result.Exposed.LengthFt)
	ids := []string{result.Exposed.RollID}
	if result.ShortEnd != nil {
		s.metrics.IncShortEnds()
		ids = append(ids, result.ShortEnd.RollID)
	}
	s.logOp(ctx, project, ledger.ActionUnload, ids, result.Summary)
	return result, err
}

// Ship sends every exposed roll to the lab. When rolls were shipped and a
// manifest queue is configured, a manifest build is scheduled; a queue
// failure is logged but does not fail the shipment.
func (s *Service) Ship(ctx context.Context, project string) (outcome ShipOutcome, err error) {
	defer func() { s.metrics.ObserveOperation(ledger.ActionShip, err) }()
	err = s.mutate(ctx, project, false, func(l ledger.Ledger) (ledger.Ledger, []ledger.Event, error) {
		next, res := l.Ship()
		outcome.ShipResult = res
		return next, res.Events, nil
	})
	if outcome.Summary == "" || outcome.Count() == 0 {
		return outcome, err
	}
	outcome.ShipmentID = s.newID()
	ids := make([]string, 0, outcome.Count())
	for _, r := range outcome.Shipped {
		ids = append(ids, r.RollID)
	}
	s.logOp(ctx, project, ledger.ActionShip, ids, outcome.Summary)

	if s.manifests != nil && err == nil {
		shipment := manifest.Shipment{
			ID:        outcome.ShipmentID,
			Project:   project,
			ShippedAt: s.now().UTC(),
			Rolls:     outcome.Shipped,
		}
		if qErr := s.manifests.EnqueueManifest(ctx, shipment); qErr != nil {
			s.log.Error(s.log.WithProject(ctx, project), "enqueue manifest failed", qErr)
		} else {
			outcome.ManifestQueued = true
		}
	}
	return outcome, err
}

// Create appends a manually entered roll.
func (s *Service) Create(ctx context.Context, project string, r model.Roll) (created model.Roll, err error) {
	defer func() { s.metrics.ObserveOperation(ledger.ActionCreate, err) }()
	err = s.mutate(ctx, project, true, func(l ledger.Ledger) (ledger.Ledger, []ledger.Event, error) {
		next, roll, err := l.Create(r)
		if err != nil {
			return l, nil, err
		}
		created = roll
		return next, []ledger.Event{{
			Action: ledger.ActionCreate,
			RollID: roll.RollID,
			Info:   fmt.Sprintf("%g ft %s, %s", roll.LengthFt, roll.Emulsion, roll.Status),
		}}, nil
	})
	if created.RollID != "" {
		s.logOp(ctx, project, ledger.ActionCreate, []string{created.RollID}, "roll created")
	}
	return created, err
}

// Edit overwrites fields of an existing roll. Any status may be set.
func (s *Service) Edit(ctx context.Context, project, rollID string, patch model.RollPatch) (updated model.Roll, err error) {
	defer func() { s.metrics.ObserveOperation(ledger.ActionEdit, err) }()
	err = s.mutate(ctx, project, false, func(l ledger.Ledger) (ledger.Ledger, []ledger.Event, error) {
		before, _ := l.Get(rollID)
		next, roll, err := l.Edit(rollID, patch)
		if err != nil {
			return l, nil, err
		}
		updated = roll
		return next, []ledger.Event{ledger.EditEvent(before, roll)}, nil
	})
	if updated.RollID != "" {
		s.logOp(ctx, project, ledger.ActionEdit, []string{updated.RollID}, "roll edited")
	}
	return updated, err
}

// Reset replaces the project's rolls with its seed: the opening stock for the
// canonical project, nothing for any other. The activity trail is cleared.
// The seed is not renamed: a seed id held by another project fails the reset
// with DUPLICATE_ID and leaves the project untouched.
func (s *Service) Reset(ctx context.Context, project string) (rolls []model.Roll, err error) {
	defer func() { s.metrics.ObserveOperation(ledger.ActionReset, err) }()
	release, err := s.lockFor(ctx, project, true)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.loadRolls(ctx, project); err != nil {
		return nil, err
	}
	rolls = s.seed.Seed(project)
	if err := s.checkReserved(ctx, project, rolls); err != nil {
		return nil, err
	}
	s.clearTrail(project)
	saveErr := s.save(ctx, project, rolls)
	s.record(project, []ledger.Event{{
		Action: ledger.ActionReset,
		Info:   fmt.Sprintf("%d rolls", len(rolls)),
	}})
	s.logOp(ctx, project, ledger.ActionReset, nil, fmt.Sprintf("reset to %d rolls", len(rolls)))
	return rolls, saveErr
}

func (s *Service) logOp(ctx context.Context, project, op string, rollIDs []string, summary string) {
	ctx = s.log.WithFields(ctx, map[string]any{
		"project":  project,
		"op":       op,
		"roll_ids": rollIDs,
	})
	s.log.Info(ctx, summary)
}
