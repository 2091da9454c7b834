package engine

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/geometry"
	"github.com/oshokin/uwb-tracker/internal/hazard"
)

// Locator resolves anchor coordinates.
type Locator interface {
	Locate(anchorID string) (r2.Vec, bool)
}

// tagRecord holds the latest observation per anchor for one tag.
// Slots keep anchor insertion order, which decides the solver's first three.
type tagRecord struct {
	slots []domain.Observation
}

// put overwrites the slot of obs.AnchorID or appends a new one.
func (r *tagRecord) put(obs domain.Observation) {
	for i := range r.slots {
		if r.slots[i].AnchorID == obs.AnchorID {
			r.slots[i] = obs
			return
		}
	}

	r.slots = append(r.slots, obs)
}

// Aggregator fuses per-anchor observations and drives the solver.
// It is not safe for concurrent use; the engine goroutine owns it.
type Aggregator struct {
	solver  *geometry.Solver
	locator Locator
	tags    map[int]*tagRecord
}

// NewAggregator creates an aggregator solving with solver and resolving
// anchor coordinates through locator.
func NewAggregator(solver *geometry.Solver, locator Locator) *Aggregator {
	return &Aggregator{
		solver:  solver,
		locator: locator,
		tags:    make(map[int]*tagRecord),
	}
}

// Update stores obs as the latest observation of (tag, anchor) and tries to
// solve the tag position from all stored observations in insertion order.
// It returns false when data is insufficient or the geometry is degenerate.
func (a *Aggregator) Update(tag domain.Tag, obs domain.Observation) (*domain.Position, bool) {
	record, ok := a.tags[obs.TagID]
	if !ok {
		record = new(tagRecord)
		a.tags[obs.TagID] = record
	}

	record.put(obs)

	if len(record.slots) < geometry.MinPoints {
		return nil, false
	}

	points := make([]geometry.Point, 0, len(record.slots))

	for _, slot := range record.slots {
		at, found := a.locator.Locate(slot.AnchorID)
		if !found {
			continue
		}

		points = append(points, geometry.Point{Anchor: at, Distance: slot.Distance})
	}

	solved, ok := a.solver.Solve(points)
	if !ok {
		return nil, false
	}

	return &domain.Position{
		TagID:       obs.TagID,
		DisplayName: tag.DisplayName,
		ExternalID:  tag.ExternalID,
		X:           solved.X,
		Y:           solved.Y,
		Hazard:      obs.Hazard,
		Tier:        string(hazard.Classify(obs.Hazard)),
		LastSeen:    obs.Timestamp,
	}, true
}

// Observations returns copies of the stored observations of a tag in anchor
// insertion order.
func (a *Aggregator) Observations(tagID int) []domain.Observation {
	record, ok := a.tags[tagID]
	if !ok {
		return nil
	}

	return slices.Clone(record.slots)
}

// Retain drops every tag for which keep returns false and returns their ids.
func (a *Aggregator) Retain(keep func(tagID int) bool) []int {
	var purged []int

	for id := range a.tags {
		if !keep(id) {
			delete(a.tags, id)
			purged = append(purged, id)
		}
	}

	return purged
}

// ForgetAnchors removes the slots of the given anchors from every tag.
func (a *Aggregator) ForgetAnchors(anchorIDs ...string) {
	if len(anchorIDs) == 0 {
		return
	}

	for _, record := range a.tags {
		record.slots = slices.DeleteFunc(record.slots, func(o domain.Observation) bool {
			return slices.Contains(anchorIDs, o.AnchorID)
		})
	}
}

// Len returns the number of tags with at least one stored observation.
func (a *Aggregator) Len() int {
	return len(a.tags)
}
