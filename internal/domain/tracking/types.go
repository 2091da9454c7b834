package tracking

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Tag is a roster entry for a mobile device worn by tracked personnel.
// JSON names match the worker roster files.
type Tag struct {
	// TagID uniquely identifies the tag.
	TagID int `json:"tagId" validate:"gte=0"`
	// DisplayName is the full name of the person wearing the tag.
	DisplayName string `json:"fullName" validate:"required"`
	// ExternalID is the employee identifier from outside systems.
	ExternalID string `json:"empId"`
}

// AnchorSite is a roster entry describing a fixed reference station.
type AnchorSite struct {
	// AnchorID uniquely identifies the anchor.
	AnchorID string `json:"anchorId" validate:"required"`
	// Name is a human-readable label.
	Name string `json:"name"`
	// X is the anchor abscissa in metres.
	X float64 `json:"x"`
	// Y is the anchor ordinate in metres.
	Y float64 `json:"y"`
}

// Point returns the anchor coordinate as a vector.
func (s AnchorSite) Point() r2.Vec {
	return r2.Vec{X: s.X, Y: s.Y}
}

// Anchor is an anchor site together with engine-owned liveness.
type Anchor struct {
	AnchorSite

	// Online reports whether an observation referencing the anchor was accepted.
	Online bool
	// LastSeen is the timestamp of the latest accepted observation, nil if none.
	LastSeen *time.Time
}

// Clone returns a copy that does not share the LastSeen pointer.
func (a *Anchor) Clone() *Anchor {
	if a == nil {
		return nil
	}

	cloned := *a

	if a.LastSeen != nil {
		ts := *a.LastSeen
		cloned.LastSeen = &ts
	}

	return &cloned
}

// Observation is one distance report from an anchor to a tag.
type Observation struct {
	TagID    int
	AnchorID string
	// Distance is the measured range in metres.
	Distance float64
	// Hazard is the gas concentration reading carried with the range.
	Hazard    float64
	Timestamp time.Time
}

// Position is the latest solved location of a tag.
type Position struct {
	TagID       int
	DisplayName string
	ExternalID  string
	X           float64
	Y           float64
	Hazard      float64
	Tier        string
	LastSeen    time.Time
}

// Point returns the solved coordinate as a vector.
func (p *Position) Point() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Clone returns a copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}

	cloned := *p

	return &cloned
}
