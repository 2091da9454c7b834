package simulator

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/geometry"
)

const (
	// stepSize is the largest move per axis per tick, in meters.
	stepSize = 0.5
	// edgeMargin keeps walkers away from the area border.
	edgeMargin = 0.5
	// spikeChance is the probability of an alert reading for the hazard tag.
	spikeChance = 0.3
)

// Report is one anchor observation as published on the wire.
type Report struct {
	TagID     int     `json:"tagId"`
	FullName  string  `json:"fullName"`
	EmpID     string  `json:"empId"`
	AnchorID  string  `json:"anchorId"`
	AnchorX   float64 `json:"anchorX"`
	AnchorY   float64 `json:"anchorY"`
	Distance  float64 `json:"distance"`
	Gas       float64 `json:"gas"`
	Timestamp string  `json:"timestamp"`
}

// walker is a simulated tag.
type walker struct {
	tag domain.Tag
	pos r2.Vec
}

// world holds the simulated tags and anchors.
type world struct {
	rng       *rand.Rand
	area      geometry.Bounds
	anchors   []domain.AnchorSite
	walkers   []walker
	hazardTag int
}

// newWorld places every tag at a random point inside the anchors' bounding
// box, or inside fallback when there are fewer than two anchors.
func newWorld(rng *rand.Rand, tags []domain.Tag, anchors []domain.AnchorSite, fallback geometry.Bounds, hazardTag int) *world {
	w := &world{
		rng:       rng,
		area:      shrink(anchorBounds(anchors, fallback), edgeMargin),
		anchors:   anchors,
		hazardTag: hazardTag,
	}

	for _, tag := range tags {
		w.walkers = append(w.walkers, walker{
			tag: tag,
			pos: r2.Vec{
				X: w.area.Min.X + rng.Float64()*(w.area.Max.X-w.area.Min.X),
				Y: w.area.Min.Y + rng.Float64()*(w.area.Max.Y-w.area.Min.Y),
			},
		})
	}

	return w
}

// step moves every walker and returns one report per (tag, anchor).
func (w *world) step(now time.Time) []Report {
	reports := make([]Report, 0, len(w.walkers)*len(w.anchors))
	timestamp := now.UTC().Format(time.RFC3339Nano)

	for i := range w.walkers {
		wk := &w.walkers[i]
		wk.pos = w.area.Clamp(r2.Add(wk.pos, r2.Vec{
			X: (w.rng.Float64() - 0.5) * stepSize,
			Y: (w.rng.Float64() - 0.5) * stepSize,
		}))

		gas := w.gas(wk.tag.TagID)

		for _, a := range w.anchors {
			reports = append(reports, Report{
				TagID:     wk.tag.TagID,
				FullName:  wk.tag.DisplayName,
				EmpID:     wk.tag.ExternalID,
				AnchorID:  a.AnchorID,
				AnchorX:   a.X,
				AnchorY:   a.Y,
				Distance:  math.Round(r2.Norm(r2.Sub(wk.pos, a.Point()))*100) / 100,
				Gas:       gas,
				Timestamp: timestamp,
			})
		}
	}

	return reports
}

// gas returns a normal 5-20 reading, or 80-100 for the hazard tag now and then.
func (w *world) gas(tagID int) float64 {
	if tagID == w.hazardTag && w.rng.Float64() < spikeChance {
		return float64(80 + w.rng.IntN(20))
	}

	return float64(5 + w.rng.IntN(15))
}

// anchorBounds returns the bounding box of anchors.
func anchorBounds(anchors []domain.AnchorSite, fallback geometry.Bounds) geometry.Bounds {
	if len(anchors) < 2 {
		return fallback
	}

	b := geometry.Bounds{Min: anchors[0].Point(), Max: anchors[0].Point()}

	for _, a := range anchors[1:] {
		b.Min = r2.Vec{X: min(b.Min.X, a.X), Y: min(b.Min.Y, a.Y)}
		b.Max = r2.Vec{X: max(b.Max.X, a.X), Y: max(b.Max.Y, a.Y)}
	}

	if b.Validate() != nil {
		return fallback
	}

	return b
}

// shrink moves every edge inwards by margin when the box is large enough.
func shrink(b geometry.Bounds, margin float64) geometry.Bounds {
	inner := geometry.Bounds{
		Min: r2.Add(b.Min, r2.Vec{X: margin, Y: margin}),
		Max: r2.Sub(b.Max, r2.Vec{X: margin, Y: margin}),
	}

	if inner.Validate() != nil {
		return b
	}

	return inner
}
