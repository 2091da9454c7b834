package engine

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// Ledger tracks anchor coordinates and liveness in roster order.
// It is not safe for concurrent use; the engine goroutine owns it.
type Ledger struct {
	// anchors holds the roster anchors with their liveness.
	anchors []domain.Anchor
	// index maps anchor id to its position in anchors.
	index map[string]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		index: make(map[string]int),
	}
}

// Reload replaces the anchor roster. Anchors that survive keep their liveness,
// new anchors start offline. It returns the ids of removed anchors.
// Duplicate ids in sites are collapsed to the first occurrence.
func (l *Ledger) Reload(sites []domain.AnchorSite) []string {
	var (
		anchors = make([]domain.Anchor, 0, len(sites))
		index   = make(map[string]int, len(sites))
	)

	for _, site := range sites {
		if _, dup := index[site.AnchorID]; dup {
			continue
		}

		anchor := domain.Anchor{AnchorSite: site}

		if i, ok := l.index[site.AnchorID]; ok {
			anchor.Online = l.anchors[i].Online
			anchor.LastSeen = l.anchors[i].LastSeen
		}

		index[site.AnchorID] = len(anchors)
		anchors = append(anchors, anchor)
	}

	var removed []string

	for _, old := range l.anchors {
		if _, ok := index[old.AnchorID]; !ok {
			removed = append(removed, old.AnchorID)
		}
	}

	l.anchors, l.index = anchors, index

	return removed
}

// Observe marks the anchor online as of at. It returns a copy of the updated
// anchor, or false when the anchor is not in the roster.
func (l *Ledger) Observe(anchorID string, at time.Time) (*domain.Anchor, bool) {
	i, ok := l.index[anchorID]
	if !ok {
		return nil, false
	}

	ts := at
	l.anchors[i].Online = true
	l.anchors[i].LastSeen = &ts

	return l.anchors[i].Clone(), true
}

// Locate returns the coordinate of a roster anchor.
func (l *Ledger) Locate(anchorID string) (r2.Vec, bool) {
	i, ok := l.index[anchorID]
	if !ok {
		return r2.Vec{}, false
	}

	return l.anchors[i].Point(), true
}

// Expire marks anchors offline when their last observation is older than ttl
// relative to now. It returns copies of the anchors that changed.
func (l *Ledger) Expire(now time.Time, ttl time.Duration) []domain.Anchor {
	if ttl <= 0 {
		return nil
	}

	var changed []domain.Anchor

	for i := range l.anchors {
		a := &l.anchors[i]
		if !a.Online || a.LastSeen == nil || now.Sub(*a.LastSeen) <= ttl {
			continue
		}

		a.Online = false
		changed = append(changed, *a.Clone())
	}

	return changed
}

// Anchors returns copies of all anchors in roster order.
func (l *Ledger) Anchors() []domain.Anchor {
	result := make([]domain.Anchor, 0, len(l.anchors))
	for i := range l.anchors {
		result = append(result, *l.anchors[i].Clone())
	}

	return result
}

// OnlineCount returns the number of anchors currently online.
func (l *Ledger) OnlineCount() int {
	n := 0

	for i := range l.anchors {
		if l.anchors[i].Online {
			n++
		}
	}

	return n
}
