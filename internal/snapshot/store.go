// Package snapshot holds the externally readable view of tracker state.
//
// The engine goroutine is the only writer. Entries are replaced whole under a
// write lock and readers always receive copies, so a reader never observes a
// half-updated position.
package snapshot

import (
	"slices"
	"sync"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// Store keeps the latest position per tag and the anchors with liveness.
type Store struct {
	// mu protects every field below.
	mu sync.RWMutex
	// positions maps tag id to its latest solved position.
	positions map[int]domain.Position
	// anchors holds anchors in roster order.
	anchors []domain.Anchor
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		positions: make(map[int]domain.Position),
	}
}

// PutPosition replaces the position of p.TagID.
func (s *Store) PutPosition(p *domain.Position) {
	if p == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[p.TagID] = *p
}

// DeletePositions removes the positions of the given tags.
func (s *Store) DeletePositions(tagIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tagIDs {
		delete(s.positions, id)
	}
}

// SetAnchors replaces the whole anchor list.
func (s *Store) SetAnchors(anchors []domain.Anchor) {
	cloned := make([]domain.Anchor, 0, len(anchors))
	for i := range anchors {
		cloned = append(cloned, *anchors[i].Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchors = cloned
}

// PutAnchor replaces a single anchor; unknown anchors are ignored.
func (s *Store) PutAnchor(a *domain.Anchor) {
	if a == nil {
		return
	}

	cloned := a.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.anchors {
		if s.anchors[i].AnchorID == a.AnchorID {
			s.anchors[i] = *cloned
			return
		}
	}
}

// Position returns a copy of the tag's position.
func (s *Store) Position(tagID int) (*domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[tagID]
	if !ok {
		return nil, false
	}

	return &p, true
}

// Positions returns copies of all positions ordered by tag id.
func (s *Store) Positions() []domain.Position {
	s.mu.RLock()

	result := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		result = append(result, p)
	}

	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b domain.Position) int {
		return a.TagID - b.TagID
	})

	return result
}

// Anchors returns copies of all anchors in roster order.
func (s *Store) Anchors() []domain.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Anchor, 0, len(s.anchors))
	for i := range s.anchors {
		result = append(result, *s.anchors[i].Clone())
	}

	return result
}
