package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAnchorClone verifies that Clone deep-copies LastSeen and handles nil safely.
func TestAnchorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Anchor)(nil).Clone())

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &Anchor{
		AnchorSite: AnchorSite{AnchorID: "A1", X: 1, Y: 2},
		Online:     true,
		LastSeen:   &ts,
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a.LastSeen, b.LastSeen)

	*b.LastSeen = ts.Add(time.Hour)
	require.Equal(t, ts, *a.LastSeen)
}

// TestPositionClone verifies that Clone copies every field.
func TestPositionClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Position)(nil).Clone())

	p := &Position{TagID: 3, DisplayName: "Bob Wilson", X: 1.25, Y: 2.5, Tier: "ok"}
	c := p.Clone()

	require.Equal(t, p, c)
	require.NotSame(t, p, c)
	require.InDelta(t, 1.25, c.Point().X, 1e-12)
}
