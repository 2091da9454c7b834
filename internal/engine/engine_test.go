package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/geometry"
)

// squareSites are four anchors on the corners of a 10m x 10m area.
//
//nolint:gochecknoglobals // Read-only test fixture.
var squareSites = []domain.AnchorSite{
	{AnchorID: "A1", Name: "North-West", X: 0, Y: 0},
	{AnchorID: "A2", Name: "North-East", X: 10, Y: 0},
	{AnchorID: "A3", Name: "South-East", X: 10, Y: 10},
	{AnchorID: "A4", Name: "South-West", X: 0, Y: 10},
}

// countingRecorder tallies engine events.
type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	solved   int
	unsolved int
	reloads  int
}

func (r *countingRecorder) ObservationProcessed(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outcomes == nil {
		r.outcomes = make(map[Outcome]int)
	}

	r.outcomes[outcome]++
}

func (r *countingRecorder) PositionSolved(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ok {
		r.solved++
	} else {
		r.unsolved++
	}
}

func (r *countingRecorder) RosterApplied(int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reloads++
}

func (r *countingRecorder) StateSize(int, int) {}

func (r *countingRecorder) outcome(o Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.outcomes[o]
}

func (r *countingRecorder) solves() (solved, unsolved int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.solved, r.unsolved
}

// startEngine runs an engine for the duration of the test.
func startEngine(t *testing.T, opts Options) *Engine {
	t.Helper()

	if opts.Bounds == (geometry.Bounds{}) {
		opts.Bounds = geometry.NewBounds(0, 0, 10, 10)
	}

	e := New(opts)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = e.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return e
}

// payload renders an inbound message with the exact distance from truth to anchor.
func payload(t *testing.T, tagID int, site domain.AnchorSite, truth r2.Vec, gas float64, ts time.Time) Message {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"tagId":     tagID,
		"fullName":  "ignored",
		"empId":     "ignored",
		"anchorId":  site.AnchorID,
		"distance":  r2.Norm(r2.Sub(truth, site.Point())),
		"gas":       gas,
		"timestamp": ts.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	return Message{Topic: fmt.Sprintf("uwb/%s/data", site.AnchorID), Payload: body}
}

// accept queues messages and waits until they are processed.
func accept(t *testing.T, e *Engine, msgs ...Message) {
	t.Helper()

	ctx := context.Background()
	for _, msg := range msgs {
		require.NoError(t, e.Accept(ctx, msg))
	}

	require.NoError(t, e.Flush(ctx))
}

// TestEngine_EndToEndSquare solves the reference scenario with three corners.
func TestEngine_EndToEndSquare(t *testing.T) {
	t.Parallel()

	rec := new(countingRecorder)
	e := startEngine(t, Options{Recorder: rec})
	ctx := context.Background()

	tags := []domain.Tag{{TagID: 1, DisplayName: "John Smith", ExternalID: "EMP-001"}}
	require.NoError(t, e.ReloadRoster(ctx, tags, squareSites))

	truth := r2.Vec{X: 3, Y: 4}
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	accept(t, e,
		payload(t, 1, squareSites[0], truth, 12, ts),
		payload(t, 1, squareSites[1], truth, 12, ts),
		payload(t, 1, squareSites[2], truth, 55, ts.Add(time.Second)),
	)

	p, ok := e.Store().Position(1)
	require.True(t, ok)
	require.InDelta(t, 3.0, p.X, 1e-6)
	require.InDelta(t, 4.0, p.Y, 1e-6)
	require.Equal(t, "John Smith", p.DisplayName)
	require.Equal(t, "warning", p.Tier)
	require.Equal(t, ts.Add(time.Second), p.LastSeen.UTC())

	anchors := e.Store().Anchors()
	require.Len(t, anchors, 4)
	require.True(t, anchors[0].Online)
	require.True(t, anchors[2].Online)
	require.False(t, anchors[3].Online)
	require.Equal(t, ts.Add(time.Second), anchors[2].LastSeen.UTC())

	require.Equal(t, 3, rec.outcome(OutcomeAccepted))
	solved, unsolved := rec.solves()
	require.Equal(t, 1, solved)
	require.Equal(t, 2, unsolved)
	require.Equal(t, 3, e.DebugLog().Len())
}

// TestEngine_TwoAnchorsOnly ensures a tag seen by two anchors has no position.
func TestEngine_TwoAnchorsOnly(t *testing.T) {
	t.Parallel()

	e := startEngine(t, Options{})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 9, DisplayName: "Nine"}}, squareSites))

	truth := r2.Vec{X: 5, Y: 5}
	ts := time.Now()

	for i := 0; i < 5; i++ {
		accept(t, e,
			payload(t, 9, squareSites[0], truth, 0, ts),
			payload(t, 9, squareSites[1], truth, 0, ts),
		)
	}

	require.Empty(t, e.Store().Positions())

	stored, err := e.Observations(ctx, 9)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	accept(t, e, payload(t, 9, squareSites[3], truth, 0, ts))

	_, ok := e.Store().Position(9)
	require.True(t, ok)
}

// TestEngine_UnregisteredTag ensures unknown tags never surface anywhere.
func TestEngine_UnregisteredTag(t *testing.T) {
	t.Parallel()

	rec := new(countingRecorder)
	e := startEngine(t, Options{Recorder: rec})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1, DisplayName: "One"}}, squareSites))

	truth := r2.Vec{X: 2, Y: 2}
	ts := time.Now()

	accept(t, e,
		payload(t, 42, squareSites[0], truth, 90, ts),
		payload(t, 42, squareSites[1], truth, 90, ts),
		payload(t, 42, squareSites[2], truth, 90, ts),
	)

	require.Empty(t, e.Store().Positions())
	require.Zero(t, e.DebugLog().Len())
	require.Equal(t, 3, rec.outcome(OutcomeUnregisteredTag))

	stored, err := e.Observations(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, stored)

	// Unknown tags do not mark anchors online either.
	for _, a := range e.Store().Anchors() {
		require.False(t, a.Online, a.AnchorID)
	}
}

// TestEngine_UnregisteredAnchor ensures observations from unknown anchors are dropped.
func TestEngine_UnregisteredAnchor(t *testing.T) {
	t.Parallel()

	rec := new(countingRecorder)
	e := startEngine(t, Options{Recorder: rec})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1, DisplayName: "One"}}, squareSites))

	accept(t, e, payload(t, 1, domain.AnchorSite{AnchorID: "rogue", X: 3, Y: 3}, r2.Vec{X: 1, Y: 1}, 0, time.Now()))

	stored, err := e.Observations(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Equal(t, 1, rec.outcome(OutcomeUnregisteredAnchor))
}

// TestEngine_MalformedDoesNotStopPipeline verifies bad input is reported and skipped.
func TestEngine_MalformedDoesNotStopPipeline(t *testing.T) {
	t.Parallel()

	rec := new(countingRecorder)
	e := startEngine(t, Options{Recorder: rec})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1, DisplayName: "One"}}, squareSites))

	truth := r2.Vec{X: 6, Y: 2}
	ts := time.Now()

	accept(t, e,
		Message{Topic: "uwb/A1/data", Payload: []byte(`{not json`)},
		payload(t, 1, squareSites[0], truth, 0, ts),
		Message{Topic: "uwb/A2/data", Payload: []byte(`{"tagId":1,"anchorId":"A2","distance":-3}`)},
		payload(t, 1, squareSites[1], truth, 0, ts),
		Message{Topic: "uwb/anchor/A3/status", Payload: []byte(`online`)},
		payload(t, 1, squareSites[2], truth, 0, ts),
	)

	_, ok := e.Store().Position(1)
	require.True(t, ok)
	require.Equal(t, 2, rec.outcome(OutcomeMalformed))
	require.Equal(t, 1, rec.outcome(OutcomeStatus))

	for range 2 {
		select {
		case err := <-e.Errors():
			require.ErrorIs(t, err, ErrMalformed)
		default:
			t.Fatal("expected a malformed-input error")
		}
	}

	entries := e.DebugLog().Entries(0)
	require.Len(t, entries, 6)
	require.Equal(t, OutcomeAccepted, entries[0].Outcome)
	require.Equal(t, OutcomeStatus, entries[1].Outcome)
	require.Equal(t, OutcomeMalformed, entries[5].Outcome)
}

// TestEngine_RosterReloadPurges verifies removed tags lose their buffer and
// position without new observations, and renamed tags are refreshed.
func TestEngine_RosterReloadPurges(t *testing.T) {
	t.Parallel()

	e := startEngine(t, Options{})
	ctx := context.Background()

	tags := []domain.Tag{
		{TagID: 3, DisplayName: "Bob Wilson"},
		{TagID: 7, DisplayName: "Seven"},
	}
	require.NoError(t, e.ReloadRoster(ctx, tags, squareSites))

	ts := time.Now()

	for _, tagID := range []int{3, 7} {
		truth := r2.Vec{X: float64(tagID), Y: 5}
		accept(t, e,
			payload(t, tagID, squareSites[0], truth, 0, ts),
			payload(t, tagID, squareSites[1], truth, 0, ts),
			payload(t, tagID, squareSites[2], truth, 0, ts),
		)
	}

	require.Len(t, e.Store().Positions(), 2)

	renamed := []domain.Tag{{TagID: 3, DisplayName: "Robert Wilson", ExternalID: "EMP-003"}}
	require.NoError(t, e.ReloadRoster(ctx, renamed, squareSites))

	positions := e.Store().Positions()
	require.Len(t, positions, 1)
	require.Equal(t, 3, positions[0].TagID)
	require.Equal(t, "Robert Wilson", positions[0].DisplayName)
	require.Equal(t, "EMP-003", positions[0].ExternalID)

	stored, err := e.Observations(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stored)

	// Liveness survives a reload for anchors that stay in the roster.
	require.True(t, e.Store().Anchors()[0].Online)

	// Tag 7 observations are now discarded.
	accept(t, e, payload(t, 7, squareSites[3], r2.Vec{X: 7, Y: 5}, 0, ts))

	_, ok := e.Store().Position(7)
	require.False(t, ok)
}

// TestEngine_AnchorRemovalShiftsWindow verifies removed anchors leave the
// per-tag buffer so the next anchors move into the first-three window.
func TestEngine_AnchorRemovalShiftsWindow(t *testing.T) {
	t.Parallel()

	e := startEngine(t, Options{})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1}}, squareSites))

	truth := r2.Vec{X: 2, Y: 8}
	ts := time.Now()

	accept(t, e,
		payload(t, 1, squareSites[0], truth, 0, ts),
		payload(t, 1, squareSites[1], truth, 0, ts),
		payload(t, 1, squareSites[2], truth, 0, ts),
		payload(t, 1, squareSites[3], truth, 0, ts),
	)

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1}}, squareSites[1:]))

	stored, err := e.Observations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.Equal(t, "A2", stored[0].AnchorID)
	require.Len(t, e.Store().Anchors(), 3)
}

// TestEngine_ClampBounds verifies the configured clamp box is applied.
func TestEngine_ClampBounds(t *testing.T) {
	t.Parallel()

	e := startEngine(t, Options{Bounds: geometry.NewBounds(0, 0, 3, 3)})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1}}, squareSites))

	truth := r2.Vec{X: 3, Y: 4}
	ts := time.Now()

	accept(t, e,
		payload(t, 1, squareSites[0], truth, 0, ts),
		payload(t, 1, squareSites[1], truth, 0, ts),
		payload(t, 1, squareSites[2], truth, 0, ts),
	)

	p, ok := e.Store().Position(1)
	require.True(t, ok)
	require.InDelta(t, 3.0, p.X, 1e-6)
	require.InDelta(t, 3.0, p.Y, 1e-6)
}

// TestEngine_AnchorExpiry verifies the optional sweep marks silent anchors offline.
func TestEngine_AnchorExpiry(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	)

	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	}

	e := startEngine(t, Options{AnchorTTL: time.Hour, Clock: clock})
	ctx := context.Background()

	require.NoError(t, e.ReloadRoster(ctx, []domain.Tag{{TagID: 1}}, squareSites))
	accept(t, e, payload(t, 1, squareSites[0], r2.Vec{X: 1, Y: 1}, 0, now))

	require.NoError(t, e.Sweep(ctx))
	require.True(t, e.Store().Anchors()[0].Online)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	require.NoError(t, e.Sweep(ctx))
	require.False(t, e.Store().Anchors()[0].Online)
}

// TestEngine_ConcurrentProducers feeds interleaved anchors from several goroutines.
func TestEngine_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	e := startEngine(t, Options{QueueSize: 4})
	ctx := context.Background()

	tags := []domain.Tag{{TagID: 1}, {TagID: 2}, {TagID: 3}}
	require.NoError(t, e.ReloadRoster(ctx, tags, squareSites))

	truths := map[int]r2.Vec{1: {X: 3, Y: 4}, 2: {X: 7, Y: 3}, 3: {X: 5, Y: 7}}
	ts := time.Now()

	perAnchor := make([][]Message, 0, len(squareSites))

	for _, site := range squareSites {
		var msgs []Message

		for round := 0; round < 10; round++ {
			for tagID, truth := range truths {
				msgs = append(msgs, payload(t, tagID, site, truth, 0, ts))
			}
		}

		perAnchor = append(perAnchor, msgs)
	}

	var wg sync.WaitGroup

	for _, msgs := range perAnchor {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for _, msg := range msgs {
				_ = e.Accept(ctx, msg)
			}
		}()
	}

	wg.Wait()
	require.NoError(t, e.Flush(ctx))

	for tagID, truth := range truths {
		p, ok := e.Store().Position(tagID)
		require.True(t, ok)
		require.InDelta(t, truth.X, p.X, 1e-6)
		require.InDelta(t, truth.Y, p.Y, 1e-6)

		stored, err := e.Observations(ctx, tagID)
		require.NoError(t, err)
		require.Len(t, stored, len(squareSites))
	}
}

// TestEngine_StoppedEngineRejects ensures commands fail once Run returns.
func TestEngine_StoppedEngineRejects(t *testing.T) {
	t.Parallel()

	e := New(Options{Bounds: geometry.NewBounds(0, 0, 10, 10), QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, e.Run(ctx))
	require.ErrorIs(t, e.Flush(context.Background()), ErrStopped)
}
