package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/repository/roster"
)

var errTestLoad = errors.New("test load error")

// memoryRoster is a minimal in-memory roster for tests.
type memoryRoster struct {
	roster.Repository

	mu      sync.Mutex
	tags    []domain.Tag
	anchors []domain.AnchorSite
	loadErr error
}

func (m *memoryRoster) Tags(context.Context) ([]domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.Tag(nil), m.tags...), m.loadErr
}

func (m *memoryRoster) Anchors(context.Context) ([]domain.AnchorSite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.AnchorSite(nil), m.anchors...), m.loadErr
}

func (m *memoryRoster) set(tags []domain.Tag, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tags, m.loadErr = tags, err
}

// recordingSink counts applied rosters.
type recordingSink struct {
	mu      sync.Mutex
	applied [][]domain.Tag
}

func (s *recordingSink) ReloadRoster(_ context.Context, tags []domain.Tag, _ []domain.AnchorSite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applied = append(s.applied, tags)

	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.applied)
}

// resultRecorder tallies reload outcomes.
type resultRecorder struct {
	mu       sync.Mutex
	ok, fail int
}

func (r *resultRecorder) RosterReloaded(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.fail++
	} else {
		r.ok++
	}
}

// TestResolveListenAddress checks override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("tracker.local:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", addr)

	addr, err = resolveListenAddress("tracker.local:50051", "127.0.0.1:9090")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoListenAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}

// TestReloader_AppliesOnlyChanges skips identical rosters and keeps the
// previous one when loading fails.
func TestReloader_AppliesOnlyChanges(t *testing.T) {
	t.Parallel()

	repo := &memoryRoster{tags: []domain.Tag{{TagID: 1, DisplayName: "One"}}}
	sink := new(recordingSink)
	results := new(resultRecorder)
	r := newReloader(repo, sink, results, time.Hour)
	ctx := context.Background()

	require.NoError(t, r.reload(ctx))
	require.NoError(t, r.reload(ctx))
	require.Equal(t, 1, sink.count())

	repo.set(nil, errTestLoad)
	require.ErrorIs(t, r.reload(ctx), errTestLoad)
	require.Equal(t, 1, sink.count())
	require.Equal(t, []domain.Tag{{TagID: 1, DisplayName: "One"}}, r.tags)

	repo.set([]domain.Tag{{TagID: 1, DisplayName: "Uno"}}, nil)
	require.NoError(t, r.reload(ctx))
	require.Equal(t, 2, sink.count())

	require.Equal(t, 3, results.ok)
	require.Equal(t, 1, results.fail)
}

// TestReloader_Trigger reloads promptly on request.
func TestReloader_Trigger(t *testing.T) {
	t.Parallel()

	repo := &memoryRoster{}
	sink := new(recordingSink)
	r := newReloader(repo, sink, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- r.Run(ctx) }()

	r.Trigger()
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// TestReloader_WatchesFiles reloads when a roster file changes.
func TestReloader_WatchesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tagsPath := filepath.Join(dir, "workers.json")
	repo := roster.NewFileRepository(tagsPath, filepath.Join(dir, "anchors.json"))
	sink := new(recordingSink)
	r := newReloader(repo, sink, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	require.NoError(t, r.reload(ctx))
	require.Equal(t, 1, sink.count())

	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		body := []byte(`[{"tagId": 5, "fullName": "Five"}]`)
		if err := os.WriteFile(tagsPath, body, 0o600); err != nil {
			return false
		}

		return sink.count() >= 2
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
