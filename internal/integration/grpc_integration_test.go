package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/oshokin/uwb-tracker/internal/config"
	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/service/common"
	"github.com/oshokin/uwb-tracker/internal/service/tracker"
)

//nolint:gochecknoglobals // Read-only test fixture.
var squareAnchors = []domain.AnchorSite{
	{AnchorID: "A1", X: 0, Y: 0},
	{AnchorID: "A2", X: 10, Y: 0},
	{AnchorID: "A3", X: 10, Y: 10},
	{AnchorID: "A4", X: 0, Y: 10},
}

// reservePort returns a free local TCP address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// writeJSON stores v at path.
func writeJSON(t *testing.T, path string, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

type trackerEnv struct {
	grpcAddr string
	httpAddr string
	dir      string
	broker   *memoryBroker
}

// startTracker runs the real tracker with a file roster and an in-memory broker.
// Tests using it must not run in parallel, the tracker sets the global gin mode.
func startTracker(t *testing.T, tags []domain.Tag) *trackerEnv {
	t.Helper()

	env := &trackerEnv{
		grpcAddr: reservePort(t),
		httpAddr: reservePort(t),
		dir:      t.TempDir(),
		broker:   new(memoryBroker),
	}

	writeJSON(t, filepath.Join(env.dir, "workers.json"), tags)
	writeJSON(t, filepath.Join(env.dir, "anchors.json"), squareAnchors)

	cfgPath := filepath.Join(env.dir, "uwb-tracker.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		MQTT:        config.MQTT{Broker: "tcp://127.0.0.1:1883"},
		GRPCAddress: env.grpcAddr,
		HTTPAddress: env.httpAddr,
		Roster: config.Roster{
			TagsFile:       filepath.Join(env.dir, "workers.json"),
			AnchorsFile:    filepath.Join(env.dir, "anchors.json"),
			ReloadInterval: 50 * time.Millisecond,
		},
		Engine:  config.Engine{Area: config.Area{MaxX: 10, MaxY: 10}},
		Timeout: 2 * time.Second,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- tracker.Run(ctx, &tracker.Options{
			ConfigPath:        cfgPath,
			GRPCListen:        env.grpcAddr,
			HTTPListen:        env.httpAddr,
			MQTTClientFactory: env.broker.factory(),
		})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool { return env.broker.subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	return env
}

// publish sends exact distances from truth to every anchor.
func (e *trackerEnv) publish(t *testing.T, tagID int, truth r2.Vec, gas float64) {
	t.Helper()

	for _, a := range squareAnchors {
		body, err := json.Marshal(map[string]any{
			"tagId":     tagID,
			"anchorId":  a.AnchorID,
			"distance":  r2.Norm(r2.Sub(truth, a.Point())),
			"gas":       gas,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
		require.NoError(t, err)

		e.broker.publish(nil, fmt.Sprintf("uwb/%s/data", a.AnchorID), body)
	}
}

// TestTracker_EndToEnd feeds reports through the broker and reads them back
// over gRPC and HTTP.
func TestTracker_EndToEnd(t *testing.T) {
	env := startTracker(t, []domain.Tag{
		{TagID: 1, DisplayName: "John Smith", ExternalID: "EMP-001"},
		{TagID: 4, DisplayName: "Alex Chen", ExternalID: "EMP-004"},
	})

	env.publish(t, 1, r2.Vec{X: 3, Y: 4}, 12)
	env.publish(t, 4, r2.Vec{X: 8, Y: 8}, 91)
	env.publish(t, 99, r2.Vec{X: 5, Y: 5}, 0)

	ctx := context.Background()

	client, err := common.Dial(ctx, env.grpcAddr, common.WithCallTimeout(2*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	var positions []domain.Position

	require.Eventually(t, func() bool {
		positions, err = client.ListPositions(ctx)
		return err == nil && len(positions) == 2
	}, 3*time.Second, 20*time.Millisecond)

	require.Equal(t, 1, positions[0].TagID)
	require.Equal(t, "John Smith", positions[0].DisplayName)
	require.InDelta(t, 3.0, positions[0].X, 1e-6)
	require.InDelta(t, 4.0, positions[0].Y, 1e-6)
	require.Equal(t, "ok", positions[0].Tier)
	require.Equal(t, "alert", positions[1].Tier)

	anchors, err := client.ListAnchors(ctx)
	require.NoError(t, err)
	require.Len(t, anchors, 4)

	for _, a := range anchors {
		require.True(t, a.Online, a.AnchorID)
		require.NotNil(t, a.LastSeen)
	}

	resp, err := http.Get("http://" + env.httpAddr + "/metrics")
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestTracker_RosterReload drops a tag removed from the roster file.
func TestTracker_RosterReload(t *testing.T) {
	env := startTracker(t, []domain.Tag{
		{TagID: 1, DisplayName: "John Smith"},
		{TagID: 2, DisplayName: "Maria Garcia"},
	})

	env.publish(t, 1, r2.Vec{X: 2, Y: 2}, 0)
	env.publish(t, 2, r2.Vec{X: 7, Y: 3}, 0)

	ctx := context.Background()

	client, err := common.Dial(ctx, env.grpcAddr)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	require.Eventually(t, func() bool {
		positions, err := client.ListPositions(ctx)
		return err == nil && len(positions) == 2
	}, 3*time.Second, 20*time.Millisecond)

	writeJSON(t, filepath.Join(env.dir, "workers.json"), []domain.Tag{{TagID: 2, DisplayName: "Maria Garcia"}})

	require.Eventually(t, func() bool {
		positions, err := client.ListPositions(ctx)
		return err == nil && len(positions) == 1 && positions[0].TagID == 2
	}, 3*time.Second, 20*time.Millisecond)
}
