package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/repository/roster"
	"github.com/oshokin/uwb-tracker/internal/transport/mqtt"
)

// Options controls the simulator.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Interval is the time between publishing rounds.
	Interval time.Duration
	// Ticks stops the simulator after this many rounds. Zero runs until canceled.
	Ticks int
	// Seed makes the walk reproducible. Zero picks a random seed.
	Seed uint64
	// HazardTag is the tag that carries alert readings. Negative disables spikes,
	// zero picks the last tag of the roster.
	HazardTag int
	// MQTTClientFactory replaces the paho client, nil uses the real one.
	MQTTClientFactory mqtt.ClientFactory
}

// DefaultInterval is the default publishing interval.
const DefaultInterval = time.Second

var errEmptyRoster = errors.New("roster has no tags or anchors")

// Publisher sends one message.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any) error
}

// Run publishes synthetic reports until ctx is canceled or Ticks rounds ran.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "uwb-simulator")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	repo, err := roster.Open(ctx, cfg.Roster)
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}

	defer func() {
		_ = repo.Close()
	}()

	tags, err := repo.Tags(ctx)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	anchors, err := repo.Anchors(ctx)
	if err != nil {
		return fmt.Errorf("load anchors: %w", err)
	}

	if len(tags) == 0 || len(anchors) == 0 {
		return errEmptyRoster
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	hazardTag := opts.HazardTag
	if hazardTag == 0 {
		hazardTag = tags[len(tags)-1].TagID
	}

	publisher, err := mqtt.Dial(cfg.MQTT, cfg.Timeout, opts.MQTTClientFactory)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer publisher.Close()

	w := newWorld(rand.New(rand.NewPCG(seed, seed)), tags, anchors, cfg.Bounds(), hazardTag)

	logger.InfoKV(ctx, "Publishing simulated reports",
		"broker", cfg.MQTT.Broker,
		"tags", len(tags),
		"anchors", len(anchors),
		"hazard_tag", hazardTag,
		"seed", seed)

	return simulate(ctx, publisher, w, opts.Interval, opts.Ticks)
}

// simulate runs the publishing loop.
func simulate(ctx context.Context, pub Publisher, w *world, interval time.Duration, ticks int) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 1; ticks <= 0 || round <= ticks; round++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			reports := w.step(now)

			for _, r := range reports {
				if err := pub.PublishJSON(ctx, fmt.Sprintf("uwb/%s/data", r.AnchorID), r); err != nil {
					if ctx.Err() != nil {
						return nil
					}

					logger.WarnKV(ctx, "Publish failed", "anchor_id", r.AnchorID, "tag_id", r.TagID, "error", err)
				}
			}

			logger.DebugKV(ctx, "Published round", "round", round, "reports", len(reports))
		}
	}

	return nil
}
