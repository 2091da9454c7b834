package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/uwb-tracker/internal/config"
	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/hazard"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between position checks.
	PollInterval time.Duration
	// MinTier is the lowest tier that gets reported.
	MinTier hazard.Tier
}

// DefaultPollInterval defines the default polling interval.
const DefaultPollInterval = 5 * time.Second

// PositionLister is the part of the tracker client the watcher uses.
type PositionLister interface {
	ListPositions(ctx context.Context) ([]domain.Position, error)
}

// Run polls positions until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "uwb-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.MinTier == "" {
		opts.MinTier = hazard.TierWarning
	}

	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial tracker: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching positions",
		"server_address", serverAddress,
		"interval", opts.PollInterval.String(),
		"min_tier", string(opts.MinTier))

	return poll(ctx, client, opts)
}

// poll runs the ticker loop against lister.
func poll(ctx context.Context, lister PositionLister, opts *Options) error {
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	w := newWatch(opts.MinTier)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			positions, err := lister.ListPositions(ctx)
			if err != nil {
				logger.ErrorKV(ctx, "List positions failed", "error", err)
				continue
			}

			w.check(ctx, positions)
		}
	}
}

// watch remembers the last reported tier per tag.
type watch struct {
	minTier hazard.Tier
	tiers   map[int]hazard.Tier
}

func newWatch(minTier hazard.Tier) *watch {
	return &watch{
		minTier: minTier,
		tiers:   make(map[int]hazard.Tier),
	}
}

// check logs tags at or above the minimum tier and tier changes, returning the
// tags currently reported.
func (w *watch) check(ctx context.Context, positions []domain.Position) []domain.Position {
	var reported []domain.Position

	seen := make(map[int]struct{}, len(positions))

	for _, p := range positions {
		seen[p.TagID] = struct{}{}

		tier := hazard.Tier(p.Tier)
		previous, known := w.tiers[p.TagID]
		w.tiers[p.TagID] = tier

		if tier.AtLeast(w.minTier) {
			reported = append(reported, p)

			logger.WarnKV(ctx, "Hazard reading",
				"tag_id", p.TagID,
				"name", p.DisplayName,
				"tier", p.Tier,
				"gas", p.Hazard,
				"x", p.X,
				"y", p.Y,
				"last_seen", p.LastSeen.Format(time.RFC3339))

			continue
		}

		if known && previous.AtLeast(w.minTier) {
			logger.InfoKV(ctx, "Hazard cleared", "tag_id", p.TagID, "name", p.DisplayName, "tier", p.Tier)
		}
	}

	for tagID := range w.tiers {
		if _, ok := seen[tagID]; !ok {
			delete(w.tiers, tagID)
		}
	}

	return reported
}
