package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/geometry"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/snapshot"
)

// Outcome classifies how an inbound message was handled.
type Outcome string

const (
	// OutcomeAccepted means the observation reached the aggregator.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeMalformed means the payload failed to decode or validate.
	OutcomeMalformed Outcome = "malformed"
	// OutcomeUnregisteredTag means the tag is not in the roster.
	OutcomeUnregisteredTag Outcome = "unregistered_tag"
	// OutcomeUnregisteredAnchor means the anchor is not in the roster.
	OutcomeUnregisteredAnchor Outcome = "unregistered_anchor"
	// OutcomeStatus means the message was an anchor status notice.
	OutcomeStatus Outcome = "status"
)

const (
	// DefaultQueueSize is the inbox capacity used when none is configured.
	DefaultQueueSize = 1024

	// errorBufferSize is the capacity of the malformed-input error channel.
	errorBufferSize = 64

	// minSweepInterval bounds how often the anchor expiry sweep runs.
	minSweepInterval = 100 * time.Millisecond
)

// ErrStopped is returned when a command is sent to an engine that is not running.
var ErrStopped = errors.New("engine stopped")

// Recorder receives engine events for metrics.
type Recorder interface {
	ObservationProcessed(outcome Outcome)
	PositionSolved(ok bool)
	RosterApplied(tags, anchors int)
	StateSize(trackedTags, onlineAnchors int)
}

// nopRecorder discards every event.
type nopRecorder struct{}

func (nopRecorder) ObservationProcessed(Outcome) {}
func (nopRecorder) PositionSolved(bool)          {}
func (nopRecorder) RosterApplied(int, int)       {}
func (nopRecorder) StateSize(int, int)           {}

// Options configures an Engine.
type Options struct {
	// Bounds is the box solved positions are clamped into.
	Bounds geometry.Bounds
	// QueueSize is the inbox capacity.
	QueueSize int
	// DebugLogSize is the debug log capacity.
	DebugLogSize int
	// AnchorTTL marks anchors offline after this much silence. Zero disables expiry.
	AnchorTTL time.Duration
	// Recorder receives metrics events, nil discards them.
	Recorder Recorder
	// Store receives published state, nil creates a new one.
	Store *snapshot.Store
	// Clock returns the current time, nil uses time.Now.
	Clock func() time.Time
}

// command is a unit of work executed by the engine goroutine.
type command interface {
	apply(ctx context.Context, e *Engine)
}

// Engine is the single-writer owner of tracking state.
type Engine struct {
	inbox   chan command
	stopped chan struct{}
	errs    chan error

	// Fields below are owned by the goroutine running Run.
	tags       map[int]domain.Tag
	ledger     *Ledger
	aggregator *Aggregator

	store     *snapshot.Store
	debug     *DebugLog
	recorder  Recorder
	clock     func() time.Time
	anchorTTL time.Duration
}

// New creates an engine. Call Run to start processing.
func New(opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	if opts.Store == nil {
		opts.Store = snapshot.NewStore()
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ledger := NewLedger()

	return &Engine{
		inbox:      make(chan command, opts.QueueSize),
		stopped:    make(chan struct{}),
		errs:       make(chan error, errorBufferSize),
		tags:       make(map[int]domain.Tag),
		ledger:     ledger,
		aggregator: NewAggregator(geometry.NewSolver(opts.Bounds), ledger),
		store:      opts.Store,
		debug:      NewDebugLog(opts.DebugLogSize),
		recorder:   opts.Recorder,
		clock:      opts.Clock,
		anchorTTL:  opts.AnchorTTL,
	}
}

// Store returns the snapshot store the engine publishes to.
func (e *Engine) Store() *snapshot.Store {
	return e.store
}

// DebugLog returns the log of recent inbound messages.
func (e *Engine) DebugLog() *DebugLog {
	return e.debug
}

// Errors returns malformed-input errors. Errors are dropped when nobody reads
// and the buffer is full.
func (e *Engine) Errors() <-chan error {
	return e.errs
}

// Run processes commands until ctx is canceled. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "engine")
	defer close(e.stopped)

	var sweep <-chan time.Time

	if e.anchorTTL > 0 {
		ticker := time.NewTicker(max(e.anchorTTL/2, minSweepInterval))
		defer ticker.Stop()

		sweep = ticker.C
	}

	logger.InfoKV(ctx, "Engine started", "queue_size", cap(e.inbox), "anchor_ttl", e.anchorTTL.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Engine stopped")
			return nil
		case cmd := <-e.inbox:
			e.execute(ctx, cmd)
		case <-sweep:
			e.execute(ctx, sweepCommand{done: nil})
		}
	}
}

// execute runs a command and contains any panic so one bad message cannot
// stop the engine.
func (e *Engine) execute(ctx context.Context, cmd command) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Command panicked", "command", fmt.Sprintf("%T", cmd), "panic", r)
		}
	}()

	cmd.apply(ctx, e)
}

// Accept queues an inbound message. It blocks while the inbox is full.
func (e *Engine) Accept(ctx context.Context, msg Message) error {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = e.clock()
	}

	return e.enqueue(ctx, observationCommand{msg: msg})
}

// ReloadRoster replaces the tag and anchor roster and purges derived state of
// removed tags and anchors. It returns once the reload has been applied.
func (e *Engine) ReloadRoster(ctx context.Context, tags []domain.Tag, anchors []domain.AnchorSite) error {
	done := make(chan struct{})

	cmd := rosterCommand{
		tags:    tags,
		anchors: anchors,
		done:    done,
	}

	return e.wait(ctx, cmd, done)
}

// Flush returns once every message queued before the call has been processed.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})

	return e.wait(ctx, barrierCommand{done: done}, done)
}

// Sweep runs the anchor expiry check immediately and waits for it.
func (e *Engine) Sweep(ctx context.Context) error {
	done := make(chan struct{})

	return e.wait(ctx, sweepCommand{done: done}, done)
}

// Observations returns the stored observations of a tag. It is served by the
// engine goroutine.
func (e *Engine) Observations(ctx context.Context, tagID int) ([]domain.Observation, error) {
	done := make(chan struct{})
	cmd := &inspectCommand{tagID: tagID, done: done}

	if err := e.wait(ctx, cmd, done); err != nil {
		return nil, err
	}

	return cmd.result, nil
}

// enqueue sends cmd to the inbox.
func (e *Engine) enqueue(ctx context.Context, cmd command) error {
	select {
	case e.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// wait sends cmd and blocks until done is closed.
func (e *Engine) wait(ctx context.Context, cmd command, done <-chan struct{}) error {
	if err := e.enqueue(ctx, cmd); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// observationCommand carries one inbound message.
type observationCommand struct {
	msg Message
}

func (c observationCommand) apply(ctx context.Context, e *Engine) {
	outcome := e.ingest(ctx, c.msg)
	e.recorder.ObservationProcessed(outcome)

	switch outcome {
	case OutcomeAccepted, OutcomeMalformed, OutcomeStatus:
		e.debug.Add(DebugEntry{
			ReceivedAt: c.msg.ReceivedAt,
			Topic:      c.msg.Topic,
			Payload:    string(c.msg.Payload),
			Outcome:    outcome,
		})
	case OutcomeUnregisteredTag, OutcomeUnregisteredAnchor:
		// Expected steady-state noise, not recorded.
	}
}

// ingest runs the pipeline for a single message.
func (e *Engine) ingest(ctx context.Context, msg Message) Outcome {
	if IsStatusTopic(msg.Topic) {
		logger.DebugKV(ctx, "Anchor status notice", "topic", msg.Topic, "payload", string(msg.Payload))
		return OutcomeStatus
	}

	obs, err := ParseObservation(msg)
	if err != nil {
		logger.WarnKV(ctx, "Dropping malformed observation", "topic", msg.Topic, "error", err)
		e.report(fmt.Errorf("topic %q: %w", msg.Topic, err))

		return OutcomeMalformed
	}

	tag, ok := e.tags[obs.TagID]
	if !ok {
		return OutcomeUnregisteredTag
	}

	anchor, ok := e.ledger.Observe(obs.AnchorID, obs.Timestamp)
	if !ok {
		return OutcomeUnregisteredAnchor
	}

	e.store.PutAnchor(anchor)

	position, solved := e.aggregator.Update(tag, obs)
	e.recorder.PositionSolved(solved)

	if solved {
		e.store.PutPosition(position)
		logger.DebugKV(ctx, "Position updated",
			"tag_id", position.TagID, "x", position.X, "y", position.Y, "tier", position.Tier)
	}

	e.recorder.StateSize(e.aggregator.Len(), e.ledger.OnlineCount())

	return OutcomeAccepted
}

// report publishes err without blocking the engine.
func (e *Engine) report(err error) {
	select {
	case e.errs <- err:
	default:
	}
}

// rosterCommand replaces the roster.
type rosterCommand struct {
	tags    []domain.Tag
	anchors []domain.AnchorSite
	done    chan struct{}
}

func (c rosterCommand) apply(ctx context.Context, e *Engine) {
	defer close(c.done)

	tags := make(map[int]domain.Tag, len(c.tags))
	for _, t := range c.tags {
		tags[t.TagID] = t
	}

	e.tags = tags

	inRoster := func(tagID int) bool {
		_, ok := tags[tagID]
		return ok
	}

	purged := e.aggregator.Retain(inRoster)

	// Positions are checked separately, an estimate may outlive its buffer.
	for _, p := range e.store.Positions() {
		tag, ok := tags[p.TagID]
		if !ok {
			purged = append(purged, p.TagID)
			continue
		}

		if tag.DisplayName != p.DisplayName || tag.ExternalID != p.ExternalID {
			p.DisplayName, p.ExternalID = tag.DisplayName, tag.ExternalID
			e.store.PutPosition(&p)
		}
	}

	slices.Sort(purged)
	purged = slices.Compact(purged)
	e.store.DeletePositions(purged...)

	removedAnchors := e.ledger.Reload(c.anchors)
	e.aggregator.ForgetAnchors(removedAnchors...)
	e.store.SetAnchors(e.ledger.Anchors())

	e.recorder.RosterApplied(len(tags), len(e.ledger.anchors))
	e.recorder.StateSize(e.aggregator.Len(), e.ledger.OnlineCount())

	if len(purged) > 0 || len(removedAnchors) > 0 {
		logger.InfoKV(ctx, "Roster reload purged state", "tags", purged, "anchors", removedAnchors)
	}
}

// sweepCommand marks silent anchors offline. done may be nil.
type sweepCommand struct {
	done chan struct{}
}

func (c sweepCommand) apply(ctx context.Context, e *Engine) {
	if c.done != nil {
		defer close(c.done)
	}

	changed := e.ledger.Expire(e.clock(), e.anchorTTL)

	for i := range changed {
		e.store.PutAnchor(&changed[i])
		logger.InfoKV(ctx, "Anchor went offline", "anchor_id", changed[i].AnchorID)
	}

	if len(changed) > 0 {
		e.recorder.StateSize(e.aggregator.Len(), e.ledger.OnlineCount())
	}
}

// barrierCommand signals that every earlier command has run.
type barrierCommand struct {
	done chan struct{}
}

func (c barrierCommand) apply(context.Context, *Engine) {
	close(c.done)
}

// inspectCommand reads aggregator state on the engine goroutine.
type inspectCommand struct {
	tagID  int
	result []domain.Observation
	done   chan struct{}
}

func (c *inspectCommand) apply(_ context.Context, e *Engine) {
	defer close(c.done)

	c.result = e.aggregator.Observations(c.tagID)
}
