/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock implements the virtual clock and the timestamp scheduling
// engine that fires work/break and resync callbacks at the right instants.
package clock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/belfry/internal/schedule"
	"github.com/friendsincode/belfry/internal/telemetry"
	"github.com/friendsincode/belfry/internal/timesource"
)

// Callback is an opaque asynchronous action fired by the clock. The clock
// awaits its completion and ignores everything about it except failure,
// which is logged and never stops the scheduling loop.
type Callback func(ctx context.Context) error

// Option configures a VirtualClock.
type Option func(*VirtualClock)

// WithStrictOrdering serializes the boundary and resync channels behind a
// single dispatch lock. By default the two channels are independent and
// firings due at the same instant may run in either order.
func WithStrictOrdering() Option {
	return func(c *VirtualClock) {
		c.dispatchMu = &sync.Mutex{}
	}
}

// VirtualClock owns the authoritative current time and the two firing
// channels (work/break boundaries and resync checkpoints). All state is
// mutated under one mutex; the channel loops re-validate their targets
// after every wake-up, so SetTimestamps and SyncTime are safe to call at
// any moment from any goroutine.
type VirtualClock struct {
	logger zerolog.Logger
	source timesource.Source

	mu       sync.Mutex
	baseWall time.Time // virtual time observed at baseMono
	baseMono time.Time // real reading the monotonic delta runs from

	boundaries []schedule.BoundaryEvent
	workCB     Callback
	breakCB    Callback

	checkpoints []schedule.TimeOfDay
	resyncCB    Callback

	bells   *channel
	resyncs *channel

	dispatchMu *sync.Mutex // non-nil only with WithStrictOrdering
}

// New constructs a virtual clock seeded from the system clock. The first
// SyncTime call replaces the seed with the source's notion of now.
func New(source timesource.Source, logger zerolog.Logger, opts ...Option) *VirtualClock {
	c := &VirtualClock{
		logger:   logger.With().Str("component", "virtual_clock").Logger(),
		source:   source,
		baseWall: time.Now(),
		baseMono: time.Now(),
		bells:    newChannel("bells"),
		resyncs:  newChannel("resync"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the clock's present value: monotonic non-decreasing between
// explicit resyncs, stepping only as a result of SyncTime.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *VirtualClock) now() time.Time {
	return c.baseWall.Add(time.Since(c.baseMono))
}

// SyncTime reads the real-time source and rebases the virtual clock. On
// failure the clock keeps its last known value and the error is returned
// so the host can retry; pending waits are only invalidated on success.
func (c *VirtualClock) SyncTime(ctx context.Context) error {
	t, err := c.source.Now(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("time source unreadable, keeping last known time")
		return fmt.Errorf("sync time: %w", err)
	}

	c.mu.Lock()
	drift := t.Sub(c.now())
	c.baseWall = t
	c.baseMono = time.Now()
	c.bells.bump()
	c.resyncs.bump()
	c.mu.Unlock()

	telemetry.ClockDriftSeconds.Set(drift.Seconds())
	c.logger.Info().
		Time("now", t).
		Dur("drift", drift).
		Msg("virtual clock synced")
	return nil
}

// SetTimestamps atomically replaces the boundary event list. A pending
// wait on the bells channel is invalidated and recomputed against the new
// list; entries already passed today resolve to tomorrow's occurrence.
func (c *VirtualClock) SetTimestamps(events []schedule.BoundaryEvent) {
	sorted := make([]schedule.BoundaryEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	c.mu.Lock()
	c.boundaries = sorted
	c.bells.bump()
	c.mu.Unlock()

	if len(sorted) == 0 {
		c.logger.Warn().Msg("boundary schedule is empty, bells channel will not fire")
		return
	}
	c.logger.Debug().Int("count", len(sorted)).Msg("boundary timestamps replaced")
}

// AddWBCallbacks registers the work and break handlers. At most one pair
// is active; the last registration wins.
func (c *VirtualClock) AddWBCallbacks(work, brk Callback) {
	c.mu.Lock()
	c.workCB = work
	c.breakCB = brk
	c.mu.Unlock()
}

// AddTimestampCallback registers the resync checkpoint list and the
// handler fired at each checkpoint.
func (c *VirtualClock) AddTimestampCallback(checkpoints []schedule.TimeOfDay, cb Callback) {
	sorted := make([]schedule.TimeOfDay, len(checkpoints))
	copy(sorted, checkpoints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	c.mu.Lock()
	c.checkpoints = sorted
	c.resyncCB = cb
	c.resyncs.bump()
	c.mu.Unlock()

	if len(sorted) == 0 {
		c.logger.Warn().Msg("resync checkpoints are empty, resync channel will not fire")
	}
}

// Boundaries returns a copy of the current boundary event list.
func (c *VirtualClock) Boundaries() []schedule.BoundaryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schedule.BoundaryEvent, len(c.boundaries))
	copy(out, c.boundaries)
	return out
}

// Checkpoints returns a copy of the resync checkpoint list.
func (c *VirtualClock) Checkpoints() []schedule.TimeOfDay {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schedule.TimeOfDay, len(c.checkpoints))
	copy(out, c.checkpoints)
	return out
}

// Run drives both firing channels until ctx is cancelled, which is the
// only way out. Errors inside handlers never terminate the loop.
func (c *VirtualClock) Run(ctx context.Context) error {
	c.logger.Info().Msg("virtual clock started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runChannel(ctx, c.bells, c.nextBoundary)
	}()
	go func() {
		defer wg.Done()
		c.runChannel(ctx, c.resyncs, c.nextCheckpoint)
	}()
	wg.Wait()

	c.logger.Info().Msg("virtual clock stopped")
	return ctx.Err()
}

// nextBoundary computes the soonest boundary event strictly after the
// current virtual time. Recomputed fresh on every call so a list
// replacement mid-wait can never leave a stale target behind.
func (c *VirtualClock) nextBoundary() (target, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.bells.generation()
	times := make([]schedule.TimeOfDay, len(c.boundaries))
	for i, ev := range c.boundaries {
		times[i] = ev.Time
	}
	idx, at, ok := NextOccurrence(c.now(), times)
	if !ok {
		return target{}, gen, false
	}
	ev := c.boundaries[idx]
	return target{at: at, fire: c.boundaryFirer(ev.Kind)}, gen, true
}

func (c *VirtualClock) nextCheckpoint() (target, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.resyncs.generation()
	idx, at, ok := NextOccurrence(c.now(), c.checkpoints)
	if !ok {
		return target{}, gen, false
	}
	cb := c.resyncCB
	tod := c.checkpoints[idx]
	return target{at: at, fire: func(ctx context.Context) {
		c.dispatch(ctx, c.resyncs, tod.String(), "resync", cb)
	}}, gen, true
}

// boundaryFirer resolves the registered handler at fire time, so a late
// AddWBCallbacks registration still wins.
func (c *VirtualClock) boundaryFirer(kind schedule.BoundaryKind) func(context.Context) {
	return func(ctx context.Context) {
		c.mu.Lock()
		var cb Callback
		switch kind {
		case schedule.KindWorkStart:
			cb = c.workCB
		case schedule.KindBreakStart:
			cb = c.breakCB
		}
		c.mu.Unlock()
		c.dispatch(ctx, c.bells, string(kind), string(kind), cb)
	}
}
