/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/friendsincode/belfry/internal/telemetry"
)

// channel is one independent firing pipeline. Its generation counter is
// bumped by every mutation that can move the pipeline's next target;
// waiters compare generations after waking to detect stale waits.
type channel struct {
	name   string
	gen    atomic.Uint64
	notify chan struct{}
}

func newChannel(name string) *channel {
	return &channel{name: name, notify: make(chan struct{}, 1)}
}

// bump invalidates any pending wait on the channel.
func (ch *channel) bump() {
	ch.gen.Add(1)
	select {
	case ch.notify <- struct{}{}:
	default:
	}
}

func (ch *channel) generation() uint64 {
	return ch.gen.Load()
}

// target is a pending firing: the absolute virtual instant it is due and
// the dispatch to run. Targets are derived, never stored; each waiting
// cycle computes a fresh one.
type target struct {
	at   time.Time
	fire func(context.Context)
}

// runChannel is the waiting loop of one firing pipeline: compute the next
// target, sleep until it is due or the state it was computed from is
// invalidated, then fire. An empty timestamp list parks the channel until
// a registration arrives; it is never an error.
func (c *VirtualClock) runChannel(ctx context.Context, ch *channel, next func() (target, uint64, bool)) {
	logger := c.logger.With().Str("channel", ch.name).Logger()

	for {
		tgt, gen, ok := next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-ch.notify:
				continue
			}
		}

		wait := tgt.at.Sub(c.Now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-ch.notify:
			timer.Stop()
			logger.Debug().Time("target", tgt.at).Msg("pending wait invalidated, recomputing")
			continue
		case <-timer.C:
		}

		if ch.generation() != gen {
			// Clock or schedule moved while the timer was firing; the
			// target may be stale, so recompute instead of firing.
			continue
		}

		tgt.fire(ctx)
	}
}

// dispatch invokes a handler with failure isolation: a nil handler is a
// warning, an error is logged, a panic is recovered. At most one handler
// per channel is ever in flight because dispatch runs inside the channel
// loop; WithStrictOrdering extends that exclusion across both channels.
func (c *VirtualClock) dispatch(ctx context.Context, ch *channel, label, kind string, cb Callback) {
	if cb == nil {
		c.logger.Warn().Str("channel", ch.name).Str("event", label).Msg("no handler registered, skipping firing")
		return
	}

	if c.dispatchMu != nil {
		c.dispatchMu.Lock()
		defer c.dispatchMu.Unlock()
	}

	started := time.Now()
	telemetry.FiringsTotal.WithLabelValues(kind).Inc()
	c.logger.Info().Str("channel", ch.name).Str("event", label).Msg("firing handler")

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return cb(ctx)
	}()

	telemetry.HandlerDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	if err != nil {
		telemetry.HandlerFailuresTotal.WithLabelValues(ch.name).Inc()
		c.logger.Error().Err(err).Str("channel", ch.name).Str("event", label).Msg("handler failed")
		return
	}
	c.logger.Debug().Str("channel", ch.name).Str("event", label).Dur("took", time.Since(started)).Msg("handler finished")
}
