/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/belfry/internal/schedule"
)

type stubSource struct {
	t   time.Time
	err error
}

func (s stubSource) Now(context.Context) (time.Time, error) { return s.t, s.err }

func startClock(t *testing.T, c *VirtualClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// tods builds a sorted TimeOfDay list from literals.
func tods(raw ...string) []schedule.TimeOfDay {
	out := make([]schedule.TimeOfDay, len(raw))
	for i, r := range raw {
		out[i] = schedule.MustTimeOfDay(r)
	}
	return out
}

func TestNextOccurrence(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	times := tods("07:00", "12:30", "18:00")

	tests := []struct {
		name    string
		now     time.Time
		wantIdx int
		wantAt  time.Time
	}{
		{
			name:    "midday picks next entry",
			now:     day.Add(10 * time.Hour),
			wantIdx: 1,
			wantAt:  day.Add(12*time.Hour + 30*time.Minute),
		},
		{
			name:    "exact hit skips to the following entry",
			now:     day.Add(12*time.Hour + 30*time.Minute),
			wantIdx: 2,
			wantAt:  day.Add(18 * time.Hour),
		},
		{
			name:    "after last entry wraps to tomorrow's first",
			now:     day.Add(23 * time.Hour),
			wantIdx: 0,
			wantAt:  day.AddDate(0, 0, 1).Add(7 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, at, ok := NextOccurrence(tt.now, times)
			if !ok {
				t.Fatal("NextOccurrence reported no occurrence")
			}
			if idx != tt.wantIdx {
				t.Errorf("idx = %d, want %d", idx, tt.wantIdx)
			}
			if !at.Equal(tt.wantAt) {
				t.Errorf("at = %v, want %v", at, tt.wantAt)
			}
		})
	}
}

func TestNextOccurrenceEmptyList(t *testing.T) {
	if _, _, ok := NextOccurrence(time.Now(), nil); ok {
		t.Fatal("empty list must report no occurrence")
	}
}

func TestPreviousOccurrence(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	times := tods("07:00", "12:30", "18:00")

	idx, at, ok := PreviousOccurrence(day.Add(10*time.Hour), times)
	if !ok || idx != 0 || !at.Equal(day.Add(7*time.Hour)) {
		t.Errorf("midday previous = (%d, %v, %v), want (0, %v, true)", idx, at, ok, day.Add(7*time.Hour))
	}

	// Before the first entry of the day the previous occurrence is
	// yesterday's last.
	idx, at, ok = PreviousOccurrence(day.Add(5*time.Hour), times)
	want := day.AddDate(0, 0, -1).Add(18 * time.Hour)
	if !ok || idx != 2 || !at.Equal(want) {
		t.Errorf("early-morning previous = (%d, %v, %v), want (2, %v, true)", idx, at, ok, want)
	}
}

func TestNowMonotonicBetweenSyncs(t *testing.T) {
	c := New(stubSource{t: time.Now()}, zerolog.Nop())

	last := c.Now()
	for i := 0; i < 100; i++ {
		now := c.Now()
		if now.Before(last) {
			t.Fatalf("Now went backwards: %v then %v", last, now)
		}
		last = now
	}
}

func TestSyncTimeRebases(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())

	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}
	if diff := c.Now().Sub(base); diff < 0 || diff > time.Second {
		t.Errorf("Now after sync drifted by %v from source time", diff)
	}
}

func TestSyncTimeKeepsLastValueOnFailure(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	c.source = stubSource{err: errors.New("api down")}
	if err := c.SyncTime(context.Background()); err == nil {
		t.Fatal("SyncTime with a dead source must return an error")
	}
	if diff := c.Now().Sub(base); diff < 0 || diff > time.Second {
		t.Errorf("failed sync moved the clock by %v", diff)
	}
}

func TestBoundaryFires(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	fired := make(chan string, 4)
	c.AddWBCallbacks(
		func(ctx context.Context) error { fired <- "work"; return nil },
		func(ctx context.Context) error { fired <- "break"; return nil },
	)
	c.SetTimestamps([]schedule.BoundaryEvent{{
		Time: schedule.FromClock(c.Now().Add(2 * time.Second)),
		Kind: schedule.KindWorkStart,
	}})

	startClock(t, c)

	select {
	case kind := <-fired:
		if kind != "work" {
			t.Errorf("fired %q, want work", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("boundary never fired")
	}

	// The same entry must not fire again until tomorrow.
	select {
	case kind := <-fired:
		t.Fatalf("unexpected second firing %q", kind)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestCheckpointFiresResync(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	fired := make(chan struct{}, 4)
	c.AddTimestampCallback(
		[]schedule.TimeOfDay{schedule.FromClock(c.Now().Add(2 * time.Second))},
		func(ctx context.Context) error { fired <- struct{}{}; return nil },
	)

	startClock(t, c)

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("checkpoint never fired")
	}
}

func TestEmptyScheduleParksChannel(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	fired := make(chan string, 4)
	c.AddWBCallbacks(
		func(ctx context.Context) error { fired <- "work"; return nil },
		func(ctx context.Context) error { fired <- "break"; return nil },
	)
	c.SetTimestamps(nil)

	startClock(t, c)

	select {
	case kind := <-fired:
		t.Fatalf("parked channel fired %q", kind)
	case <-time.After(500 * time.Millisecond):
	}

	// A late registration wakes the parked channel.
	c.SetTimestamps([]schedule.BoundaryEvent{{
		Time: schedule.FromClock(c.Now().Add(2 * time.Second)),
		Kind: schedule.KindBreakStart,
	}})

	select {
	case kind := <-fired:
		if kind != "break" {
			t.Errorf("fired %q, want break", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("boundary never fired after late registration")
	}
}

func TestReplaceScheduleWhileWaiting(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	fired := make(chan string, 4)
	c.AddWBCallbacks(
		func(ctx context.Context) error { fired <- "work"; return nil },
		func(ctx context.Context) error { fired <- "break"; return nil },
	)

	// Far-future entry, then replace it mid-wait with a near one. Only
	// the near entry may fire.
	c.SetTimestamps([]schedule.BoundaryEvent{{
		Time: schedule.FromClock(c.Now().Add(time.Hour)),
		Kind: schedule.KindWorkStart,
	}})

	startClock(t, c)
	time.Sleep(200 * time.Millisecond)

	c.SetTimestamps([]schedule.BoundaryEvent{{
		Time: schedule.FromClock(c.Now().Add(2 * time.Second)),
		Kind: schedule.KindBreakStart,
	}})

	select {
	case kind := <-fired:
		if kind != "break" {
			t.Errorf("fired %q, want break from the replacement schedule", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("replacement schedule never fired")
	}
}

func TestSetTimestampsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	list := []schedule.BoundaryEvent{{
		Time: schedule.FromClock(c.Now().Add(2 * time.Second)),
		Kind: schedule.KindWorkStart,
	}}

	// Setting the same list twice only recomputes; the next target must
	// not move.
	c.SetTimestamps(list)
	first, _, ok := c.nextBoundary()
	if !ok {
		t.Fatal("no target after first SetTimestamps")
	}
	c.SetTimestamps(list)
	second, _, ok := c.nextBoundary()
	if !ok {
		t.Fatal("no target after duplicate SetTimestamps")
	}
	if !second.at.Equal(first.at) {
		t.Errorf("duplicate SetTimestamps moved the target: %v then %v", first.at, second.at)
	}

	fired := make(chan string, 4)
	c.AddWBCallbacks(
		func(ctx context.Context) error { fired <- "work"; return nil },
		func(ctx context.Context) error { fired <- "break"; return nil },
	)

	startClock(t, c)

	// A third duplicate set while the channel is already waiting.
	time.Sleep(200 * time.Millisecond)
	c.SetTimestamps(list)

	select {
	case kind := <-fired:
		if kind != "work" {
			t.Errorf("fired %q, want work", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("boundary never fired")
	}

	// The entry fired once; the duplicate sets must not replay it.
	select {
	case kind := <-fired:
		t.Fatalf("duplicate SetTimestamps caused a second firing %q", kind)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWorkBreakCallbacksDoNotOverlap(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	// Two boundaries one second apart, handlers that outlast the gap. On
	// the bells channel handlers run inside the loop, so the break
	// handler must start only after the work handler returned.
	var inFlight atomic.Int32
	var overlaps atomic.Int32
	done := make(chan string, 4)
	instrumented := func(kind string) Callback {
		return func(ctx context.Context) error {
			if inFlight.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(1500 * time.Millisecond)
			inFlight.Add(-1)
			done <- kind
			return nil
		}
	}
	c.AddWBCallbacks(instrumented("work"), instrumented("break"))

	now := c.Now()
	c.SetTimestamps([]schedule.BoundaryEvent{
		{Time: schedule.FromClock(now.Add(2 * time.Second)), Kind: schedule.KindWorkStart},
		{Time: schedule.FromClock(now.Add(3 * time.Second)), Kind: schedule.KindBreakStart},
	})

	startClock(t, c)

	var order []string
	for i := 0; i < 2; i++ {
		select {
		case kind := <-done:
			order = append(order, kind)
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d of 2 handlers completed", i)
		}
	}
	if overlaps.Load() != 0 {
		t.Errorf("work and break handlers overlapped %d times", overlaps.Load())
	}
	if order[0] != "work" || order[1] != "break" {
		t.Errorf("completion order = %v, want [work break]", order)
	}
}

func TestStrictOrderingSerializesChannels(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := New(stubSource{t: base}, zerolog.Nop(), WithStrictOrdering())
	if err := c.SyncTime(context.Background()); err != nil {
		t.Fatalf("SyncTime: %v", err)
	}

	var inFlight atomic.Int32
	var overlaps atomic.Int32
	slowHandler := func(ctx context.Context) error {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(150 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	done := make(chan struct{}, 4)
	instant := schedule.FromClock(c.Now().Add(2 * time.Second))
	c.AddWBCallbacks(
		func(ctx context.Context) error { defer func() { done <- struct{}{} }(); return slowHandler(ctx) },
		nil,
	)
	c.AddTimestampCallback(
		[]schedule.TimeOfDay{instant},
		func(ctx context.Context) error { defer func() { done <- struct{}{} }(); return slowHandler(ctx) },
	)
	c.SetTimestamps([]schedule.BoundaryEvent{{Time: instant, Kind: schedule.KindWorkStart}})

	startClock(t, c)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("coincident firings never completed")
		}
	}
	if overlaps.Load() != 0 {
		t.Errorf("handlers overlapped %d times despite strict ordering", overlaps.Load())
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	c := New(stubSource{t: time.Now()}, zerolog.Nop())

	c.dispatch(context.Background(), c.bells, "work", "work", func(ctx context.Context) error {
		panic("handler exploded")
	})
	// Reaching here means the panic stayed inside dispatch.
}

func TestDispatchSkipsNilHandler(t *testing.T) {
	c := New(stubSource{t: time.Now()}, zerolog.Nop())
	c.dispatch(context.Background(), c.bells, "break", "break", nil)
}
