/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the daily bell schedule: time-of-day values,
// work/break boundary events, and the keeper that derives them from the
// timetable source.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

// TimeOfDay is a wall-clock time within one 24 hour cycle, stored as
// seconds since midnight (0..86399). It carries no date component.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM:SS" or "HH:MM" into a TimeOfDay.
// Anything malformed or out of the 00:00:00..23:59:59 range returns an
// *InvalidTimestampError.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	if t, err := time.Parse("15:04:05", raw); err == nil {
		return FromClock(t), nil
	}
	if t, err := time.Parse("15:04", raw); err == nil {
		return FromClock(t), nil
	}
	return 0, &InvalidTimestampError{Raw: raw}
}

// MustTimeOfDay is ParseTimeOfDay for literals in tests and defaults.
func MustTimeOfDay(raw string) TimeOfDay {
	tod, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return tod
}

// FromClock converts the clock reading of an absolute instant into a
// TimeOfDay in that instant's location.
func FromClock(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Hour returns the hour component (0..23).
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component (0..59).
func (t TimeOfDay) Minute() int { return (int(t) % 3600) / 60 }

// Second returns the second component (0..59).
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Seconds returns the value as seconds since midnight.
func (t TimeOfDay) Seconds() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// On anchors the time-of-day to the calendar day of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, ref.Location())
}

// InvalidTimestampError identifies a single malformed schedule entry. It is
// recovered locally: the entry is dropped and the rest of the batch goes on.
type InvalidTimestampError struct {
	Raw string
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %q", e.Raw)
}

// Normalize parses a batch of raw timestamps. Malformed entries are
// returned as errors alongside the valid values; they never abort the
// batch. The valid values come back sorted ascending.
func Normalize(raw []string) ([]TimeOfDay, []error) {
	var (
		out  []TimeOfDay
		errs []error
	)
	for _, r := range raw {
		tod, err := ParseTimeOfDay(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, tod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, errs
}
