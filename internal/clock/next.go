/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"sort"
	"time"

	"github.com/friendsincode/belfry/internal/schedule"
)

// NextOccurrence picks, from a sorted time-of-day list, the smallest entry
// strictly after now's time-of-day and the absolute instant it occurs at.
// When every entry has already passed today it wraps to the smallest entry
// on the next day. ok is false only for an empty list.
func NextOccurrence(now time.Time, times []schedule.TimeOfDay) (idx int, at time.Time, ok bool) {
	if len(times) == 0 {
		return 0, time.Time{}, false
	}

	nowTOD := schedule.FromClock(now)
	i := sort.Search(len(times), func(i int) bool { return times[i] > nowTOD })
	if i < len(times) {
		return i, times[i].On(now), true
	}
	return 0, times[0].On(now.AddDate(0, 0, 1)), true
}

// PreviousOccurrence is the mirror of NextOccurrence: the largest entry at
// or before now's time-of-day, wrapping to the largest entry of the
// previous day when none has occurred yet today. Used for diagnostics.
func PreviousOccurrence(now time.Time, times []schedule.TimeOfDay) (idx int, at time.Time, ok bool) {
	if len(times) == 0 {
		return 0, time.Time{}, false
	}

	nowTOD := schedule.FromClock(now)
	i := sort.Search(len(times), func(i int) bool { return times[i] > nowTOD })
	if i > 0 {
		return i - 1, times[i-1].On(now), true
	}
	last := len(times) - 1
	return last, times[last].On(now.AddDate(0, 0, -1)), true
}
