/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "sort"

// BoundaryKind tags which period a boundary event starts.
type BoundaryKind string

const (
	KindWorkStart  BoundaryKind = "work"
	KindBreakStart BoundaryKind = "break"
)

// BoundaryEvent is a scheduled transition between work and break periods.
type BoundaryEvent struct {
	Time TimeOfDay
	Kind BoundaryKind
}

// HourRange is one lesson row from the timetable: its start and end times.
type HourRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

// BoundariesFromRanges converts lesson hour ranges into the day's boundary
// event list: a lesson start rings work, a lesson end rings break. The
// result is ordered by time ascending. When a lesson ends exactly when the
// next begins the instant collapses into a single WorkStart; alternation
// beyond that is the provider's concern, not enforced here.
func BoundariesFromRanges(ranges []HourRange) []BoundaryEvent {
	byTime := make(map[TimeOfDay]BoundaryKind, len(ranges)*2)
	for _, r := range ranges {
		byTime[r.Start] = KindWorkStart
		if _, taken := byTime[r.End]; !taken {
			byTime[r.End] = KindBreakStart
		}
	}
	events := make([]BoundaryEvent, 0, len(byTime))
	for tod, kind := range byTime {
		events = append(events, BoundaryEvent{Time: tod, Kind: kind})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events
}
