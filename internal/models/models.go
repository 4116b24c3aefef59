/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persisted records: timetable snapshots and
// the bell ring history.
package models

import "time"

// LessonRange is one timetable row: the lesson's start and end times as
// raw "HH:MM" strings, kept raw so a snapshot round-trips exactly what
// the source published.
type LessonRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ScheduleSnapshot is the last timetable successfully fetched from the
// schedule source. It is the fallback when the source is unreachable.
type ScheduleSnapshot struct {
	ID        string        `gorm:"primaryKey"`
	Branch    int           // branch page index the snapshot came from
	SourceURL string
	FetchedAt time.Time     `gorm:"index"`
	Lessons   []LessonRange `gorm:"serializer:json"`
}

// RingRecord is one firing of the bell hardware, scheduled or manual.
type RingRecord struct {
	ID      string    `gorm:"primaryKey"`
	Kind    string    `gorm:"index"` // work, break, resync, test
	Source  string    // schedule, manual
	FiredAt time.Time `gorm:"index"`
	Success bool
	Error   string
}
