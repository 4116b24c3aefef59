/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestExportICal(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	ranges := []HourRange{
		{Start: MustTimeOfDay("08:00"), End: MustTimeOfDay("08:45")},
		{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("09:45")},
	}

	result := ExportICal(ranges, day)
	body := string(result.Data)

	if !strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(body, "END:VCALENDAR\r\n") {
		t.Error("calendar envelope malformed")
	}
	if got := strings.Count(body, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("events = %d, want 2", got)
	}
	if !strings.Contains(body, "DTSTART:20260302T080000Z") {
		t.Error("first lesson start missing")
	}
	if !strings.Contains(body, "SUMMARY:Lesson 1") {
		t.Error("lesson summary missing")
	}
	if result.Filename != "bell-schedule-2026-03-02.ics" {
		t.Errorf("filename = %q", result.Filename)
	}
}

func TestExportICalEmptySchedule(t *testing.T) {
	result := ExportICal(nil, time.Now())
	if strings.Contains(string(result.Data), "BEGIN:VEVENT") {
		t.Error("empty schedule produced events")
	}
}
