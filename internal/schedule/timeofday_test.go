/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "07:05:30", want: 7*3600 + 5*60 + 30},
		{raw: "07:05", want: 7*3600 + 5*60},
		{raw: "00:00", want: 0},
		{raw: "23:59:59", want: 23*3600 + 59*60 + 59},
		{raw: "24:00", wantErr: true},
		{raw: "07:60", wantErr: true},
		{raw: "7:05", wantErr: true},
		{raw: "07:05junk", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) accepted invalid input as %v", tt.raw, got)
				}
				var invalid *InvalidTimestampError
				if !errors.As(err, &invalid) {
					t.Errorf("error type = %T, want *InvalidTimestampError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	if got := MustTimeOfDay("07:05:03").String(); got != "07:05:03" {
		t.Errorf("String() = %q, want 07:05:03", got)
	}
}

func TestTimeOfDayOn(t *testing.T) {
	ref := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	got := MustTimeOfDay("07:05").On(ref)
	want := time.Date(2026, 3, 2, 7, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("On(%v) = %v, want %v", ref, got, want)
	}
}

func TestNormalizeRecoversPerEntry(t *testing.T) {
	raw := []string{"12:30", "bogus", "07:00", "25:00", "18:15:30"}

	out, errs := Normalize(raw)

	want := []TimeOfDay{
		MustTimeOfDay("07:00"),
		MustTimeOfDay("12:30"),
		MustTimeOfDay("18:15:30"),
	}
	if len(out) != len(want) {
		t.Fatalf("Normalize kept %d entries, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if len(errs) != 2 {
		t.Errorf("Normalize returned %d errors, want 2", len(errs))
	}
}

func TestNormalizeAllInvalid(t *testing.T) {
	out, errs := Normalize([]string{"x", "y"})
	if len(out) != 0 {
		t.Errorf("Normalize kept %d entries from garbage input", len(out))
	}
	if len(errs) != 2 {
		t.Errorf("Normalize returned %d errors, want 2", len(errs))
	}
}
