/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProfileMissingFileUsesDefaults(t *testing.T) {
	profile, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if profile.GPIO.Enabled || profile.Audio.Enabled {
		t.Error("default profile must leave hardware disabled")
	}
	if profile.GPIO.PulseDuration() != 3*time.Second {
		t.Errorf("default pulse = %v, want 3s", profile.GPIO.PulseDuration())
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	content := `
gpio:
  enabled: true
  work_pin: 17
  break_pin: 27
  bell_pin: 22
  invert: true
  pulse_seconds: 2
audio:
  enabled: true
  device: plughw:0
  work_sound: sounds/work.wav
  break_sound: sounds/break.wav
  max_duration_seconds: 15
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !profile.GPIO.Enabled || profile.GPIO.WorkPin != 17 || !profile.GPIO.Invert {
		t.Errorf("gpio = %+v", profile.GPIO)
	}
	if profile.GPIO.PulseDuration() != 2*time.Second {
		t.Errorf("pulse = %v, want 2s", profile.GPIO.PulseDuration())
	}
	if profile.Audio.Device != "plughw:0" || profile.Audio.MaxDuration() != 15*time.Second {
		t.Errorf("audio = %+v", profile.Audio)
	}
}

func TestLoadProfileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("LoadProfile accepted malformed yaml")
	}
}
