/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package bell drives the physical bell: relay pins over sysfs GPIO and
// wav playback through aplay, described by a YAML device profile.
package bell

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the bell device profile loaded from YAML.
type Profile struct {
	GPIO  GPIOProfile  `yaml:"gpio"`
	Audio AudioProfile `yaml:"audio"`
}

// GPIOProfile describes the relay wiring. WorkPin and BreakPin hold the
// current period state; BellPin pulses for the ring itself. Invert flips
// every logical level for active-low relay boards.
type GPIOProfile struct {
	Enabled  bool `yaml:"enabled"`
	WorkPin  int  `yaml:"work_pin"`
	BreakPin int  `yaml:"break_pin"`
	BellPin  int  `yaml:"bell_pin"`
	Invert   bool `yaml:"invert"`

	PulseSeconds int `yaml:"pulse_seconds"`
}

// AudioProfile describes wav playback.
type AudioProfile struct {
	Enabled    bool   `yaml:"enabled"`
	Device     string `yaml:"device"`
	WorkSound  string `yaml:"work_sound"`
	BreakSound string `yaml:"break_sound"`

	MaxDurationSeconds int `yaml:"max_duration_seconds"`
}

// DefaultProfile is the profile used when no file exists: everything
// disabled, so a fresh install logs rings without touching hardware.
func DefaultProfile() Profile {
	return Profile{
		GPIO:  GPIOProfile{PulseSeconds: 3},
		Audio: AudioProfile{Device: "default", MaxDurationSeconds: 30},
	}
}

// LoadProfile reads the device profile from path. A missing file is not
// an error; the default (disabled) profile comes back instead.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return profile, fmt.Errorf("read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile: %w", err)
	}

	if profile.GPIO.PulseSeconds <= 0 {
		profile.GPIO.PulseSeconds = 3
	}
	if profile.Audio.MaxDurationSeconds <= 0 {
		profile.Audio.MaxDurationSeconds = 30
	}
	return profile, nil
}

// PulseDuration is how long the bell relay stays closed per ring.
func (p GPIOProfile) PulseDuration() time.Duration {
	return time.Duration(p.PulseSeconds) * time.Second
}

// MaxDuration caps a single playback.
func (p AudioProfile) MaxDuration() time.Duration {
	return time.Duration(p.MaxDurationSeconds) * time.Second
}
