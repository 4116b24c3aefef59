/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Player plays a sound file to completion or until the context ends.
type Player interface {
	Play(ctx context.Context, path string) error
}

// AplayPlayer shells out to aplay. Playback is capped at MaxDuration so
// a corrupt wav header cannot hold the bell channel forever.
type AplayPlayer struct {
	Device      string
	MaxDuration time.Duration
}

func (p *AplayPlayer) Play(ctx context.Context, path string) error {
	maxDuration := p.MaxDuration
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	args := []string{"-q"}
	if p.Device != "" {
		args = append(args, "-D", p.Device)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, "aplay", args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("aplay %s: cut off after %s", path, maxDuration)
		}
		return fmt.Errorf("aplay %s: %w", path, err)
	}
	return nil
}

// NopPlayer ignores playback, used when audio is disabled.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string) error { return nil }

// FakePlayer records playback requests, for tests.
type FakePlayer struct {
	Played []string
	Err    error
}

func (p *FakePlayer) Play(_ context.Context, path string) error {
	p.Played = append(p.Played, path)
	return p.Err
}
