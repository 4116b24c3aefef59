/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/belfry/internal/events"
	"github.com/friendsincode/belfry/internal/models"
)

// Ring kinds. Work and break come from the schedule, test from the API
// or the ring command.
const (
	KindWork  = "work"
	KindBreak = "break"
	KindTest  = "test"
)

// Ringer turns a boundary firing into hardware action: period pins
// updated, bell relay pulsed, sound played, and a RingRecord written.
type Ringer struct {
	profile Profile
	player  Player
	db      *gorm.DB
	bus     *events.Bus
	logger  zerolog.Logger

	workLine  Line
	breakLine Line
	bellLine  Line
}

// NewRinger opens the GPIO lines named by the profile. With GPIO
// disabled the ringer still plays audio and records rings.
func NewRinger(profile Profile, chip Chip, player Player, database *gorm.DB, bus *events.Bus, logger zerolog.Logger) (*Ringer, error) {
	r := &Ringer{
		profile: profile,
		player:  player,
		db:      database,
		bus:     bus,
		logger:  logger.With().Str("component", "ringer").Logger(),
	}

	if profile.GPIO.Enabled {
		if chip == nil {
			return nil, errors.New("gpio enabled but no chip provided")
		}
		var err error
		if r.workLine, err = chip.OpenLine(profile.GPIO.WorkPin); err != nil {
			return nil, err
		}
		if r.breakLine, err = chip.OpenLine(profile.GPIO.BreakPin); err != nil {
			return nil, err
		}
		if r.bellLine, err = chip.OpenLine(profile.GPIO.BellPin); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Ring performs a full ring of the given kind. source is "schedule" or
// "manual". The ring record is written even when hardware fails, so the
// history shows the miss.
func (r *Ringer) Ring(ctx context.Context, kind, source string) error {
	firedAt := time.Now()

	var ringErr error
	if err := r.setPeriodPins(kind); err != nil {
		ringErr = err
	}
	if err := r.pulseBell(ctx); err != nil && ringErr == nil {
		ringErr = err
	}
	if err := r.playSound(ctx, kind); err != nil && ringErr == nil {
		ringErr = err
	}

	r.record(kind, source, firedAt, ringErr)
	r.publish(kind, source, firedAt, ringErr)

	if ringErr != nil {
		r.logger.Error().Err(ringErr).Str("kind", kind).Msg("ring failed")
		return ringErr
	}
	r.logger.Info().Str("kind", kind).Str("source", source).Msg("bell rung")
	return nil
}

// level maps a logical level to the wire level, honoring invert.
func (r *Ringer) level(active bool) bool {
	if r.profile.GPIO.Invert {
		return !active
	}
	return active
}

// setPeriodPins reflects the new period on the state pins. A test ring
// leaves them alone.
func (r *Ringer) setPeriodPins(kind string) error {
	if !r.profile.GPIO.Enabled || kind == KindTest {
		return nil
	}
	if err := r.workLine.Set(r.level(kind == KindWork)); err != nil {
		return err
	}
	return r.breakLine.Set(r.level(kind == KindBreak))
}

func (r *Ringer) pulseBell(ctx context.Context) error {
	if !r.profile.GPIO.Enabled {
		return nil
	}
	if err := r.bellLine.Set(r.level(true)); err != nil {
		return err
	}
	timer := time.NewTimer(r.profile.GPIO.PulseDuration())
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return r.bellLine.Set(r.level(false))
}

func (r *Ringer) playSound(ctx context.Context, kind string) error {
	if !r.profile.Audio.Enabled {
		return nil
	}
	sound := r.profile.Audio.WorkSound
	if kind == KindBreak {
		sound = r.profile.Audio.BreakSound
	}
	if sound == "" {
		return nil
	}
	return r.player.Play(ctx, sound)
}

// record writes the ring to history. Deliberately not bound to the
// caller's context: a cancelled request must still leave its audit row.
func (r *Ringer) record(kind, source string, firedAt time.Time, ringErr error) {
	if r.db == nil {
		return
	}
	rec := models.RingRecord{
		ID:      uuid.NewString(),
		Kind:    kind,
		Source:  source,
		FiredAt: firedAt,
		Success: ringErr == nil,
	}
	if ringErr != nil {
		rec.Error = ringErr.Error()
	}
	if err := r.db.Create(&rec).Error; err != nil {
		r.logger.Error().Err(err).Msg("failed to store ring record")
	}
}

func (r *Ringer) publish(kind, source string, firedAt time.Time, ringErr error) {
	if r.bus == nil {
		return
	}
	eventType := events.EventBellManual
	switch kind {
	case KindWork:
		eventType = events.EventBellWork
	case KindBreak:
		eventType = events.EventBellBreak
	}
	payload := events.Payload{
		"kind":     kind,
		"source":   source,
		"fired_at": firedAt,
		"success":  ringErr == nil,
	}
	if ringErr != nil {
		payload["error"] = ringErr.Error()
	}
	r.bus.Publish(eventType, payload)
}

// Close releases the GPIO lines.
func (r *Ringer) Close() error {
	var first error
	for _, line := range []Line{r.workLine, r.breakLine, r.bellLine} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
