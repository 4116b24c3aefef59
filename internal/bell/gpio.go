/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package bell

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Line is a single GPIO output line.
type Line interface {
	Set(high bool) error
	Close() error
}

// Chip opens GPIO lines. The sysfs implementation talks to real
// hardware; tests use a recording fake.
type Chip interface {
	OpenLine(pin int) (Line, error)
}

// SysfsChip drives GPIO through the legacy sysfs interface. It is slow
// but universally available on the small boards a bell controller runs on.
type SysfsChip struct {
	// Root defaults to /sys/class/gpio. Overridable for tests.
	Root string
}

func (c *SysfsChip) root() string {
	if c.Root != "" {
		return c.Root
	}
	return "/sys/class/gpio"
}

// OpenLine exports the pin and configures it as an output.
func (c *SysfsChip) OpenLine(pin int) (Line, error) {
	base := c.root()
	pinDir := filepath.Join(base, fmt.Sprintf("gpio%d", pin))

	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(base, "export"), []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte("out"), 0o644); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", pin, err)
	}
	return &sysfsLine{pin: pin, valuePath: filepath.Join(pinDir, "value"), exportRoot: base}, nil
}

type sysfsLine struct {
	pin        int
	valuePath  string
	exportRoot string
}

func (l *sysfsLine) Set(high bool) error {
	value := "0"
	if high {
		value = "1"
	}
	if err := os.WriteFile(l.valuePath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write gpio %d: %w", l.pin, err)
	}
	return nil
}

func (l *sysfsLine) Close() error {
	err := os.WriteFile(filepath.Join(l.exportRoot, "unexport"), []byte(strconv.Itoa(l.pin)), 0o644)
	if err != nil {
		return fmt.Errorf("unexport gpio %d: %w", l.pin, err)
	}
	return nil
}

// FakeChip records every level change, for tests.
type FakeChip struct {
	Lines map[int]*FakeLine
}

func NewFakeChip() *FakeChip {
	return &FakeChip{Lines: make(map[int]*FakeLine)}
}

func (c *FakeChip) OpenLine(pin int) (Line, error) {
	line := &FakeLine{}
	c.Lines[pin] = line
	return line, nil
}

// FakeLine records the sequence of levels written to it.
type FakeLine struct {
	History []bool
	Closed  bool
}

func (l *FakeLine) Set(high bool) error {
	l.History = append(l.History, high)
	return nil
}

func (l *FakeLine) Close() error {
	l.Closed = true
	return nil
}

// Last reports the most recent level, false when never set.
func (l *FakeLine) Last() bool {
	if len(l.History) == 0 {
		return false
	}
	return l.History[len(l.History)-1]
}
