// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// MockGravityLSB is 1g at the ±2g accelerometer range.
	MockGravityLSB = 16384.0
	// MockGyroLSB is 1°/s at the ±250°/s gyroscope range.
	MockGyroLSB = 131.0
)

type mockSource struct {
	start time.Time
	clk   clock.Clock
}

// NewMockSourceWithClock creates a mock raw source that generates a smoothly
// rocking sensor: roll and pitch swing sinusoidally and yaw turns at 30°/s.
// Elapsed time is read from clk.
func NewMockSourceWithClock(clk clock.Clock) RawSource {
	return &mockSource{start: clk.Now(), clk: clk}
}

func (m *mockSource) NextRaw() (Raw, error) {
	return MockSampleAt(m.clk.Since(m.start).Seconds()), nil
}

// MockSampleAt returns the synthetic sample for the given elapsed time in
// seconds. The accelerometer carries gravity rotated by the current roll and
// pitch; the gyroscope carries the angle rates.
func MockSampleAt(elapsed float64) Raw {
	roll := 20 * math.Sin(elapsed) * math.Pi / 180
	pitch := 15 * math.Cos(elapsed*0.7) * math.Pi / 180

	rollRate := 20 * math.Cos(elapsed)
	pitchRate := -15 * 0.7 * math.Sin(elapsed*0.7)
	yawRate := 30.0

	return Raw{
		Ax: clamp16(-MockGravityLSB * math.Sin(pitch)),
		Ay: clamp16(MockGravityLSB * math.Cos(pitch) * math.Sin(roll)),
		Az: clamp16(MockGravityLSB * math.Cos(pitch) * math.Cos(roll)),
		Gx: clamp16(rollRate * MockGyroLSB),
		Gy: clamp16(pitchRate * MockGyroLSB),
		Gz: clamp16(yawRate * MockGyroLSB),
	}
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
