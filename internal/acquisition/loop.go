// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition runs the decode → estimate → buffer cycle and hands
// snapshots to rendering collaborators, with throttled history series.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/inertial_viewer/internal/frame"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/window"
)

// Logf is the package diagnostic logger. Tests may replace it.
var Logf func(format string, v ...interface{}) = log.Printf

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultPublishEvery = 5
	// MaxSampleGap resets the gyro-aided filters when samples stop arriving
	// for longer than this.
	MaxSampleGap = time.Second
)

// FrameSource yields one decoded sample per call. frame.Decoder implements it.
type FrameSource interface {
	Decode() (imu.Raw, error)
}

// State is the loop's position in its cycle.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateUpdated
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateUpdated:
		return "updated"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes a Loop.
type Config struct {
	Capacity     int
	PublishEvery int
	Params       orientation.Params
}

// Counters tracks cycle outcomes since the loop was created.
type Counters struct {
	Accepted    uint64 `json:"accepted"`
	Skipped     uint64 `json:"skipped"`
	Malformed   uint64 `json:"malformed"`
	Unsupported uint64 `json:"unsupported"`
	// Published counts snapshots that carried the history series.
	Published uint64 `json:"published"`
}

// Loop owns the history windows and the filter memory. All methods must be
// called from one goroutine; only the Selector may be touched elsewhere.
type Loop struct {
	src      FrameSource
	selector *orientation.Selector
	history  *window.History
	pub      Publisher
	cfg      Config

	prior      orientation.Prior
	lastSample time.Time
	state      State
	counters   Counters
}

// New builds a loop in the Idle state. pub may be nil.
func New(src FrameSource, selector *orientation.Selector, pub Publisher, cfg Config) *Loop {
	if cfg.Capacity <= 0 {
		cfg.Capacity = window.DefaultCapacity
	}
	if cfg.PublishEvery <= 0 {
		cfg.PublishEvery = DefaultPublishEvery
	}
	cfg.Params = withDefaults(cfg.Params)
	if pub == nil {
		pub = Fanout(nil)
	}
	return &Loop{
		src:      src,
		selector: selector,
		history:  window.NewHistory(cfg.Capacity),
		pub:      pub,
		cfg:      cfg,
		state:    StateIdle,
	}
}

// State returns the outcome of the last cycle.
func (l *Loop) State() State { return l.state }

// Counters returns the cycle counters.
func (l *Loop) Counters() Counters { return l.counters }

// Tick runs one cycle. Decode and estimate misses are absorbed and reported
// as StateSkipped; only a byte source failure is returned as an error.
func (l *Loop) Tick(now time.Time) (State, error) {
	l.state = StatePolling

	raw, err := l.src.Decode()
	if err != nil {
		switch {
		case errors.Is(err, frame.ErrNoData):
		case errors.Is(err, frame.ErrMalformed):
			l.counters.Malformed++
			Logf("acquisition: dropped frame: %v", err)
		default:
			l.state = StateIdle
			return l.state, fmt.Errorf("acquisition: %w", err)
		}
		return l.skip(), nil
	}

	algo := l.selector.Get()
	params := l.cfg.Params
	prior := l.prior
	if !l.lastSample.IsZero() {
		gap := now.Sub(l.lastSample)
		if gap > MaxSampleGap {
			prior.Valid = false
		}
		params.DT = gap.Seconds()
	}

	pose, next, err := orientation.Estimate(raw, algo, prior, params)
	if err != nil {
		l.counters.Unsupported++
		Logf("acquisition: estimate with %s: %v", algo, err)
		return l.skip(), nil
	}

	l.prior = next
	l.lastSample = now
	filling := l.history.Len() < l.history.Cap()
	l.history.Append(raw, pose)
	l.counters.Accepted++

	withHistory := filling || l.counters.Accepted%uint64(l.cfg.PublishEvery) == 0
	if withHistory {
		l.counters.Published++
	}
	l.pub.Publish(l.snapshot(now, algo, raw, pose, withHistory))

	l.state = StateUpdated
	return l.state, nil
}

// Run ticks every interval on clk until ctx is done (returns nil) or the byte
// source fails (returns the error). It spawns no goroutines.
func (l *Loop) Run(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.state = StateIdle
			return nil
		case now := <-ticker.C:
			if _, err := l.Tick(now); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) skip() State {
	l.counters.Skipped++
	l.state = StateSkipped
	return l.state
}

// withDefaults fills zero tuning fields so a bare Config cannot feed a
// zero variance or zero sensitivity into the filters.
func withDefaults(p orientation.Params) orientation.Params {
	def := orientation.DefaultParams()
	if p.GyroLSBPerDPS <= 0 {
		p.GyroLSBPerDPS = def.GyroLSBPerDPS
	}
	if p.Alpha <= 0 {
		p.Alpha = def.Alpha
	}
	if p.KalmanQ <= 0 {
		p.KalmanQ = def.KalmanQ
	}
	if p.KalmanR <= 0 {
		p.KalmanR = def.KalmanR
	}
	return p
}

// snapshot carries the pose of every accepted sample. The history series are
// attached only while the windows fill (including the sample that fills
// them) and then on every PublishEvery-th sample.
func (l *Loop) snapshot(now time.Time, algo orientation.Algorithm, raw imu.Raw, pose orientation.Pose, withHistory bool) Snapshot {
	s := Snapshot{
		Time:          now,
		Algorithm:     algo,
		AlgorithmName: algo.String(),
		Latest:        pose,
		LatestRaw:     raw,
		Transform:     orientation.TransformRows(orientation.CubeTransform(pose)),
		Capacity:      l.history.Cap(),
		Counters:      l.counters,
	}
	if withHistory {
		s.HasHistory = true
		s.History = l.history.Snapshot()
	}
	return s
}
