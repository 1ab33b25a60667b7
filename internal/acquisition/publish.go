// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/window"
)

// Snapshot is what rendering collaborators receive on every accepted sample:
// the latest sample and pose and the cube rotation for that pose. History is
// set only when HasHistory is true; otherwise the previous series still apply.
type Snapshot struct {
	Time          time.Time              `json:"time"`
	Algorithm     orientation.Algorithm  `json:"algorithm"`
	AlgorithmName string                 `json:"algorithm_name"`
	Latest        orientation.Pose       `json:"latest"`
	LatestRaw     imu.Raw                `json:"latest_raw"`
	Transform     [][]float64            `json:"transform"`
	Capacity      int                    `json:"capacity"`
	Counters      Counters               `json:"counters"`
	HasHistory    bool                   `json:"has_history"`
	History       window.HistorySnapshot `json:"history"`
}

// Publisher receives snapshots on the loop goroutine. Implementations must
// not block for long; the next tick waits on them.
type Publisher interface {
	Publish(Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(s Snapshot) { f(s) }

// Fanout publishes to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(s Snapshot) {
	for _, p := range f {
		p.Publish(s)
	}
}
