// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// AngleNames lists the angle series in display order.
var AngleNames = [3]string{"roll", "pitch", "yaw"}

// History holds one window per raw axis and one per angle. All nine windows
// are appended together so their lengths never diverge.
type History struct {
	raw    [6]*Window[int16]
	angles [3]*Window[float64]
}

// HistorySnapshot is an immutable copy of every series, oldest first.
type HistorySnapshot struct {
	Raw    map[string][]int16   `json:"raw"`
	Angles map[string][]float64 `json:"angles"`
}

// NewHistory creates nine empty windows of the given capacity.
func NewHistory(capacity int) *History {
	h := &History{}
	for i := range h.raw {
		h.raw[i] = New[int16](capacity)
	}
	for i := range h.angles {
		h.angles[i] = New[float64](capacity)
	}
	return h
}

// Append records one decoded sample and the pose derived from it.
func (h *History) Append(raw imu.Raw, pose orientation.Pose) {
	for i, v := range raw.Values() {
		h.raw[i].Append(v)
	}
	for i, v := range [3]float64{pose.Roll, pose.Pitch, pose.Yaw} {
		h.angles[i].Append(v)
	}
}

// Len returns the number of samples held (identical for every series).
func (h *History) Len() int { return h.raw[0].Len() }

// Cap returns the per-series capacity.
func (h *History) Cap() int { return h.raw[0].Cap() }

// Snapshot copies every series.
func (h *History) Snapshot() HistorySnapshot {
	s := HistorySnapshot{
		Raw:    make(map[string][]int16, len(h.raw)),
		Angles: make(map[string][]float64, len(h.angles)),
	}
	for i, w := range h.raw {
		s.Raw[imu.AxisNames[i]] = w.Snapshot()
	}
	for i, w := range h.angles {
		s.Angles[AngleNames[i]] = w.Snapshot()
	}
	return s
}

// Len returns the number of samples in each series.
func (s HistorySnapshot) Len() int { return len(s.Raw[imu.AxisNames[0]]) }
