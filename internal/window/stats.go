// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one history series.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Stats summarizes values. An empty series yields the zero Summary.
func Stats(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// Summarize computes a Summary for every series in the snapshot, keyed by
// series name.
func (s HistorySnapshot) Summarize() map[string]Summary {
	out := make(map[string]Summary, len(s.Raw)+len(s.Angles))
	for name, series := range s.Raw {
		values := make([]float64, len(series))
		for i, v := range series {
			values[i] = float64(v)
		}
		out[name] = Stats(values)
	}
	for name, series := range s.Angles {
		out[name] = Stats(series)
	}
	return out
}
