// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/window"
)

// handleCharts renders the history windows as a static HTML page. Reload to
// refresh; /ws carries the live stream.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}

	page := components.NewPage()
	page.PageTitle = "Inertial viewer"
	page.AddCharts(
		accelChart(snap),
		gyroChart(snap),
		angleChart(snap),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func newLine(title string, snap acquisition.Snapshot, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%s, %d samples, %s", snap.AlgorithmName, snap.History.Len(), snap.Time.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	x := make([]int, snap.History.Len())
	for i := range x {
		x[i] = i
	}
	line.SetXAxis(x)
	return line
}

func accelChart(snap acquisition.Snapshot) *charts.Line {
	line := newLine("Accelerometer", snap, "LSB")
	for _, name := range imu.AxisNames[:3] {
		line.AddSeries(name, rawSeries(snap.History.Raw[name]))
	}
	return line
}

func gyroChart(snap acquisition.Snapshot) *charts.Line {
	line := newLine("Gyroscope", snap, "LSB")
	for _, name := range imu.AxisNames[3:] {
		line.AddSeries(name, rawSeries(snap.History.Raw[name]))
	}
	return line
}

func angleChart(snap acquisition.Snapshot) *charts.Line {
	line := newLine("Orientation", snap, "deg")
	for _, name := range window.AngleNames {
		line.AddSeries(name, angleSeries(snap.History.Angles[name]))
	}
	return line
}

func rawSeries(values []int16) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}

func angleSeries(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
