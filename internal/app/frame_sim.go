// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/inertial_viewer/internal/config"
	"github.com/relabs-tech/inertial_viewer/internal/frame"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/serialport"
)

// RunFrameSim writes synthetic frames to the configured serial port so the
// viewer can be exercised through a null-modem pair without hardware.
func RunFrameSim(ctx context.Context) error {
	cfg := config.Get()
	mode, err := frame.ParseMode(cfg.FrameMode)
	if err != nil {
		return err
	}

	port, err := serialport.Open(cfg.SerialPort, cfg.SerialOptions())
	if err != nil {
		return fmt.Errorf("frame_sim: %w", err)
	}
	defer port.Close()

	clk := clock.New()
	interval := time.Duration(cfg.SimInterval) * time.Millisecond
	log.Printf("frame_sim: writing %s frames to %s every %s", mode, cfg.SerialPort, interval)

	n, err := writeFrames(ctx, port, clk, imu.NewMockSourceWithClock(clk), interval, mode)
	log.Printf("frame_sim: wrote %d frames", n)
	return err
}

// writeFrames encodes one sample from src per tick. Line mode appends a
// newline to every frame.
func writeFrames(ctx context.Context, w io.Writer, clk clock.Clock, src imu.RawSource, interval time.Duration, mode frame.Mode) (int, error) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	written := 0
	for {
		select {
		case <-ctx.Done():
			return written, nil
		case <-ticker.C:
			raw, err := src.NextRaw()
			if err != nil {
				return written, fmt.Errorf("frame_sim: %w", err)
			}
			buf := frame.Encode(raw)
			if mode == frame.ModeLine {
				buf = append(buf, '\n')
			}
			if _, err := w.Write(buf); err != nil {
				return written, fmt.Errorf("frame_sim: write: %w", err)
			}
			written++
		}
	}
}
