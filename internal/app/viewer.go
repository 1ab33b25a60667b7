// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/config"
	"github.com/relabs-tech/inertial_viewer/internal/frame"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/serialport"
	"github.com/relabs-tech/inertial_viewer/internal/web"
)

// RunViewer reads frames from the configured serial port and serves the
// resulting snapshots over HTTP, websocket and MQTT until ctx is done or
// the serial link fails.
func RunViewer(ctx context.Context) error {
	cfg := config.Get()
	log.Printf("viewer: starting on %s (%s framing, algorithm %s)",
		cfg.SerialPort, cfg.FrameMode, cfg.DefaultAlgorithm)

	port, err := serialport.Open(cfg.SerialPort, cfg.SerialOptions())
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	defer port.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDViewer)
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	defer client.Disconnect(250)

	selector := orientation.NewSelector(cfg.DefaultAlgorithm)
	if err := subscribe(client, cfg.TopicAlgorithm, algorithmHandler(selector)); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}

	hub := web.NewHub()
	pub := acquisition.Fanout{
		hub,
		NewMQTTPublisher(client, cfg.TopicSnapshot, cfg.TopicPose),
	}
	loop := acquisition.New(frame.NewDecoder(port, cfg.FrameOptions()), selector, pub, cfg.AcquisitionConfig())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return web.NewServer(hub, selector).ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.WebServerPort))
	})
	g.Go(func() error {
		if err := loop.Run(ctx, clock.New(), cfg.PollDuration()); err != nil {
			return err
		}
		log.Printf("viewer: acquisition stopped (%+v)", loop.Counters())
		return nil
	})
	return g.Wait()
}
