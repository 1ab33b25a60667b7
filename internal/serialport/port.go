// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// Port is an open serial link. A Read that returns no bytes and no error
// means the read timeout elapsed.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Open opens path with the configured driver.
func Open(path string, opts Options) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("serial port path is required")
	}

	switch opts.Driver {
	case DriverTermios:
		return openTermios(path, opts)
	default:
		return openBugst(path, opts)
	}
}

func openBugst(path string, opts Options) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	log.Printf("serial: opened %s at %d baud (%d%s%d, timeout %s)",
		path, opts.BaudRate, opts.DataBits, opts.Parity, opts.StopBits, opts.ReadTimeout)
	return port, nil
}
