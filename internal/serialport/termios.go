// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	jserial "github.com/jacobsa/go-serial/serial"
)

// termiosPort adapts a jacobsa/go-serial port. With MinimumReadSize 0 the
// kernel returns an empty read on timeout, which os.File reports as io.EOF.
type termiosPort struct {
	rwc io.ReadWriteCloser
	fd  uintptr
	ok  bool // fd is usable for flushing
}

func openTermios(path string, opts Options) (Port, error) {
	// VTIME has 100ms resolution and tops out at 25.5s.
	timeout := opts.ReadTimeout.Round(100 * time.Millisecond)
	if timeout < 100*time.Millisecond {
		timeout = 100 * time.Millisecond
	}
	if timeout > 25500*time.Millisecond {
		timeout = 25500 * time.Millisecond
	}

	parity := jserial.PARITY_NONE
	switch opts.Parity {
	case "E":
		parity = jserial.PARITY_EVEN
	case "O":
		parity = jserial.PARITY_ODD
	}

	serialOpts := jserial.OpenOptions{
		PortName:              path,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              uint(opts.DataBits),
		StopBits:              uint(opts.StopBits),
		ParityMode:            parity,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(timeout / time.Millisecond),
	}

	rwc, err := jserial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	p := &termiosPort{rwc: rwc}
	if f, ok := rwc.(interface{ Fd() uintptr }); ok {
		p.fd, p.ok = f.Fd(), true
	}

	log.Printf("serial: opened %s at %d baud via termios (timeout %s)", path, opts.BaudRate, timeout)
	return p, nil
}

func (p *termiosPort) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *termiosPort) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

func (p *termiosPort) ResetInputBuffer() error {
	if !p.ok {
		return nil
	}
	return flushInput(p.fd)
}

func (p *termiosPort) Close() error {
	return p.rwc.Close()
}
