// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package serialport

// flushInput is a no-op where no termios flush ioctl is wired.
func flushInput(fd uintptr) error {
	return nil
}
