// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package serialport

import "golang.org/x/sys/unix"

// fread selects the receive queue for TIOCFLUSH (FREAD in <sys/fcntl.h>).
const fread = 0x1

func flushInput(fd uintptr) error {
	return unix.IoctlSetPointerInt(int(fd), unix.TIOCFLUSH, fread)
}
