// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package serialport

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A pipe is not a terminal, so a real flush ioctl must be refused.
func TestFlushInputIssuesIoctl(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, flushInput(r.Fd()))

	require.NoError(t, r.Close())
	assert.Error(t, flushInput(^uintptr(0)), "invalid descriptor")
}
