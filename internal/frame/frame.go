// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package frame decodes the binary IMU telemetry stream.
//
// A frame is the two-byte sync marker 0xAA 0x55 followed by six big-endian
// int16 values (ax, ay, az, gx, gy, gz), 14 bytes in total, optionally
// followed by a line terminator.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

const (
	SyncByte0  = 0xAA
	SyncByte1  = 0x55
	PayloadLen = 12
	FrameLen   = 2 + PayloadLen
)

var (
	// ErrNoData means nothing usable arrived: an empty record or a record
	// that does not start with the sync marker. Callers skip the cycle.
	ErrNoData = errors.New("no frame data")
	// ErrMalformed means the sync marker matched but the payload could not
	// be unpacked.
	ErrMalformed = errors.New("malformed frame")
)

// TransportError reports that the byte source itself failed. It is not
// recoverable by polling again.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("frame: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Parse interprets one record. No resynchronization is attempted: a record
// whose first two bytes are not the sync marker yields ErrNoData.
func Parse(record []byte) (imu.Raw, error) {
	if len(record) < 2 || record[0] != SyncByte0 || record[1] != SyncByte1 {
		return imu.Raw{}, ErrNoData
	}
	payload := record[2:]
	if len(payload) != PayloadLen {
		return imu.Raw{}, fmt.Errorf("%w: payload is %d bytes, want %d", ErrMalformed, len(payload), PayloadLen)
	}
	return unpack(payload), nil
}

// Encode renders raw as a 14-byte frame without a terminator.
func Encode(raw imu.Raw) []byte {
	out := make([]byte, 0, FrameLen)
	out = append(out, SyncByte0, SyncByte1)
	for _, v := range raw.Values() {
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func unpack(payload []byte) imu.Raw {
	be := binary.BigEndian
	return imu.Raw{
		Ax: int16(be.Uint16(payload[0:])),
		Ay: int16(be.Uint16(payload[2:])),
		Az: int16(be.Uint16(payload[4:])),
		Gx: int16(be.Uint16(payload[6:])),
		Gy: int16(be.Uint16(payload[8:])),
		Gz: int16(be.Uint16(payload[10:])),
	}
}
