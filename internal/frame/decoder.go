// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// Port is the byte source the decoder reads from. A Read that returns no
// bytes and no error is a read timeout. go.bug.st/serial ports satisfy it
// directly.
type Port interface {
	io.Reader
	ResetInputBuffer() error
}

// Mode selects how frame boundaries are found.
type Mode int

const (
	// ModeFixed waits for the sync marker and then reads exactly
	// PayloadLen bytes.
	ModeFixed Mode = iota
	// ModeLine reads one newline-terminated record and parses it.
	ModeLine
)

func (m Mode) String() string {
	switch m {
	case ModeFixed:
		return "fixed"
	case ModeLine:
		return "line"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "fixed" or "line".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "":
		return ModeFixed, nil
	case "line":
		return ModeLine, nil
	default:
		return 0, fmt.Errorf("unknown frame mode %q: expected fixed or line", s)
	}
}

// Options tunes a Decoder.
type Options struct {
	Mode Mode
	// HuntLimit bounds how many bytes ModeFixed reads while looking for the
	// sync marker. Defaults to two frame lengths.
	HuntLimit int
	// MaxLine bounds a ModeLine record. Defaults to 256 bytes.
	MaxLine int
}

var errReadTimeout = errors.New("read timeout")

// timeoutReader turns the zero-length reads of a timed out serial read into
// errReadTimeout so bufio does not spin on them.
type timeoutReader struct {
	port Port
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, errReadTimeout
	}
	return n, err
}

// Decoder pulls frames from a Port, one per Decode call.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	port Port
	src  timeoutReader
	r    *bufio.Reader
	opts Options
}

// NewDecoder wraps port.
func NewDecoder(port Port, opts Options) *Decoder {
	if opts.HuntLimit <= 0 {
		opts.HuntLimit = 2 * FrameLen
	}
	if opts.MaxLine <= 0 {
		opts.MaxLine = 256
	}
	src := timeoutReader{port: port}
	return &Decoder{
		port: port,
		src:  src,
		r:    bufio.NewReaderSize(src, 64),
		opts: opts,
	}
}

// Mode reports the framing mode in use.
func (d *Decoder) Mode() Mode { return d.opts.Mode }

// Decode discards whatever input is already buffered, then reads the next
// frame. It returns ErrNoData or an ErrMalformed-wrapping error for
// recoverable misses and a *TransportError when the port fails.
func (d *Decoder) Decode() (imu.Raw, error) {
	if err := d.port.ResetInputBuffer(); err != nil {
		return imu.Raw{}, &TransportError{Op: "reset input", Err: err}
	}
	d.r.Reset(d.src)

	if d.opts.Mode == ModeLine {
		record, err := d.readLine()
		if err != nil {
			return imu.Raw{}, err
		}
		return Parse(record)
	}
	return d.readFixed()
}

func (d *Decoder) readLine() ([]byte, error) {
	var record []byte
	for len(record) < d.opts.MaxLine {
		b, err := d.r.ReadByte()
		if errors.Is(err, errReadTimeout) {
			break
		}
		if err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		if b == '\n' {
			break
		}
		record = append(record, b)
	}
	return trimTrailing(record), nil
}

func (d *Decoder) readFixed() (imu.Raw, error) {
	var prev byte
	for n := 0; ; n++ {
		if n > d.opts.HuntLimit {
			return imu.Raw{}, ErrNoData
		}
		b, err := d.r.ReadByte()
		if errors.Is(err, errReadTimeout) {
			return imu.Raw{}, ErrNoData
		}
		if err != nil {
			return imu.Raw{}, &TransportError{Op: "read", Err: err}
		}
		if n > 0 && prev == SyncByte0 && b == SyncByte1 {
			break
		}
		prev = b
	}

	payload := make([]byte, PayloadLen)
	for i := range payload {
		b, err := d.r.ReadByte()
		if errors.Is(err, errReadTimeout) {
			return imu.Raw{}, fmt.Errorf("%w: payload cut short after %d of %d bytes", ErrMalformed, i, PayloadLen)
		}
		if err != nil {
			return imu.Raw{}, &TransportError{Op: "read", Err: err}
		}
		payload[i] = b
	}
	return unpack(payload), nil
}

// trimTrailing drops trailing ASCII whitespace and control bytes. A record
// that starts with the sync marker is never trimmed below FrameLen, since
// payload bytes may take any value.
func trimTrailing(record []byte) []byte {
	floor := 0
	if len(record) >= 2 && record[0] == SyncByte0 && record[1] == SyncByte1 {
		floor = min(len(record), FrameLen)
	}
	end := len(record)
	for end > floor && (record[end-1] <= ' ' || record[end-1] == 0x7f) {
		end--
	}
	return record[:end]
}
