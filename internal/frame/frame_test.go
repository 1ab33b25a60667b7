package frame

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// fakePort serves arrivals one chunk per Read once the buffered bytes are
// consumed. ResetInputBuffer drops only what is already buffered.
type fakePort struct {
	buffered []byte
	arrivals [][]byte
	readErr  error
	resetErr error
	resets   int
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.buffered) == 0 && len(p.arrivals) > 0 {
		p.buffered, p.arrivals = p.arrivals[0], p.arrivals[1:]
	}
	if len(p.buffered) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil
	}
	n := copy(b, p.buffered)
	p.buffered = p.buffered[n:]
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.resets++
	if p.resetErr != nil {
		return p.resetErr
	}
	p.buffered = nil
	return nil
}

var sample = imu.Raw{Ax: 1, Ay: -1, Az: 2, Gx: -2, Gy: 3, Gz: -3}

func TestParseValidFrame(t *testing.T) {
	record := []byte{0xAA, 0x55, 0x00, 0x01, 0xFF, 0xFF, 0x00, 0x02, 0xFF, 0xFE, 0x00, 0x03, 0xFF, 0xFD}
	require.Len(t, record, FrameLen)

	got, err := Parse(record)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestEncodeRoundTrip(t *testing.T) {
	raw := imu.Raw{Ax: -32768, Ay: 32767, Az: 16384, Gx: 0, Gy: -1, Gz: 256}
	encoded := Encode(raw)
	assert.Len(t, encoded, FrameLen)
	assert.Equal(t, []byte{0xAA, 0x55, 0x80, 0x00, 0x7F, 0xFF}, encoded[:6])

	got, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestParseWithoutSyncIsNoData(t *testing.T) {
	valid := Encode(sample)
	for _, record := range [][]byte{
		nil,
		{},
		{0xAA},
		{0x55, 0xAA},
		append([]byte{0x00}, valid...),
		append([]byte{0xAA, 0x56}, valid[2:]...),
		append([]byte{0xAB, 0x55}, valid[2:]...),
	} {
		_, err := Parse(record)
		assert.ErrorIs(t, err, ErrNoData, "% x", record)
	}
}

func TestParseBadLengthIsMalformed(t *testing.T) {
	valid := Encode(sample)
	for _, record := range [][]byte{
		valid[:2],
		valid[:13],
		append(append([]byte{}, valid...), 0x00),
		append(append([]byte{}, valid...), valid...),
	} {
		_, err := Parse(record)
		assert.ErrorIs(t, err, ErrMalformed, "len %d", len(record))
		assert.NotErrorIs(t, err, ErrNoData)
	}
}

func TestDecodeLineMode(t *testing.T) {
	framed := append(Encode(sample), '\r', '\n')
	port := &fakePort{
		buffered: []byte("stale bytes that must be dropped"),
		arrivals: [][]byte{framed[:5], framed[5:]},
	}
	d := NewDecoder(port, Options{Mode: ModeLine})

	got, err := d.Decode()
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.Equal(t, 1, port.resets)
	assert.Equal(t, ModeLine, d.Mode())
}

func TestDecodeLineModeWithoutTerminator(t *testing.T) {
	port := &fakePort{arrivals: [][]byte{Encode(sample)}}
	got, err := NewDecoder(port, Options{Mode: ModeLine}).Decode()
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestDecodeLineModeMisses(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		_, err := NewDecoder(&fakePort{}, Options{Mode: ModeLine}).Decode()
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("blank line", func(t *testing.T) {
		_, err := NewDecoder(&fakePort{arrivals: [][]byte{[]byte(" \r\n")}}, Options{Mode: ModeLine}).Decode()
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("no sync", func(t *testing.T) {
		line := append([]byte{0x01}, Encode(sample)...)
		_, err := NewDecoder(&fakePort{arrivals: [][]byte{append(line, '\n')}}, Options{Mode: ModeLine}).Decode()
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("short payload", func(t *testing.T) {
		line := append(Encode(sample)[:9], '\n')
		_, err := NewDecoder(&fakePort{arrivals: [][]byte{line}}, Options{Mode: ModeLine}).Decode()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeFixedModeHuntsForMarker(t *testing.T) {
	stream := append([]byte{0x12, 0x34, 0xAA, 0x00, 0x55}, Encode(sample)...)
	stream = append(stream, Encode(imu.Raw{Az: 99})...)
	port := &fakePort{arrivals: [][]byte{stream}}
	d := NewDecoder(port, Options{})

	got, err := d.Decode()
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.Equal(t, ModeFixed, d.Mode())
}

func TestDecodeFixedModeDiscardsReadAhead(t *testing.T) {
	first := Encode(sample)
	second := Encode(imu.Raw{Az: 7})
	port := &fakePort{arrivals: [][]byte{append(append([]byte{}, first...), first...), second}}
	d := NewDecoder(port, Options{})

	got, err := d.Decode()
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	// the second copy of the first frame was read ahead and is stale now
	got, err = d.Decode()
	require.NoError(t, err)
	assert.Equal(t, imu.Raw{Az: 7}, got)
}

func TestDecodeFixedModeMisses(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		_, err := NewDecoder(&fakePort{}, Options{}).Decode()
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("no marker within hunt limit", func(t *testing.T) {
		noise := make([]byte, 64)
		port := &fakePort{arrivals: [][]byte{append(noise, Encode(sample)...)}}
		_, err := NewDecoder(port, Options{HuntLimit: 20}).Decode()
		assert.ErrorIs(t, err, ErrNoData)
	})
	t.Run("payload cut short", func(t *testing.T) {
		port := &fakePort{arrivals: [][]byte{Encode(sample)[:8]}}
		_, err := NewDecoder(port, Options{}).Decode()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeTransportFailure(t *testing.T) {
	for _, mode := range []Mode{ModeFixed, ModeLine} {
		t.Run(mode.String(), func(t *testing.T) {
			port := &fakePort{readErr: io.ErrUnexpectedEOF}
			_, err := NewDecoder(port, Options{Mode: mode}).Decode()

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, "read", te.Op)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			assert.NotErrorIs(t, err, ErrNoData)
		})
	}

	t.Run("reset", func(t *testing.T) {
		port := &fakePort{resetErr: errors.New("device gone")}
		_, err := NewDecoder(port, Options{}).Decode()
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "reset input", te.Op)
		assert.Contains(t, err.Error(), "device gone")
	})
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("LINE")
	require.NoError(t, err)
	assert.Equal(t, ModeLine, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFixed, m)

	_, err = ParseMode("slip")
	assert.Error(t, err)
}

func TestTrimTrailing(t *testing.T) {
	assert.Equal(t, []byte("abc"), trimTrailing([]byte{'a', 'b', 'c', '\r', ' ', 0x00, 0x7f}))
	assert.Empty(t, trimTrailing([]byte("\r\n\t ")))

	framed := Encode(sample)
	assert.Equal(t, framed, trimTrailing(append(Encode(sample), '\r', ' ', 0x00)))

	short := []byte{0xAA, 0x55, 0x01, 0x00}
	assert.Equal(t, short, trimTrailing(short))
}

func TestDecodeLineModeKeepsLowPayloadBytes(t *testing.T) {
	raw := imu.Raw{Ax: 1, Gz: 0x0020}
	port := &fakePort{arrivals: [][]byte{append(Encode(raw), '\r', '\n')}}
	got, err := NewDecoder(port, Options{Mode: ModeLine}).Decode()
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
