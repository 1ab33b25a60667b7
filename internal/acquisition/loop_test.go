package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_viewer/internal/frame"
	"github.com/relabs-tech/inertial_viewer/internal/imu"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

func init() {
	Logf = func(string, ...interface{}) {}
}

type result struct {
	raw imu.Raw
	err error
}

// scriptedSource replays results, then reports ErrNoData forever.
type scriptedSource struct {
	mu      sync.Mutex
	results []result
	calls   int
}

func (s *scriptedSource) Decode() (imu.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return imu.Raw{}, frame.ErrNoData
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.raw, r.err
}

// framePort hands out one queued chunk per Read and times out otherwise.
type framePort struct {
	buffered []byte
	arrivals [][]byte
}

func (p *framePort) Read(b []byte) (int, error) {
	if len(p.buffered) == 0 && len(p.arrivals) > 0 {
		p.buffered, p.arrivals = p.arrivals[0], p.arrivals[1:]
	}
	n := copy(b, p.buffered)
	p.buffered = p.buffered[n:]
	return n, nil
}

func (p *framePort) ResetInputBuffer() error {
	p.buffered = nil
	return nil
}

type recorder struct {
	snaps []Snapshot
}

func (r *recorder) Publish(s Snapshot) { r.snaps = append(r.snaps, s) }

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func tickN(t *testing.T, l *Loop, n int) []State {
	t.Helper()
	var states []State
	for i := 0; i < n; i++ {
		st, err := l.Tick(t0.Add(time.Duration(i) * DefaultPollInterval))
		require.NoError(t, err)
		states = append(states, st)
	}
	return states
}

func TestSevenFramesEndToEnd(t *testing.T) {
	port := &framePort{}
	var want []imu.Raw
	for i := 0; i < 7; i++ {
		raw := imu.Raw{Ax: int16(i), Ay: int16(-i), Az: 1000, Gx: int16(2 * i), Gy: 3, Gz: -4}
		want = append(want, raw)
		port.arrivals = append(port.arrivals, frame.Encode(raw))
	}

	rec := &recorder{}
	l := New(frame.NewDecoder(port, frame.Options{}), orientation.NewSelector(orientation.AccelTilt), rec, Config{Capacity: 50})
	assert.Equal(t, StateIdle, l.State())

	states := tickN(t, l, 7)
	for _, st := range states {
		assert.Equal(t, StateUpdated, st)
	}

	require.Len(t, rec.snaps, 7, "every cycle publishes while the windows fill")
	for _, s := range rec.snaps {
		assert.True(t, s.HasHistory)
	}
	last := rec.snaps[6]
	for _, name := range imu.AxisNames {
		assert.Len(t, last.History.Raw[name], 7, name)
	}
	for _, series := range last.History.Angles {
		assert.Len(t, series, 7)
	}
	for i, raw := range want {
		assert.Equal(t, raw.Ax, last.History.Raw["ax"][i], "oldest first")
		assert.Equal(t, raw.Gx, last.History.Raw["gx"][i])
	}
	assert.Equal(t, want[6], last.LatestRaw)
	assert.Equal(t, uint64(7), last.Counters.Accepted)
	assert.Equal(t, 50, last.Capacity)
	assert.Equal(t, "accel-tilt", last.AlgorithmName)

	// earlier snapshots are unaffected by later appends
	assert.Len(t, rec.snaps[0].History.Raw["ax"], 1)
}

func TestSkippedCyclesLeaveWindowsAlone(t *testing.T) {
	src := &scriptedSource{results: []result{
		{raw: imu.Raw{Az: 1}},
		{err: frame.ErrNoData},
		{err: fmt.Errorf("%w: payload is 3 bytes, want 12", frame.ErrMalformed)},
		{raw: imu.Raw{Ay: 1}},
	}}
	rec := &recorder{}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), rec, Config{Capacity: 10})

	states := tickN(t, l, 4)
	assert.Equal(t, []State{StateUpdated, StateSkipped, StateSkipped, StateUpdated}, states)
	assert.Equal(t, Counters{Accepted: 2, Skipped: 2, Malformed: 1, Published: 2}, l.Counters())

	require.Len(t, rec.snaps, 2)
	assert.Equal(t, []float64{0, 90}, rec.snaps[1].History.Angles["roll"])
	assert.InDelta(t, 90, rec.snaps[1].Latest.Roll, 1e-9)
}

func TestUnsupportedAlgorithmSkipsCycle(t *testing.T) {
	src := &scriptedSource{results: []result{{raw: imu.Raw{Az: 1}}, {raw: imu.Raw{Az: 2}}, {raw: imu.Raw{Ay: 1}}}}
	sel := orientation.NewSelector(orientation.AccelTilt)
	rec := &recorder{}
	l := New(src, sel, rec, Config{Capacity: 10})

	st, err := l.Tick(t0)
	require.NoError(t, err)
	assert.Equal(t, StateUpdated, st)

	sel.Set(orientation.Algorithm(7))
	st, err = l.Tick(t0.Add(DefaultPollInterval))
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, st)
	assert.Equal(t, uint64(1), l.Counters().Unsupported)

	sel.Set(orientation.AccelTilt)
	st, err = l.Tick(t0.Add(2 * DefaultPollInterval))
	require.NoError(t, err)
	assert.Equal(t, StateUpdated, st)

	last := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, []int16{1, 0}, last.History.Raw["az"])
	assert.Len(t, last.History.Angles["roll"], 2)
}

func TestSelectorChangeAppliesNextCycle(t *testing.T) {
	src := &scriptedSource{}
	for i := 0; i < 3; i++ {
		src.results = append(src.results, result{raw: imu.Raw{Az: 16384, Gz: 1310}})
	}
	sel := orientation.NewSelector(orientation.AccelTilt)
	rec := &recorder{}
	l := New(src, sel, rec, Config{Capacity: 10, Params: orientation.DefaultParams()})

	tickN(t, l, 1)
	sel.Set(orientation.Complementary)
	_, err := l.Tick(t0.Add(time.Second / 2))
	require.NoError(t, err)

	require.Len(t, rec.snaps, 2)
	assert.Equal(t, orientation.AccelTilt, rec.snaps[0].Algorithm)
	assert.Equal(t, orientation.Complementary, rec.snaps[1].Algorithm)
	// 10°/s of yaw over half a second
	assert.InDelta(t, 5, rec.snaps[1].Latest.Yaw, 1e-9)
}

func TestLongGapReseedsFilter(t *testing.T) {
	src := &scriptedSource{results: []result{
		{raw: imu.Raw{Az: 16384, Gz: 1310}},
		{raw: imu.Raw{Az: 16384, Gz: 1310}},
	}}
	rec := &recorder{}
	l := New(src, orientation.NewSelector(orientation.Kalman), rec, Config{Params: orientation.DefaultParams()})

	_, err := l.Tick(t0)
	require.NoError(t, err)
	_, err = l.Tick(t0.Add(5 * time.Second))
	require.NoError(t, err)

	require.Len(t, rec.snaps, 2)
	assert.Equal(t, 0.0, rec.snaps[1].Latest.Yaw, "yaw restarts instead of integrating 5s")
}

func TestPublishThrottleAfterWindowFills(t *testing.T) {
	src := &scriptedSource{}
	for i := 0; i < 20; i++ {
		src.results = append(src.results, result{raw: imu.Raw{Ax: int16(i), Az: 1}})
	}
	rec := &recorder{}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), rec, Config{Capacity: 4, PublishEvery: 5})

	tickN(t, l, 20)

	require.Len(t, rec.snaps, 20)
	var withHistory []uint64
	for _, s := range rec.snaps {
		if s.HasHistory {
			withHistory = append(withHistory, s.Counters.Accepted)
			assert.LessOrEqual(t, len(s.History.Raw["ax"]), 4)
		} else {
			assert.Zero(t, s.History.Len())
		}
	}
	// 1..4 while filling, the 4th completing the window, then multiples of 5
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 10, 15, 20}, withHistory)
	assert.Equal(t, []int16{0, 1, 2, 3}, rec.snaps[3].History.Raw["ax"], "the filling sample is shown")

	last := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, []int16{16, 17, 18, 19}, last.History.Raw["ax"])
	assert.Equal(t, uint64(20), l.Counters().Accepted)
	assert.Equal(t, uint64(8), l.Counters().Published)
}

func TestPoseArrivesEveryCycleAfterWindowFills(t *testing.T) {
	src := &scriptedSource{}
	for i := 0; i < 12; i++ {
		src.results = append(src.results, result{raw: imu.Raw{Ax: int16(i), Ay: int16(i * 100), Az: 1000}})
	}
	rec := &recorder{}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), rec, Config{Capacity: 4, PublishEvery: 5})

	states := tickN(t, l, 12)

	require.Len(t, rec.snaps, 12)
	for i, st := range states {
		require.Equal(t, StateUpdated, st)
		s := rec.snaps[i]
		assert.Equal(t, uint64(i+1), s.Counters.Accepted)
		assert.Equal(t, int16(i), s.LatestRaw.Ax, "cycle %d", i)
		want, _, err := orientation.Estimate(s.LatestRaw, orientation.AccelTilt, orientation.Prior{}, orientation.DefaultParams())
		require.NoError(t, err)
		assert.InDelta(t, want.Roll, s.Latest.Roll, 1e-9, "cycle %d", i)
		assert.Len(t, s.Transform, 3, "cycle %d", i)
	}
}

func TestZeroParamsKalmanStaysFinite(t *testing.T) {
	src := &scriptedSource{results: []result{
		{raw: imu.Raw{Ay: 8000, Az: 14000, Gx: 500}},
		{raw: imu.Raw{Ay: 8000, Az: 14000, Gx: 500}},
		{raw: imu.Raw{Ay: 8000, Az: 14000, Gx: 500}},
	}}
	rec := &recorder{}
	l := New(src, orientation.NewSelector(orientation.Kalman), rec, Config{})

	tickN(t, l, 3)

	require.Len(t, rec.snaps, 3)
	for _, s := range rec.snaps {
		assert.False(t, math.IsNaN(s.Latest.Roll))
		assert.False(t, math.IsNaN(s.Latest.Pitch))
		assert.False(t, math.IsNaN(s.Latest.Yaw))
		_, err := json.Marshal(s)
		assert.NoError(t, err)
	}
}

func TestTransportFailureIsFatal(t *testing.T) {
	cause := errors.New("device disconnected")
	src := &scriptedSource{results: []result{{err: &frame.TransportError{Op: "read", Err: cause}}}}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), nil, Config{})

	st, err := l.Tick(t0)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	var te *frame.TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, StateIdle, st)
	assert.Equal(t, Counters{}, l.Counters())
}

func TestRunStopsOnCancel(t *testing.T) {
	mock := clock.NewMock()
	src := &scriptedSource{}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, mock, DefaultPollInterval) }()

	require.Eventually(t, func() bool {
		mock.Add(DefaultPollInterval)
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsTransportFailure(t *testing.T) {
	mock := clock.NewMock()
	cause := errors.New("EOF on /dev/ttyUSB0")
	src := &scriptedSource{results: []result{
		{raw: imu.Raw{Az: 1}},
		{err: &frame.TransportError{Op: "read", Err: cause}},
	}}
	l := New(src, orientation.NewSelector(orientation.AccelTilt), nil, Config{})

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), mock, DefaultPollInterval) }()

	var err error
	require.Eventually(t, func() bool {
		mock.Add(DefaultPollInterval)
		select {
		case err = <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, cause)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "updated", StateUpdated.String())
	assert.Equal(t, "skipped", StateSkipped.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestFanout(t *testing.T) {
	var got []string
	f := Fanout{
		PublisherFunc(func(Snapshot) { got = append(got, "a") }),
		PublisherFunc(func(Snapshot) { got = append(got, "b") }),
	}
	f.Publish(Snapshot{})
	assert.Equal(t, []string{"a", "b"}, got)
}
