package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type failingSink struct {
	writes int
	closed bool
}

func (f *failingSink) WriteSample(FlightSample) error {
	f.writes++
	return errors.New("sink unavailable")
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

// slowSink имитирует медленное хранилище
type slowSink struct {
	delay time.Duration
	ticks []uint64
}

func (s *slowSink) WriteSample(sample FlightSample) error {
	time.Sleep(s.delay)
	s.ticks = append(s.ticks, sample.Tick)
	return nil
}

func (s *slowSink) Close() error { return nil }

// gatedSink блокирует запись до закрытия release
type gatedSink struct {
	release chan struct{}
	writes  int
}

func (g *gatedSink) WriteSample(FlightSample) error {
	<-g.release
	g.writes++
	return nil
}

func (g *gatedSink) Close() error { return nil }

type closableBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closableBuffer) Close() error {
	c.closed = true
	return nil
}

func stateAt(y float64) physics.AircraftState {
	return physics.AircraftState{
		Position: mgl64.Vec3{10, y, 20},
		Velocity: mgl64.Vec3{0, 0, 50},
		Pitch:    0.1,
		Yaw:      -0.2,
		Roll:     0.05,
		Speed:    50,
	}
}

func newTestManager(maxEntries int, interval time.Duration, out *bytes.Buffer) *TelemetryManager {
	tm := NewTelemetryManager(maxEntries, interval, zerolog.New(out))
	tm.now = func() time.Time { return testEpoch }
	return tm
}

func TestRecordFlightCapturesState(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})

	tm.RecordFlight(3, stateAt(100), 20)

	sample, ok := tm.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), sample.Tick)
	assert.Equal(t, testEpoch.UnixMilli(), sample.Timestamp)
	assert.Equal(t, Vector3{X: 10, Y: 100, Z: 20}, sample.Position)
	assert.InDelta(t, 50.0, sample.Airspeed, 1e-9)
	assert.Equal(t, int64(20), sample.Score)
	assert.Equal(t, uint64(1), tm.GetStats().Recorded)
}

func TestRingBufferKeepsNewest(t *testing.T) {
	tm := newTestManager(3, time.Second, &bytes.Buffer{})

	for tick := uint64(1); tick <= 5; tick++ {
		tm.RecordFlight(tick, stateAt(100), 0)
	}

	samples := tm.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, uint64(3), samples[0].Tick)
	assert.Equal(t, uint64(5), samples[2].Tick)
	assert.Equal(t, uint64(5), tm.GetStats().Recorded)
}

func TestDisabledManagerIgnoresSamples(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	tm.SetEnabled(false)

	tm.RecordFlight(1, stateAt(100), 0)

	_, ok := tm.Latest()
	assert.False(t, ok)
	assert.False(t, tm.PrintSummary())
}

func TestPrintSummaryRespectsInterval(t *testing.T) {
	var out bytes.Buffer
	tm := newTestManager(10, 2*time.Second, &out)
	tm.lastPrint = testEpoch

	tm.RecordFlight(1, stateAt(80), 0)
	tm.RecordFlight(2, stateAt(120), 10)

	assert.False(t, tm.PrintSummary(), "summary printed before interval elapsed")

	now := testEpoch.Add(2 * time.Second)
	tm.now = func() time.Time { return now }
	require.True(t, tm.PrintSummary())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "flight telemetry summary", entry["message"])
	assert.Equal(t, 80.0, entry["min_altitude"])
	assert.Equal(t, 120.0, entry["max_altitude"])
	assert.Equal(t, 10.0, entry["score"])

	stats := tm.GetStats()
	assert.Zero(t, stats.MinAltitude, "window resets after summary")
	assert.Equal(t, 2, stats.Entries)
}

func TestSinkErrorsAreCounted(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	sink := &failingSink{}
	tm.AddSink(sink)

	tm.RecordFlight(1, stateAt(100), 0)
	tm.RecordFlight(2, stateAt(100), 0)
	assert.Len(t, tm.Samples(), 2, "sink failure must not drop samples")

	// Close дожидается записи очереди
	require.NoError(t, tm.Close())
	assert.Equal(t, 2, sink.writes)
	assert.Equal(t, uint64(2), tm.GetStats().SinkErrors)
	assert.True(t, sink.closed)
}

func TestSlowSinkDoesNotBlockRecording(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	sink := &slowSink{delay: 300 * time.Millisecond}
	tm.AddSink(sink)

	start := time.Now()
	for tick := uint64(1); tick <= 3; tick++ {
		tm.RecordFlight(tick, stateAt(100), 0)
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "RecordFlight waited for a slow sink")
	assert.Len(t, tm.Samples(), 3)

	require.NoError(t, tm.Close())
	assert.Equal(t, []uint64{1, 2, 3}, sink.ticks)
}

func TestFullSinkQueueDropsAndCounts(t *testing.T) {
	tm := newTelemetryManager(10, time.Second, 2, zerolog.Nop())
	sink := &gatedSink{release: make(chan struct{})}
	tm.AddSink(sink)

	for tick := uint64(1); tick <= 5; tick++ {
		tm.RecordFlight(tick, stateAt(100), 0)
	}
	close(sink.release)
	require.NoError(t, tm.Close())

	stats := tm.GetStats()
	// Одна выборка может уже писаться, еще две ждут в очереди
	assert.GreaterOrEqual(t, stats.Dropped, uint64(2))
	assert.Equal(t, uint64(5), uint64(sink.writes)+stats.Dropped)
	assert.Equal(t, uint64(5), stats.Recorded, "dropped samples stay in the ring buffer")
}

func TestCloseIsIdempotent(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	sink := &failingSink{}
	tm.AddSink(sink)

	require.NoError(t, tm.Close())
	require.NoError(t, tm.Close())

	// После закрытия выборки не уходят в приемники
	tm.RecordFlight(1, stateAt(100), 0)
	assert.Zero(t, sink.writes)

	late := &failingSink{}
	tm.AddSink(late)
	assert.True(t, late.closed, "sink added after Close must be closed")
}

func TestTelemetryJSON(t *testing.T) {
	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	tm.RecordFlight(7, stateAt(100), 30)

	raw, err := tm.GetTelemetryJSON()
	require.NoError(t, err)

	var samples []FlightSample
	require.NoError(t, json.Unmarshal([]byte(raw), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, uint64(7), samples[0].Tick)

	tm.Clear()
	assert.Empty(t, tm.Samples())
}

func TestLineProtocolSink(t *testing.T) {
	buf := &closableBuffer{}
	sink := NewLineProtocolSink(buf, "test-run")

	tm := newTestManager(10, time.Second, &bytes.Buffer{})
	tm.AddSink(sink)
	tm.RecordFlight(4, stateAt(100), 10)
	require.NoError(t, tm.Close())

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "flight_telemetry,session=test-run "), line)
	assert.Contains(t, line, "score=10i")
	assert.Contains(t, line, "tick=4i")
	assert.True(t, strings.HasSuffix(line, " 1704110400000"), line)
	assert.True(t, buf.closed)
}

func TestInfluxSinkDisabled(t *testing.T) {
	_, err := NewInfluxSink(context.Background(), InfluxConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInfluxDisabled)
}
