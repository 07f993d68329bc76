package telemetry

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

const (
	DefaultMaxEntries    = 200
	DefaultPrintInterval = 2 * time.Second
	// DefaultSinkQueue - сколько выборок ждут записи в приемники, прежде чем новые начнут отбрасываться
	DefaultSinkQueue = 1024
)

// Vector3 структура для 3D вектора
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FlightSample - снимок состояния самолета для телеметрии
type FlightSample struct {
	Timestamp int64   `json:"timestamp"` // Время в миллисекундах
	Tick      uint64  `json:"tick"`
	Position  Vector3 `json:"position"`
	Velocity  Vector3 `json:"velocity"`
	Speed     float64 `json:"speed"`    // Заданная скорость
	Airspeed  float64 `json:"airspeed"` // Модуль вектора скорости
	Pitch     float64 `json:"pitch"`
	Yaw       float64 `json:"yaw"`
	Roll      float64 `json:"roll"`
	Score     int64   `json:"score"`
}

// Sink принимает каждую записанную выборку
type Sink interface {
	WriteSample(sample FlightSample) error
	Close() error
}

// Stats - агрегированная статистика с момента последней сводки
type Stats struct {
	Entries     int     `json:"entries"`
	Recorded    uint64  `json:"recorded"`
	SinkErrors  uint64  `json:"sink_errors"`
	Dropped     uint64  `json:"dropped"`
	MinAltitude float64 `json:"min_altitude"`
	MaxAltitude float64 `json:"max_altitude"`
	MaxSpeed    float64 `json:"max_speed"`
}

// TelemetryManager управляет сбором и выводом телеметрии полета.
// Приемники пишутся из отдельной горутины, RecordFlight никогда их не ждет.
type TelemetryManager struct {
	enabled    bool
	data       []FlightSample
	mutex      sync.RWMutex
	maxEntries int
	sinks      []Sink

	queue  chan FlightSample
	done   chan struct{}
	closed bool

	recorded   uint64
	sinkErrors uint64
	dropped    uint64
	window     Stats

	lastPrint     time.Time
	printInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewTelemetryManager создает новый менеджер телеметрии и запускает запись в приемники.
// Горутина записи завершается в Close.
func NewTelemetryManager(maxEntries int, printInterval time.Duration, logger zerolog.Logger) *TelemetryManager {
	return newTelemetryManager(maxEntries, printInterval, DefaultSinkQueue, logger)
}

func newTelemetryManager(maxEntries int, printInterval time.Duration, queueSize int, logger zerolog.Logger) *TelemetryManager {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if printInterval < 0 {
		printInterval = DefaultPrintInterval
	}
	if queueSize <= 0 {
		queueSize = DefaultSinkQueue
	}

	tm := &TelemetryManager{
		enabled:       true,
		data:          make([]FlightSample, 0, maxEntries),
		maxEntries:    maxEntries,
		queue:         make(chan FlightSample, queueSize),
		done:          make(chan struct{}),
		lastPrint:     time.Now(),
		printInterval: printInterval,
		now:           time.Now,
		logger:        logger.With().Str("system", "Telemetry").Logger(),
		window:        emptyWindow(),
	}
	go tm.sinkLoop()
	return tm
}

// AddSink подключает внешний приемник выборок
func (tm *TelemetryManager) AddSink(sink Sink) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if tm.closed {
		if err := sink.Close(); err != nil {
			tm.logger.Warn().Err(err).Msg("closing sink added after shutdown")
		}
		return
	}
	tm.sinks = append(tm.sinks, sink)
}

// RecordFlight записывает состояние самолета на заданном тике
func (tm *TelemetryManager) RecordFlight(tick uint64, state physics.AircraftState, score int64) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	sample := FlightSample{
		Timestamp: tm.now().UnixMilli(),
		Tick:      tick,
		Position:  Vector3{X: state.Position.X(), Y: state.Position.Y(), Z: state.Position.Z()},
		Velocity:  Vector3{X: state.Velocity.X(), Y: state.Velocity.Y(), Z: state.Velocity.Z()},
		Speed:     state.Speed,
		Airspeed:  state.Velocity.Len(),
		Pitch:     state.Pitch,
		Yaw:       state.Yaw,
		Roll:      state.Roll,
		Score:     score,
	}

	tm.data = append(tm.data, sample)
	if len(tm.data) > tm.maxEntries {
		tm.data = tm.data[len(tm.data)-tm.maxEntries:]
	}

	tm.recorded++
	tm.window.Recorded++
	tm.window.MinAltitude = math.Min(tm.window.MinAltitude, sample.Position.Y)
	tm.window.MaxAltitude = math.Max(tm.window.MaxAltitude, sample.Position.Y)
	tm.window.MaxSpeed = math.Max(tm.window.MaxSpeed, sample.Speed)

	if tm.closed || len(tm.sinks) == 0 {
		return
	}
	select {
	case tm.queue <- sample:
	default:
		tm.dropped++
		tm.window.Dropped++
		if tm.dropped == 1 || tm.dropped%1000 == 0 {
			tm.logger.Warn().Uint64("dropped", tm.dropped).Uint64("tick", tick).Msg("telemetry sink queue full, sample dropped")
		}
	}
}

// sinkLoop пишет выборки из очереди во все приемники до закрытия очереди
func (tm *TelemetryManager) sinkLoop() {
	defer close(tm.done)

	for sample := range tm.queue {
		tm.mutex.RLock()
		sinks := tm.sinks
		tm.mutex.RUnlock()

		var failed uint64
		for _, sink := range sinks {
			if err := sink.WriteSample(sample); err != nil {
				failed++
				tm.logger.Warn().Err(err).Uint64("tick", sample.Tick).Msg("telemetry sink write failed")
			}
		}
		if failed > 0 {
			tm.mutex.Lock()
			tm.sinkErrors += failed
			tm.window.SinkErrors += failed
			tm.mutex.Unlock()
		}
	}
}

// PrintSummary выводит сводку телеметрии не чаще printInterval
func (tm *TelemetryManager) PrintSummary() bool {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return false
	}

	now := tm.now()
	if now.Sub(tm.lastPrint) < tm.printInterval {
		return false
	}

	event := tm.logger.Info().
		Int("entries", len(tm.data)).
		Uint64("recorded", tm.window.Recorded).
		Uint64("sink_errors", tm.window.SinkErrors).
		Uint64("dropped", tm.window.Dropped)

	if tm.window.Recorded > 0 {
		event = event.
			Float64("min_altitude", tm.window.MinAltitude).
			Float64("max_altitude", tm.window.MaxAltitude).
			Float64("max_speed", tm.window.MaxSpeed)
	}

	if n := len(tm.data); n > 0 {
		last := tm.data[n-1]
		event = event.
			Uint64("tick", last.Tick).
			Float64("x", last.Position.X).
			Float64("y", last.Position.Y).
			Float64("z", last.Position.Z).
			Int64("score", last.Score)
	}
	event.Msg("flight telemetry summary")

	tm.window = emptyWindow()
	tm.lastPrint = now
	return true
}

// Samples возвращает копию буфера выборок
func (tm *TelemetryManager) Samples() []FlightSample {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	out := make([]FlightSample, len(tm.data))
	copy(out, tm.data)
	return out
}

// Latest возвращает последнюю выборку
func (tm *TelemetryManager) Latest() (FlightSample, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	if len(tm.data) == 0 {
		return FlightSample{}, false
	}
	return tm.data[len(tm.data)-1], true
}

// GetTelemetryJSON возвращает телеметрию в JSON формате
func (tm *TelemetryManager) GetTelemetryJSON() (string, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	jsonData, err := json.MarshalIndent(tm.data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// GetStats возвращает счетчики за все время и экстремумы текущего окна
func (tm *TelemetryManager) GetStats() Stats {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := Stats{
		Entries:    len(tm.data),
		Recorded:   tm.recorded,
		SinkErrors: tm.sinkErrors,
		Dropped:    tm.dropped,
		MaxSpeed:   tm.window.MaxSpeed,
	}
	// Бесконечности не сериализуются в JSON
	if tm.window.Recorded > 0 {
		stats.MinAltitude = tm.window.MinAltitude
		stats.MaxAltitude = tm.window.MaxAltitude
	}
	return stats
}

// SetEnabled включает/выключает телеметрию
func (tm *TelemetryManager) SetEnabled(enabled bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	tm.logger.Info().Bool("enabled", enabled).Msg("telemetry toggled")
}

// Clear очищает все данные телеметрии
func (tm *TelemetryManager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.data = tm.data[:0]
	tm.window = emptyWindow()
}

// Close дописывает очередь и закрывает все приемники. Повторный вызов ничего не делает.
func (tm *TelemetryManager) Close() error {
	tm.mutex.Lock()
	if tm.closed {
		tm.mutex.Unlock()
		return nil
	}
	tm.closed = true
	close(tm.queue)
	tm.mutex.Unlock()

	<-tm.done

	tm.mutex.Lock()
	sinks := tm.sinks
	tm.sinks = nil
	tm.mutex.Unlock()

	var firstErr error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func emptyWindow() Stats {
	return Stats{MinAltitude: math.Inf(1), MaxAltitude: math.Inf(-1)}
}
