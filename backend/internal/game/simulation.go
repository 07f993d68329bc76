package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// SimulationConfig объединяет настройки всех частей симуляции
type SimulationConfig struct {
	TickRate          int           `mapstructure:"tickRate" json:"tick_rate"`
	ScorePerRing      int64         `mapstructure:"scorePerRing" json:"score_per_ring"`
	HoldTimeout       time.Duration `mapstructure:"holdTimeout" json:"hold_timeout"`
	TelemetryInterval uint64        `mapstructure:"telemetryInterval" json:"telemetry_interval"`
	Seed              uint64        `mapstructure:"seed" json:"seed"`

	Flight  physics.FlightConfig `mapstructure:"-" json:"flight"`
	Terrain world.TerrainConfig  `mapstructure:"-" json:"terrain"`
	Field   FieldConfig          `mapstructure:"-" json:"collectibles"`
}

// DefaultSimulationConfig возвращает конфигурацию по умолчанию
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickRate:          60,
		ScorePerRing:      10,
		HoldTimeout:       DefaultHoldTimeout,
		TelemetryInterval: 30,
		Flight:            physics.DefaultFlightConfig(),
		Terrain:           world.DefaultTerrainConfig(),
		Field:             DefaultFieldConfig(),
	}
}

// SimulationDeps - внешние зависимости симуляции; нулевые значения допустимы
type SimulationDeps struct {
	Logger   zerolog.Logger
	Clock    Clock
	Rand     *rand.Rand
	Recorder FlightRecorder

	Rings  RingEventBroadcaster
	Chunks world.ChunkEventBroadcaster
}

// Simulation - собранный игровой мир с одним самолетом
type Simulation struct {
	Config   SimulationConfig
	Ticker   *GameTicker
	Input    *InputCollector
	Flight   *physics.FlightModel
	Streamer *world.ChunkStreamer
	Field    *CollectibleField

	logger zerolog.Logger
}

// NewSimulation собирает ядро и регистрирует системы в тикере
func NewSimulation(cfg SimulationConfig, deps SimulationDeps) (*Simulation, error) {
	if err := cfg.Flight.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Terrain.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Field.Validate(); err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	rng := deps.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	input := NewInputCollector(cfg.HoldTimeout, clock)

	ticker, err := NewGameTicker(cfg.TickRate, input, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating game ticker: %w", err)
	}
	ticker.SetClock(clock)

	flight := physics.NewFlightModel(cfg.Flight)

	streamer := world.NewChunkStreamer(cfg.Terrain, deps.Logger)
	if deps.Chunks != nil {
		streamer.SetBroadcaster(deps.Chunks)
	}

	field := NewCollectibleField(cfg.Field, rng, clock, deps.Logger)
	if deps.Rings != nil {
		field.SetBroadcaster(deps.Rings)
	}

	ticker.RegisterSystem(NewFlightSystem(flight, deps.Logger))
	ticker.RegisterSystem(NewTerrainSystem(streamer, flight, ticker.PerformanceMonitor()))
	ticker.RegisterSystem(NewCollectibleSystem(field, flight, ticker, cfg.ScorePerRing, deps.Logger))
	if deps.Recorder != nil {
		ticker.RegisterSystem(NewTelemetrySystem(deps.Recorder, flight, ticker, cfg.TelemetryInterval))
	}
	ticker.RegisterSystem(NewSnapshotSystem(ticker, flight, field, streamer))

	return &Simulation{
		Config:   cfg,
		Ticker:   ticker,
		Input:    input,
		Flight:   flight,
		Streamer: streamer,
		Field:    field,
		logger:   deps.Logger.With().Str("system", "Simulation").Logger(),
	}, nil
}

// Close останавливает цикл и освобождает ресурсы мира.
// Вспышки, ожидающие завершения, снимаются без выполнения.
func (s *Simulation) Close() {
	s.Ticker.Stop()
	s.Field.Close()
	s.Streamer.Close()

	s.logger.Info().
		Uint64("ticks", s.Ticker.GetTickCount()).
		Int64("score", s.Ticker.Score()).
		Msg("simulation closed")
}
