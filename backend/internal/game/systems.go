package game

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// Приоритеты систем: полет, затем мир вокруг новой позиции, затем снимок
const (
	FlightSystemPriority      = 10
	TerrainSystemPriority     = 20
	CollectibleSystemPriority = 30
	TelemetrySystemPriority   = 40
	SnapshotSystemPriority    = 100
)

// statsLogInterval - период вывода статистики систем в тиках
const statsLogInterval = 600

// FocalSource отдает точку, вокруг которой строится мир
type FocalSource interface {
	Position() mgl64.Vec3
}

// FlightSystem применяет команды тика и интегрирует полет
type FlightSystem struct {
	name     string
	priority int
	flight   *physics.FlightModel
	logger   zerolog.Logger
}

// NewFlightSystem создает систему полета
func NewFlightSystem(flight *physics.FlightModel, logger zerolog.Logger) *FlightSystem {
	return &FlightSystem{
		name:     "FlightSystem",
		priority: FlightSystemPriority,
		flight:   flight,
		logger:   logger.With().Str("system", "FlightSystem").Logger(),
	}
}

// Update применяет все удерживаемые команды, затем делает шаг интегрирования
func (fs *FlightSystem) Update(tick *TickContext) error {
	fs.flight.ApplyControls(tick.Controls)
	fs.flight.Advance()

	if tick.Number%statsLogInterval == 0 {
		pos := fs.flight.Position()
		fs.logger.Debug().
			Uint64("tick", tick.Number).
			Float64("x", pos.X()).
			Float64("y", pos.Y()).
			Float64("z", pos.Z()).
			Float64("speed", fs.flight.Speed()).
			Msg("aircraft state")
	}
	return nil
}

// GetName возвращает имя системы
func (fs *FlightSystem) GetName() string { return fs.name }

// GetPriority возвращает приоритет системы
func (fs *FlightSystem) GetPriority() int { return fs.priority }

// TerrainSystem подгружает тайлы вокруг самолета
type TerrainSystem struct {
	name     string
	priority int
	streamer *world.ChunkStreamer
	focal    FocalSource
	monitor  *PerformanceMonitor
}

// NewTerrainSystem создает систему земли
func NewTerrainSystem(streamer *world.ChunkStreamer, focal FocalSource, monitor *PerformanceMonitor) *TerrainSystem {
	return &TerrainSystem{
		name:     "TerrainSystem",
		priority: TerrainSystemPriority,
		streamer: streamer,
		focal:    focal,
		monitor:  monitor,
	}
}

// Update передает стримеру позицию самолета
func (ts *TerrainSystem) Update(tick *TickContext) error {
	diff := ts.streamer.Update(ts.focal.Position())
	if ts.monitor != nil {
		ts.monitor.RecordChunkDelta(len(diff.Created), len(diff.Released))
	}
	return nil
}

// GetName возвращает имя системы
func (ts *TerrainSystem) GetName() string { return ts.name }

// GetPriority возвращает приоритет системы
func (ts *TerrainSystem) GetPriority() int { return ts.priority }

// CollectibleSystem обновляет кольца и проверяет их поимку.
// Очки начисляются тикеру за каждое пойманное кольцо.
type CollectibleSystem struct {
	name         string
	priority     int
	field        *CollectibleField
	focal        FocalSource
	ticker       *GameTicker
	scorePerRing int64
	logger       zerolog.Logger

	capturedThisTick int
}

// NewCollectibleSystem создает систему колец и подписывает ее на поимки поля
func NewCollectibleSystem(field *CollectibleField, focal FocalSource, ticker *GameTicker, scorePerRing int64, logger zerolog.Logger) *CollectibleSystem {
	cs := &CollectibleSystem{
		name:         "CollectibleSystem",
		priority:     CollectibleSystemPriority,
		field:        field,
		focal:        focal,
		ticker:       ticker,
		scorePerRing: scorePerRing,
		logger:       logger.With().Str("system", "CollectibleSystem").Logger(),
	}
	field.OnCapture(cs.onCapture)
	return cs
}

func (cs *CollectibleSystem) onCapture(ring Collectible) {
	cs.capturedThisTick++
	score := cs.ticker.AddScore(cs.scorePerRing)
	cs.logger.Info().
		Str("ring", ring.ID).
		Int64("score", score).
		Msg("score updated")
}

// Update сначала обновляет поле, затем проверяет поимку
func (cs *CollectibleSystem) Update(tick *TickContext) error {
	focal := cs.focal.Position()

	cs.capturedThisTick = 0
	cs.field.Update(focal)
	cs.field.CheckCollisions(focal)

	if cs.capturedThisTick > 0 {
		cs.ticker.PerformanceMonitor().RecordCaptures(cs.capturedThisTick)
	}

	if tick.Number%statsLogInterval == 0 {
		stats := cs.field.Stats()
		cs.logger.Debug().
			Uint64("tick", tick.Number).
			Interface("rings", stats["live_rings"]).
			Interface("bursts", stats["active_bursts"]).
			Interface("captured", stats["total_captured"]).
			Msg("field stats")
	}
	return nil
}

// GetName возвращает имя системы
func (cs *CollectibleSystem) GetName() string { return cs.name }

// GetPriority возвращает приоритет системы
func (cs *CollectibleSystem) GetPriority() int { return cs.priority }

// FlightRecorder принимает выборки полета для телеметрии
type FlightRecorder interface {
	RecordFlight(tick uint64, state physics.AircraftState, score int64)
}

// TelemetrySystem периодически пишет состояние полета в телеметрию
type TelemetrySystem struct {
	name     string
	priority int
	recorder FlightRecorder
	flight   *physics.FlightModel
	ticker   *GameTicker
	interval uint64
}

// NewTelemetrySystem создает систему телеметрии; interval задается в тиках
func NewTelemetrySystem(recorder FlightRecorder, flight *physics.FlightModel, ticker *GameTicker, interval uint64) *TelemetrySystem {
	if interval == 0 {
		interval = 1
	}
	return &TelemetrySystem{
		name:     "TelemetrySystem",
		priority: TelemetrySystemPriority,
		recorder: recorder,
		flight:   flight,
		ticker:   ticker,
		interval: interval,
	}
}

// Update записывает выборку каждые interval тиков
func (ts *TelemetrySystem) Update(tick *TickContext) error {
	if tick.Number%ts.interval != 0 {
		return nil
	}
	ts.recorder.RecordFlight(tick.Number, ts.flight.State(), ts.ticker.Score())
	return nil
}

// GetName возвращает имя системы
func (ts *TelemetrySystem) GetName() string { return ts.name }

// GetPriority возвращает приоритет системы
func (ts *TelemetrySystem) GetPriority() int { return ts.priority }

// SnapshotSystem собирает снимок мира в конце тика
type SnapshotSystem struct {
	name     string
	priority int
	ticker   *GameTicker
	flight   *physics.FlightModel
	field    *CollectibleField
	streamer *world.ChunkStreamer
}

// NewSnapshotSystem создает систему снимков
func NewSnapshotSystem(ticker *GameTicker, flight *physics.FlightModel, field *CollectibleField, streamer *world.ChunkStreamer) *SnapshotSystem {
	return &SnapshotSystem{
		name:     "SnapshotSystem",
		priority: SnapshotSystemPriority,
		ticker:   ticker,
		flight:   flight,
		field:    field,
		streamer: streamer,
	}
}

// Update публикует снимок тика
func (ss *SnapshotSystem) Update(tick *TickContext) error {
	focalCell, _ := ss.streamer.FocalCell()

	ss.ticker.publish(&Snapshot{
		Tick:      tick.Number,
		Time:      tick.Time,
		Score:     ss.ticker.Score(),
		Captured:  ss.field.TotalCaptured(),
		Aircraft:  ss.flight.State(),
		Controls:  tick.Controls,
		Rings:     ss.field.Rings(),
		Bursts:    ss.field.Bursts(),
		Chunks:    ss.streamer.Coords(),
		FocalCell: focalCell,
	})
	return nil
}

// GetName возвращает имя системы
func (ss *SnapshotSystem) GetName() string { return ss.name }

// GetPriority возвращает приоритет системы
func (ss *SnapshotSystem) GetPriority() int { return ss.priority }
