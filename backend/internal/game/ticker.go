package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

var (
	// ErrTickerRunning возвращается Step, пока работает игровой цикл
	ErrTickerRunning = errors.New("game ticker is running")

	// ErrTickerStopped возвращается Start после Stop
	ErrTickerStopped = errors.New("game ticker is stopped")
)

// TickContext - входные данные одного тика
type TickContext struct {
	Number   uint64
	Time     time.Time
	Delta    time.Duration
	Controls physics.ControlSet
}

// TickSystem интерфейс для всех игровых систем
type TickSystem interface {
	Update(tick *TickContext) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// ControlSource выдает набор команд на очередной тик
type ControlSource interface {
	Controls() physics.ControlSet
}

// GameTicker основной менеджер игрового цикла.
// Все системы выполняются последовательно в одной горутине.
type GameTicker struct {
	// Конфигурация
	targetTPS    int           // Целевая частота тиков в секунду
	tickDuration time.Duration // Длительность одного тика
	maxTickTime  time.Duration // Максимальное время на один тик

	// Состояние. stepMu делает проверку running и ручной тик в Step
	// атомарными относительно Start и Stop.
	stepMu       sync.Mutex
	running      atomic.Bool
	paused       atomic.Bool
	tickCount    atomic.Uint64
	startTime    time.Time
	lastTickTime time.Time

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor

	// Управление
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	input  ControlSource
	clock  Clock

	// Счет принадлежит циклу, остальные горутины только читают
	score        atomic.Int64
	lastSnapshot atomic.Pointer[Snapshot]
	observers    []SnapshotObserver
	scoreMetric  metric.Registration

	// Метрики
	statsMutex      sync.Mutex
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	// Логирование
	logger           zerolog.Logger
	warningThreshold time.Duration
}

// NewGameTicker создает новый игровой тикер
func NewGameTicker(targetTPS int, input ControlSource, logger zerolog.Logger) (*GameTicker, error) {
	if targetTPS <= 0 {
		targetTPS = 60 // По умолчанию частота обновления экрана
	}

	tickDuration := time.Second / time.Duration(targetTPS)

	perfMonitor, err := NewPerformanceMonitor(50, tickDuration/4) // Предупреждение при 25% от тика
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	gt := &GameTicker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2, // Максимум в 2 раза больше целевого времени
		systems:          make([]TickSystem, 0),
		perfMonitor:      perfMonitor,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
		input:            input,
		clock:            SystemClock{},
		logger:           logger.With().Str("system", "GameTicker").Logger(),
		warningThreshold: tickDuration / 2, // Предупреждение при 50% от времени тика
	}

	scoreGauge, err := meter().Int64ObservableGauge(
		"sim.score",
		metric.WithDescription("Cumulative score of the current session"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating score gauge: %w", err)
	}
	gt.scoreMetric, err = meter().RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(scoreGauge, gt.score.Load())
			return nil
		},
		scoreGauge,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("registering score callback: %w", err)
	}

	return gt, nil
}

// SetClock подменяет часы тикера (для детерминированных прогонов)
func (gt *GameTicker) SetClock(clock Clock) {
	gt.clock = clock
}

// Start запускает игровой цикл
func (gt *GameTicker) Start() error {
	gt.stepMu.Lock()
	defer gt.stepMu.Unlock()

	if gt.ctx.Err() != nil {
		return ErrTickerStopped
	}
	if !gt.running.CompareAndSwap(false, true) {
		return nil // Уже запущен
	}

	gt.startTime = gt.clock.Now()
	gt.lastTickTime = gt.startTime

	gt.logger.Info().
		Int("tps", gt.targetTPS).
		Dur("tick", gt.tickDuration).
		Int("systems", len(gt.systems)).
		Msg("game loop started")

	go gt.gameLoop()

	return nil
}

// Stop останавливает игровой цикл и ждет завершения текущего тика
func (gt *GameTicker) Stop() {
	gt.stepMu.Lock()
	defer gt.stepMu.Unlock()

	if gt.ctx.Err() == nil {
		if err := gt.scoreMetric.Unregister(); err != nil {
			gt.logger.Warn().Err(err).Msg("failed to unregister score gauge")
		}
	}
	if !gt.running.Load() {
		gt.cancel()
		return
	}

	gt.cancel()
	<-gt.done
	gt.running.Store(false)

	gt.logger.Info().
		Uint64("ticks", gt.tickCount.Load()).
		Int64("score", gt.score.Load()).
		Msg("game loop stopped")
}

// Pause приостанавливает выполнение тиков
func (gt *GameTicker) Pause() {
	if gt.paused.CompareAndSwap(false, true) {
		gt.logger.Info().Msg("game loop paused")
	}
}

// Resume возобновляет выполнение тиков
func (gt *GameTicker) Resume() {
	if gt.paused.CompareAndSwap(true, false) {
		gt.logger.Info().Msg("game loop resumed")
	}
}

// RegisterSystem добавляет систему в игровой цикл
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMutex.Lock()
	defer gt.systemsMutex.Unlock()

	gt.systems = append(gt.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(gt.systems) - 1; i > 0; i-- {
		if gt.systems[i].GetPriority() < gt.systems[i-1].GetPriority() {
			gt.systems[i], gt.systems[i-1] = gt.systems[i-1], gt.systems[i]
		} else {
			break
		}
	}

	gt.perfMonitor.initSystemMetrics(system.GetName())

	gt.logger.Debug().
		Str("name", system.GetName()).
		Int("priority", system.GetPriority()).
		Msg("system registered")
}

// AddObserver подписывает наблюдателя на снимки
func (gt *GameTicker) AddObserver(observer SnapshotObserver) {
	gt.systemsMutex.Lock()
	defer gt.systemsMutex.Unlock()
	gt.observers = append(gt.observers, observer)
}

// Step выполняет ровно один тик с заданным набором команд.
// Доступен только когда игровой цикл не запущен. Start, вызванный во время Step,
// ждет завершения ручного тика.
func (gt *GameTicker) Step(controls physics.ControlSet) error {
	gt.stepMu.Lock()
	defer gt.stepMu.Unlock()

	if gt.running.Load() {
		return ErrTickerRunning
	}
	gt.executeTick(gt.clock.Now(), controls)
	return nil
}

// gameLoop основной игровой цикл
func (gt *GameTicker) gameLoop() {
	defer close(gt.done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-gt.ctx.Done():
			return

		case <-ticker.C:
			if gt.paused.Load() {
				continue
			}

			var controls physics.ControlSet
			if gt.input != nil {
				controls = gt.input.Controls()
			}
			gt.executeTick(gt.clock.Now(), controls)
		}
	}
}

// executeTick выполняет один игровой тик
func (gt *GameTicker) executeTick(tickTime time.Time, controls physics.ControlSet) {
	tickStart := time.Now()

	deltaTime := gt.tickDuration
	if !gt.lastTickTime.IsZero() {
		deltaTime = tickTime.Sub(gt.lastTickTime)
	}

	// Проверяем, не слишком ли большая задержка между тиками
	if deltaTime > gt.tickDuration*2 && gt.running.Load() {
		gt.logger.Warn().
			Dur("delta", deltaTime).
			Dur("expected", gt.tickDuration).
			Msg("large gap between ticks")
		gt.statsMutex.Lock()
		gt.skippedTicks++
		gt.statsMutex.Unlock()
	}
	gt.lastTickTime = tickTime

	tick := &TickContext{
		Number:   gt.tickCount.Add(1),
		Time:     tickTime,
		Delta:    deltaTime,
		Controls: controls,
	}

	gt.executeAllSystems(tick)

	totalTickTime := time.Since(tickStart)
	gt.updateTickMetrics(totalTickTime)
	gt.perfMonitor.recordTick(totalTickTime)
	gt.checkPerformance(totalTickTime)
}

// executeAllSystems выполняет все зарегистрированные системы
func (gt *GameTicker) executeAllSystems(tick *TickContext) {
	gt.systemsMutex.RLock()
	systems := make([]TickSystem, len(gt.systems))
	copy(systems, gt.systems)
	gt.systemsMutex.RUnlock()

	for _, system := range systems {
		gt.executeSystem(system, tick)
	}
}

// executeSystem выполняет одну систему с замером времени
func (gt *GameTicker) executeSystem(system TickSystem, tick *TickContext) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Error().
				Str("name", systemName).
				Uint64("tick", tick.Number).
				Interface("panic", r).
				Msg("system panicked")
			gt.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(tick)

	gt.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		gt.logger.Error().
			Err(err).
			Str("name", systemName).
			Uint64("tick", tick.Number).
			Msg("system update failed")
		gt.perfMonitor.recordError(systemName)
	}
}

// publish сохраняет снимок и раздает его наблюдателям
func (gt *GameTicker) publish(snapshot *Snapshot) {
	gt.lastSnapshot.Store(snapshot)

	gt.systemsMutex.RLock()
	observers := gt.observers
	gt.systemsMutex.RUnlock()

	for _, observer := range observers {
		observer.OnSnapshot(snapshot)
	}
}

// AddScore добавляет очки и возвращает новый счет
func (gt *GameTicker) AddScore(points int64) int64 {
	return gt.score.Add(points)
}

// Score возвращает текущий счет
func (gt *GameTicker) Score() int64 {
	return gt.score.Load()
}

// LastSnapshot возвращает последний опубликованный снимок или nil
func (gt *GameTicker) LastSnapshot() *Snapshot {
	return gt.lastSnapshot.Load()
}

// GetTickCount возвращает текущее количество тиков
func (gt *GameTicker) GetTickCount() uint64 {
	return gt.tickCount.Load()
}

// IsRunning сообщает, запущен ли игровой цикл
func (gt *GameTicker) IsRunning() bool {
	return gt.running.Load()
}

// IsPaused сообщает, приостановлен ли игровой цикл
func (gt *GameTicker) IsPaused() bool {
	return gt.paused.Load()
}

// PerformanceMonitor возвращает монитор производительности
func (gt *GameTicker) PerformanceMonitor() *PerformanceMonitor {
	return gt.perfMonitor
}

// GetStats возвращает статистику игрового цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	gt.statsMutex.Lock()
	averageTickTime := gt.averageTickTime
	maxObservedTick := gt.maxObservedTick
	skippedTicks := gt.skippedTicks
	gt.statsMutex.Unlock()

	gt.systemsMutex.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMutex.RUnlock()

	tickCount := gt.tickCount.Load()
	var uptime time.Duration
	var actualTPS float64
	if gt.running.Load() {
		uptime = time.Since(gt.startTime)
		if uptime > 0 {
			actualTPS = float64(tickCount) / uptime.Seconds()
		}
	}

	return map[string]interface{}{
		"target_tps":        gt.targetTPS,
		"actual_tps":        actualTPS,
		"tick_count":        tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": averageTickTime.String(),
		"max_observed_tick": maxObservedTick.String(),
		"skipped_ticks":     skippedTicks,
		"is_running":        gt.running.Load(),
		"is_paused":         gt.paused.Load(),
		"systems_count":     systemsCount,
		"score":             gt.score.Load(),
		"systems":           gt.perfMonitor.GetSystemsStats(),
	}
}

func (gt *GameTicker) updateTickMetrics(tickTime time.Duration) {
	gt.statsMutex.Lock()
	defer gt.statsMutex.Unlock()

	if tickTime > gt.maxObservedTick {
		gt.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if gt.averageTickTime == 0 {
		gt.averageTickTime = tickTime
	} else {
		gt.averageTickTime = (gt.averageTickTime*9 + tickTime) / 10
	}
}

func (gt *GameTicker) checkPerformance(tickTime time.Duration) {
	if tickTime > gt.maxTickTime {
		gt.logger.Warn().
			Dur("tick_time", tickTime).
			Dur("limit", gt.maxTickTime).
			Dur("target", gt.tickDuration).
			Msg("tick exceeded maximum time")
	} else if tickTime > gt.warningThreshold {
		gt.logger.Debug().
			Dur("tick_time", tickTime).
			Dur("target", gt.tickDuration).
			Msg("slow tick")
	}
}
