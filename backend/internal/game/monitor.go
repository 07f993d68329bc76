package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/noziyeas/flying-plane-sub001/backend/internal/game"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// PerformanceMonitor отслеживает производительность каждой системы
// и дублирует измерения в OpenTelemetry (no-op, если провайдер не настроен).
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow     int           // Количество последних тиков для усреднения
	warningThreshold  time.Duration // Порог предупреждения для системы
	criticalThreshold time.Duration // Критический порог

	tickDuration   metric.Float64Histogram
	systemDuration metric.Float64Histogram
	systemErrors   metric.Int64Counter
	ringsCaptured  metric.Int64Counter
	liveChunks     metric.Int64UpDownCounter
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) (*PerformanceMonitor, error) {
	if windowSize <= 0 {
		windowSize = 50
	}

	pm := &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}

	m := meter()
	var err error

	pm.tickDuration, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Wall time spent executing one simulation tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	pm.systemDuration, err = m.Float64Histogram(
		"sim.system.duration",
		metric.WithDescription("Wall time spent in a tick system"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating system duration histogram: %w", err)
	}

	pm.systemErrors, err = m.Int64Counter(
		"sim.system.errors",
		metric.WithDescription("Errors and recovered panics raised by tick systems"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating system error counter: %w", err)
	}

	pm.ringsCaptured, err = m.Int64Counter(
		"sim.rings.captured",
		metric.WithDescription("Rings captured by the aircraft"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rings counter: %w", err)
	}

	pm.liveChunks, err = m.Int64UpDownCounter(
		"sim.chunks.live",
		metric.WithDescription("Terrain chunks currently streamed in"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating live chunks counter: %w", err)
	}

	return pm, nil
}

func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.systemDuration.Record(context.Background(), durationMillis(executionTime),
		metric.WithAttributes(attribute.String("system", systemName)))

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++

	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	// Добавляем в скользящее окно
	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow

	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.systemErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("system", systemName)))

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recordTick(tickTime time.Duration) {
	pm.tickDuration.Record(context.Background(), durationMillis(tickTime))
}

// RecordCaptures учитывает пойманные кольца
func (pm *PerformanceMonitor) RecordCaptures(n int) {
	if n <= 0 {
		return
	}
	pm.ringsCaptured.Add(context.Background(), int64(n))
}

// RecordChunkDelta учитывает изменение числа загруженных тайлов
func (pm *PerformanceMonitor) RecordChunkDelta(created, released int) {
	if delta := created - released; delta != 0 {
		pm.liveChunks.Add(context.Background(), int64(delta))
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	var total time.Duration

	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}

	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
	}

	if limit > 0 {
		metrics.AverageTime = total / time.Duration(limit)
	}
}

// GetSystemMetrics возвращает копию метрик системы
func (pm *PerformanceMonitor) GetSystemMetrics(systemName string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return SystemMetrics{}, false
	}
	result := *metrics
	result.recentTimes = nil
	return result, true
}

// GetSystemsStats возвращает метрики всех систем
func (pm *PerformanceMonitor) GetSystemsStats() map[string]interface{} {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	systemsStats := make(map[string]interface{})

	for name, metrics := range pm.systemMetrics {
		systemsStats[name] = map[string]interface{}{
			"last_execution_time": metrics.LastExecutionTime.String(),
			"average_time":        metrics.AverageTime.String(),
			"max_time":            metrics.MaxTime.String(),
			"total_executions":    metrics.TotalExecutions,
			"errors":              metrics.Errors,
		}
	}

	return systemsStats
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
