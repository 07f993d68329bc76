package game

import (
	"fmt"
	"sort"
	"time"
)

// Состояния здоровья цикла в порядке ухудшения
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

var healthRank = map[string]int{
	HealthHealthy:  0,
	HealthDegraded: 1,
	HealthWarning:  2,
	HealthCritical: 3,
}

// HealthReport - состояние игрового цикла для проверок оркестратора
type HealthReport struct {
	Status          string             `json:"status"`
	Issues          []string           `json:"issues"`
	TargetTPS       int                `json:"target_tps"`
	ActualTPS       float64            `json:"actual_tps"`
	AverageTickTime time.Duration      `json:"average_tick_time"`
	SkippedTicks    uint64             `json:"skipped_ticks"`
	Bottlenecks     []BottleneckReport `json:"bottlenecks"`
}

// BottleneckReport описывает систему, занимающую заметную долю тика
type BottleneckReport struct {
	System        string        `json:"system"`
	Severity      string        `json:"severity"`
	AverageTime   time.Duration `json:"average_time"`
	MaxTime       time.Duration `json:"max_time"`
	PercentOfTick float64       `json:"percent_of_tick"`
}

func (r *HealthReport) raise(status, issue string) {
	if healthRank[status] > healthRank[r.Status] {
		r.Status = status
	}
	r.Issues = append(r.Issues, issue)
}

// Health проверяет частоту тиков, их длительность и пропуски
func (gt *GameTicker) Health() HealthReport {
	gt.statsMutex.Lock()
	averageTickTime := gt.averageTickTime
	skippedTicks := gt.skippedTicks
	gt.statsMutex.Unlock()

	report := HealthReport{
		Status:          HealthHealthy,
		Issues:          []string{},
		TargetTPS:       gt.targetTPS,
		AverageTickTime: averageTickTime,
		SkippedTicks:    skippedTicks,
	}

	if gt.running.Load() && !gt.paused.Load() {
		if uptime := time.Since(gt.startTime); uptime > time.Second {
			report.ActualTPS = float64(gt.tickCount.Load()) / uptime.Seconds()
			if report.ActualTPS < float64(gt.targetTPS)*0.9 {
				report.raise(HealthDegraded, fmt.Sprintf("tps below target: %.1f/%d", report.ActualTPS, gt.targetTPS))
			}
		}
	}

	if averageTickTime > gt.warningThreshold {
		report.raise(HealthWarning, fmt.Sprintf("slow ticks: %v (limit %v)", averageTickTime, gt.warningThreshold))
	}

	if skippedTicks > 0 {
		report.raise(HealthCritical, fmt.Sprintf("skipped ticks: %d", skippedTicks))
	}

	report.Bottlenecks = gt.perfMonitor.FindBottlenecks(gt.tickDuration)
	for _, b := range report.Bottlenecks {
		report.raise(HealthWarning, fmt.Sprintf("system %s takes %.0f%% of tick", b.System, b.PercentOfTick))
	}

	return report
}

// FindBottlenecks возвращает системы, чье среднее время превышает порог предупреждения.
// Результат отсортирован по убыванию среднего времени.
func (pm *PerformanceMonitor) FindBottlenecks(tickDuration time.Duration) []BottleneckReport {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	var reports []BottleneckReport
	for name, metrics := range pm.systemMetrics {
		severity := ""
		switch {
		case metrics.AverageTime > pm.criticalThreshold:
			severity = HealthCritical
		case metrics.AverageTime > pm.warningThreshold:
			severity = HealthWarning
		default:
			continue
		}

		reports = append(reports, BottleneckReport{
			System:        name,
			Severity:      severity,
			AverageTime:   metrics.AverageTime,
			MaxTime:       metrics.MaxTime,
			PercentOfTick: float64(metrics.AverageTime) / float64(tickDuration) * 100,
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].AverageTime > reports[j].AverageTime
	})
	return reports
}
