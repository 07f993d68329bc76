package game

import (
	"testing"
	"time"
)

// sleepySystem имитирует тяжелую систему
type sleepySystem struct {
	name  string
	sleep time.Duration
}

func (s *sleepySystem) Update(*TickContext) error {
	time.Sleep(s.sleep)
	return nil
}

func (s *sleepySystem) GetName() string  { return s.name }
func (s *sleepySystem) GetPriority() int { return 1 }

func TestGameTicker_HealthyWhenIdle(t *testing.T) {
	ticker := createTestTicker(t)

	report := ticker.Health()
	if report.Status != HealthHealthy {
		t.Errorf("Ожидалось %s, получено %s: %v", HealthHealthy, report.Status, report.Issues)
	}
	if report.TargetTPS != 60 {
		t.Errorf("Ожидалось 60 TPS, получено %d", report.TargetTPS)
	}
	if len(report.Bottlenecks) != 0 {
		t.Errorf("Узких мест быть не должно: %v", report.Bottlenecks)
	}
}

func TestGameTicker_HealthReportsSlowSystem(t *testing.T) {
	ticker := createTestTicker(t)
	ticker.RegisterSystem(&sleepySystem{name: "Fast"})
	ticker.RegisterSystem(&sleepySystem{name: "Slow", sleep: 12 * time.Millisecond})

	for i := 0; i < 3; i++ {
		if err := ticker.Step(0); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	report := ticker.Health()
	if report.Status != HealthWarning {
		t.Errorf("Ожидалось %s, получено %s", HealthWarning, report.Status)
	}
	if len(report.Bottlenecks) != 1 || report.Bottlenecks[0].System != "Slow" {
		t.Fatalf("Ожидалось одно узкое место Slow, получено %+v", report.Bottlenecks)
	}

	// 12ms из 16.6ms тика превышают критический порог в половину тика
	slow := report.Bottlenecks[0]
	if slow.Severity != HealthCritical {
		t.Errorf("Ожидалась критичность %s, получено %s", HealthCritical, slow.Severity)
	}
	if slow.PercentOfTick < 50 {
		t.Errorf("Доля тика %.1f%% слишком мала", slow.PercentOfTick)
	}
	if len(report.Issues) < 2 {
		t.Errorf("Ожидались проблемы тика и системы, получено %v", report.Issues)
	}
}
