package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

func TestParseScript(t *testing.T) {
	script, err := parseScript("pitch_up+speed_up:120, none:5,yaw_left:1")
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	if len(script) != 3 {
		t.Fatalf("Ожидалось 3 маневра, получено %d", len(script))
	}
	if script[0].controls != physics.NewControlSet(physics.PitchUp, physics.SpeedUp) || script[0].ticks != 120 {
		t.Errorf("Неверный первый маневр: %+v", script[0])
	}
	if !script[1].controls.Empty() || script[1].ticks != 5 {
		t.Errorf("Неверный пустой маневр: %+v", script[1])
	}
}

func TestParseScript_Errors(t *testing.T) {
	for _, input := range []string{"", "pitch_up", "pitch_up:0", "loop:10", "yaw_left:abc"} {
		if _, err := parseScript(input); err == nil {
			t.Errorf("Ожидалась ошибка для %q", input)
		}
	}
}

func TestFlyScript_AdvancesClockPerTick(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := game.NewManualClock(start)

	cfg := game.DefaultSimulationConfig()
	sim, err := game.NewSimulation(cfg, game.SimulationDeps{
		Logger: zerolog.Nop(),
		Clock:  clock,
		Rand:   rand.New(rand.NewPCG(1, 2)),
	})
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	defer sim.Close()

	script := []maneuver{
		{controls: physics.NewControlSet(physics.SpeedUp), ticks: 30},
		{ticks: 30},
	}
	if err := flyScript(sim, clock, script, time.Second/60); err != nil {
		t.Fatalf("flyScript: %v", err)
	}

	if got := sim.Ticker.GetTickCount(); got != 60 {
		t.Errorf("Ожидалось 60 тиков, получено %d", got)
	}
	if got := clock.Now().Sub(start); got != 60*(time.Second/60) {
		t.Errorf("Часы ушли на %v", got)
	}
	if speed := sim.Flight.Speed(); speed != cfg.Flight.MinSpeed+30*cfg.Flight.Acceleration {
		t.Errorf("Скорость %.1f после 30 тиков разгона", speed)
	}
}
