package main

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
)

func TestNewAutopilot_UnknownPattern(t *testing.T) {
	if _, err := NewAutopilot("zigzag", nil); err == nil {
		t.Errorf("Ожидалась ошибка для неизвестного паттерна")
	}
}

func TestSeek_TurnsTowardsRing(t *testing.T) {
	aircraft := ws.AircraftView{Position: ws.Vec3{Y: 100}}

	// Цель слева по +X: нос смотрит вдоль +Z, поворот влево увеличивает рыскание
	controls := seek(aircraft, ws.Vec3{X: 500, Y: 100, Z: 10})
	if !controls.Has(physics.YawLeft) || controls.Has(physics.YawRight) {
		t.Errorf("Ожидался поворот влево, получено %v", controls.Names())
	}

	controls = seek(aircraft, ws.Vec3{X: -500, Y: 100, Z: 10})
	if !controls.Has(physics.YawRight) {
		t.Errorf("Ожидался поворот вправо, получено %v", controls.Names())
	}

	controls = seek(aircraft, ws.Vec3{Y: 100, Z: 1000})
	if controls.Has(physics.YawLeft) || controls.Has(physics.YawRight) || !controls.Has(physics.SpeedUp) {
		t.Errorf("Цель прямо по курсу: ожидался разгон без поворота, получено %v", controls.Names())
	}
}

func TestSeek_WrapsBearing(t *testing.T) {
	// Курс почти 2*pi совпадает с курсом 0
	aircraft := ws.AircraftView{Position: ws.Vec3{Y: 100}, Yaw: 2*math.Pi - 0.01}
	controls := seek(aircraft, ws.Vec3{Y: 100, Z: 1000})
	if controls.Has(physics.YawRight) || controls.Has(physics.YawLeft) {
		t.Errorf("Курс не приведен к [-pi, pi]: %v", controls.Names())
	}
}

func TestHoldAltitude(t *testing.T) {
	low := ws.AircraftView{Position: ws.Vec3{Y: 50}}
	if got := holdAltitude(low, 200); !got.Has(physics.PitchUp) {
		t.Errorf("Ниже цели ожидался PitchUp, получено %v", got.Names())
	}

	high := ws.AircraftView{Position: ws.Vec3{Y: 400}}
	if got := holdAltitude(high, 200); !got.Has(physics.PitchDown) {
		t.Errorf("Выше цели ожидался PitchDown, получено %v", got.Names())
	}

	level := ws.AircraftView{Position: ws.Vec3{Y: 205}}
	if got := holdAltitude(level, 200); !got.Empty() {
		t.Errorf("На высоте с нулевым тангажем команды не нужны, получено %v", got.Names())
	}
}

func TestNearestRing_SkipsCollected(t *testing.T) {
	rings := []ws.RingView{
		{ID: "ring_1", Position: ws.Vec3{X: 10}, Collected: true},
		{ID: "ring_2", Position: ws.Vec3{X: 300}},
		{ID: "ring_3", Position: ws.Vec3{X: 100}},
	}

	ring, ok := nearestRing(ws.Vec3{}, rings)
	if !ok || ring.ID != "ring_3" {
		t.Errorf("Ожидалось ring_3, получено %s (ok=%v)", ring.ID, ok)
	}

	if _, ok := nearestRing(ws.Vec3{}, rings[:1]); ok {
		t.Errorf("Собранные кольца не должны выбираться")
	}
}

func TestAutopilot_SeekFallsBackToCircle(t *testing.T) {
	pilot, err := NewAutopilot(PatternSeek, nil)
	if err != nil {
		t.Fatalf("NewAutopilot: %v", err)
	}

	controls := pilot.Steer(&ws.SnapshotMessage{Aircraft: ws.AircraftView{Position: ws.Vec3{Y: cruiseAltitude}}})
	if !controls.Has(physics.YawLeft) {
		t.Errorf("Без колец бот должен кружить, получено %v", controls.Names())
	}
}

func TestAutopilot_RandomHoldsControls(t *testing.T) {
	pilot, err := NewAutopilot(PatternRandom, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewAutopilot: %v", err)
	}

	snapshot := &ws.SnapshotMessage{}
	first := pilot.Steer(snapshot)
	hold := pilot.hold
	for i := 0; i < hold; i++ {
		if got := pilot.Steer(snapshot); got != first {
			t.Fatalf("Команды сменились на шаге %d из %d", i, hold)
		}
	}
}
