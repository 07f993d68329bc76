package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
)

// Паттерны полета бота
const (
	PatternSeek   = "seek"
	PatternCircle = "circle"
	PatternRandom = "random"
)

const (
	// yawDeadZone - ошибка курса, при которой бот летит прямо
	yawDeadZone = 0.05
	// altitudeDeadZone - разница высот, при которой бот не меняет тангаж
	altitudeDeadZone = 15.0
	// cruiseAltitude - высота патрулирования без цели
	cruiseAltitude = 200.0
)

// Autopilot выбирает команды по последнему снимку мира
type Autopilot struct {
	pattern string
	rng     *rand.Rand
	current physics.ControlSet
	hold    int
}

// NewAutopilot создает автопилот с заданным паттерном
func NewAutopilot(pattern string, rng *rand.Rand) (*Autopilot, error) {
	switch pattern {
	case PatternSeek, PatternCircle, PatternRandom:
	default:
		return nil, fmt.Errorf("unknown pattern %q", pattern)
	}
	return &Autopilot{pattern: pattern, rng: rng}, nil
}

// Steer возвращает набор команд для снимка
func (a *Autopilot) Steer(snapshot *ws.SnapshotMessage) physics.ControlSet {
	switch a.pattern {
	case PatternCircle:
		return a.circle(snapshot.Aircraft)
	case PatternRandom:
		return a.random()
	default:
		ring, ok := nearestRing(snapshot.Aircraft.Position, snapshot.Rings)
		if !ok {
			return a.circle(snapshot.Aircraft)
		}
		return seek(snapshot.Aircraft, ring.Position)
	}
}

func (a *Autopilot) circle(aircraft ws.AircraftView) physics.ControlSet {
	controls := physics.NewControlSet(physics.YawLeft)
	return controls | holdAltitude(aircraft, cruiseAltitude)
}

// random держит случайную комбинацию несколько снимков подряд
func (a *Autopilot) random() physics.ControlSet {
	if a.hold > 0 {
		a.hold--
		return a.current
	}

	var controls physics.ControlSet
	for _, signal := range physics.AllControls() {
		if a.rng.IntN(3) == 0 {
			controls = controls.With(signal)
		}
	}
	a.current = controls
	a.hold = 5 + a.rng.IntN(20)
	return controls
}

// seek разворачивает нос к цели и выравнивает высоту
func seek(aircraft ws.AircraftView, target ws.Vec3) physics.ControlSet {
	dx := target.X - aircraft.Position.X
	dz := target.Z - aircraft.Position.Z

	var controls physics.ControlSet

	// Нос смотрит вдоль (sin yaw, cos yaw), рост рыскания - поворот влево
	bearing := math.Atan2(dx, dz)
	switch diff := wrapAngle(bearing - aircraft.Yaw); {
	case diff > yawDeadZone:
		controls = controls.With(physics.YawLeft)
	case diff < -yawDeadZone:
		controls = controls.With(physics.YawRight)
	default:
		controls = controls.With(physics.SpeedUp)
	}

	return controls | holdAltitude(aircraft, target.Y)
}

// holdAltitude набирает или сбрасывает высоту к целевой.
// Отрицательный тангаж поднимает нос.
func holdAltitude(aircraft ws.AircraftView, altitude float64) physics.ControlSet {
	diff := altitude - aircraft.Position.Y
	switch {
	case diff > altitudeDeadZone:
		return physics.NewControlSet(physics.PitchUp)
	case diff < -altitudeDeadZone:
		return physics.NewControlSet(physics.PitchDown)
	case aircraft.Pitch < 0:
		return physics.NewControlSet(physics.PitchDown)
	case aircraft.Pitch > 0:
		return physics.NewControlSet(physics.PitchUp)
	}
	return 0
}

func nearestRing(position ws.Vec3, rings []ws.RingView) (ws.RingView, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, ring := range rings {
		if ring.Collected {
			continue
		}
		dx := ring.Position.X - position.X
		dy := ring.Position.Y - position.Y
		dz := ring.Position.Z - position.Z
		if dist := dx*dx + dy*dy + dz*dz; dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return ws.RingView{}, false
	}
	return rings[best], true
}

// wrapAngle приводит угол к [-pi, pi]
func wrapAngle(angle float64) float64 {
	return math.Remainder(angle, 2*math.Pi)
}
