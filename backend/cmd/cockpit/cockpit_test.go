package main

import (
	"math"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

func TestKeyHold_ExpiresWithoutRepeat(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	keys := newKeyHold(100 * time.Millisecond)

	keys.press(physics.YawLeft, start)
	keys.press(physics.SpeedUp, start.Add(80*time.Millisecond))

	got := keys.controls(start.Add(90 * time.Millisecond))
	if got != physics.NewControlSet(physics.YawLeft, physics.SpeedUp) {
		t.Errorf("Ожидались обе команды, получено %v", got.Names())
	}

	got = keys.controls(start.Add(150 * time.Millisecond))
	if got != physics.NewControlSet(physics.SpeedUp) {
		t.Errorf("YawLeft должен истечь, получено %v", got.Names())
	}

	keys.releaseAll()
	if got := keys.controls(start.Add(150 * time.Millisecond)); !got.Empty() {
		t.Errorf("После releaseAll команд быть не должно, получено %v", got.Names())
	}
}

func TestSignalForKey(t *testing.T) {
	tests := []struct {
		ev   *tcell.EventKey
		want physics.ControlSignal
		ok   bool
	}{
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), physics.PitchUp, true},
		{tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), physics.YawLeft, true},
		{tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone), physics.SpeedUp, true},
		{tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone), physics.SpeedDown, true},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), 0, false},
	}

	for _, tt := range tests {
		got, ok := signalForKey(tt.ev)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("signalForKey(%v) = %v, %v; ожидалось %v, %v", tt.ev.Name(), got, ok, tt.want, tt.ok)
		}
	}
}

func TestHeadingArrow(t *testing.T) {
	tests := []struct {
		yaw  float64
		want rune
	}{
		{0, '↑'},
		{math.Pi / 2, '←'},
		{-math.Pi / 2, '→'},
		{math.Pi, '↓'},
		{2*math.Pi + 0.01, '↑'},
	}
	for _, tt := range tests {
		if got := headingArrow(tt.yaw); got != tt.want {
			t.Errorf("headingArrow(%.2f) = %c, ожидалось %c", tt.yaw, got, tt.want)
		}
	}
}

func TestMapView_ProjectRoundTrip(t *testing.T) {
	view := newMapView(80, 24+hudRows, 10, ws.Vec3{X: 100, Z: 200})

	col, row, ok := view.project(100, 200)
	if !ok || col != 40 || row != 12 {
		t.Errorf("Центр должен быть в (40, 12), получено (%d, %d)", col, row)
	}

	// +X уходит влево, +Z вверх
	col, row, _ = view.project(150, 260)
	if col != 35 || row != 9 {
		t.Errorf("Ожидалось (35, 9), получено (%d, %d)", col, row)
	}

	x, z := view.unproject(col, row)
	if x != 150 || z != 260 {
		t.Errorf("unproject вернул (%.1f, %.1f)", x, z)
	}

	if _, _, ok := view.project(100, 10000); ok {
		t.Errorf("Точка за краем карты не должна попадать на экран")
	}
}

func TestDraw_RendersSceneAndHUD(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(40, 20+hudRows)

	state := &cockpitState{
		scale:     10,
		connected: true,
		config: &ws.FlightConfigMessage{
			Terrain: world.DefaultTerrainConfig(),
		},
		snapshot: &ws.SnapshotMessage{
			Tick:  7,
			Score: 20,
			Aircraft: ws.AircraftView{
				Position: ws.Vec3{Y: 120},
				Speed:    80,
			},
			Rings: []ws.RingView{
				{ID: "ring_1", Position: ws.Vec3{X: -50, Y: 120, Z: 40}},
				{ID: "ring_2", Position: ws.Vec3{X: 50}, Collected: true},
			},
			Chunks:   []world.ChunkCoord{{X: 0, Z: 0}},
			Controls: []string{"speed_up"},
		},
	}

	draw(screen, state)

	if r, _, _, _ := screen.GetContent(20, 10); r != '↑' {
		t.Errorf("В центре ожидался самолет, получено %q", r)
	}
	if r, _, _, _ := screen.GetContent(25, 8); r != 'O' {
		t.Errorf("Ожидалось кольцо в (25, 8), получено %q", r)
	}
	if r, _, _, _ := screen.GetContent(15, 10); r == 'O' {
		t.Errorf("Собранное кольцо не должно рисоваться")
	}
	if r, _, _, _ := screen.GetContent(0, 20); r != 'A' {
		t.Errorf("Ожидалась строка приборов, получено %q", r)
	}
}
