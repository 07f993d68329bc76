package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// hudRows - строки под картой для приборов и событий
const hudRows = 4

var (
	styleDefault = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleGround  = styleDefault.Foreground(tcell.ColorDarkGreen)
	styleRing    = styleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleBurst   = styleDefault.Foreground(tcell.ColorOrange)
	stylePlane   = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleHUD     = styleDefault.Foreground(tcell.ColorLime)
	styleEvent   = styleDefault.Foreground(tcell.ColorGray)
	styleControl = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
)

// Стрелки по часовой стрелке начиная с направления вверх
var headingArrows = [8]rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}

// mapView проецирует мир на экран сверху.
// Центр экрана - самолет, +Z вверх, +X влево.
type mapView struct {
	width, height int
	scale         float64 // мировых единиц на столбец; строка вдвое выше
	center        ws.Vec3
}

func newMapView(width, height int, scale float64, center ws.Vec3) mapView {
	return mapView{
		width:  width,
		height: max(height-hudRows, 1),
		scale:  scale,
		center: center,
	}
}

// project возвращает клетку экрана для мировой точки
func (v mapView) project(x, z float64) (col, row int, ok bool) {
	col = v.width/2 - int(math.Round((x-v.center.X)/v.scale))
	row = v.height/2 - int(math.Round((z-v.center.Z)/(2*v.scale)))
	ok = col >= 0 && col < v.width && row >= 0 && row < v.height
	return col, row, ok
}

// unproject возвращает мировую точку в центре клетки экрана
func (v mapView) unproject(col, row int) (x, z float64) {
	x = v.center.X - float64(col-v.width/2)*v.scale
	z = v.center.Z - float64(row-v.height/2)*2*v.scale
	return x, z
}

// headingArrow выбирает стрелку для курса yaw на карте
func headingArrow(yaw float64) rune {
	// Нос смотрит вдоль (sin yaw, cos yaw), ось X на карте развернута
	angle := math.Atan2(-math.Sin(yaw), math.Cos(yaw))
	index := int(math.Round(angle/(math.Pi/4))) % 8
	if index < 0 {
		index += 8
	}
	return headingArrows[index]
}

// cockpitState - все, что нужно для отрисовки кадра
type cockpitState struct {
	snapshot  *ws.SnapshotMessage
	config    *ws.FlightConfigMessage
	scale     float64
	connected bool
	events    []string
}

func (s *cockpitState) addEvent(format string, args ...interface{}) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
	if len(s.events) > hudRows-2 {
		s.events = s.events[len(s.events)-(hudRows-2):]
	}
}

// draw рисует кадр на экране
func draw(screen tcell.Screen, state *cockpitState) {
	screen.Clear()
	width, height := screen.Size()

	snapshot := state.snapshot
	if snapshot == nil {
		drawText(screen, 0, 0, styleHUD, "Waiting for snapshot...")
		screen.Show()
		return
	}

	aircraft := snapshot.Aircraft
	view := newMapView(width, height, state.scale, aircraft.Position)

	if state.config != nil && state.config.Terrain.ChunkSize > 0 {
		drawGround(screen, view, snapshot.Chunks, state.config.Terrain.ChunkSize)
	}

	for _, burst := range snapshot.Bursts {
		for _, p := range burst.Particles {
			if col, row, ok := view.project(p.X, p.Z); ok {
				screen.SetContent(col, row, '*', nil, styleBurst)
			}
		}
	}

	for _, ring := range snapshot.Rings {
		if ring.Collected {
			continue
		}
		if col, row, ok := view.project(ring.Position.X, ring.Position.Z); ok {
			screen.SetContent(col, row, 'O', nil, styleRing)
		}
	}

	col, row, _ := view.project(aircraft.Position.X, aircraft.Position.Z)
	screen.SetContent(col, row, headingArrow(aircraft.Yaw), nil, stylePlane)

	drawHUD(screen, view.height, state)
	screen.Show()
}

// drawGround отмечает клетки загруженных тайлов
func drawGround(screen tcell.Screen, view mapView, chunks []world.ChunkCoord, chunkSize float64) {
	loaded := make(map[world.ChunkCoord]struct{}, len(chunks))
	for _, c := range chunks {
		loaded[c] = struct{}{}
	}

	for row := 0; row < view.height; row++ {
		for col := 0; col < view.width; col++ {
			x, z := view.unproject(col, row)
			cell := world.CellOf(mgl64.Vec3{x, 0, z}, chunkSize)
			if _, ok := loaded[cell]; !ok {
				continue
			}
			// Границы тайлов рисуются плотнее
			next := world.CellOf(mgl64.Vec3{x - view.scale, 0, z}, chunkSize)
			glyph := '.'
			if next != cell {
				glyph = ':'
			}
			screen.SetContent(col, row, glyph, nil, styleGround)
		}
	}
}

func drawHUD(screen tcell.Screen, top int, state *cockpitState) {
	snapshot := state.snapshot
	aircraft := snapshot.Aircraft

	status := "online"
	if !state.connected {
		status = "offline"
	}
	line := fmt.Sprintf(
		"ALT %6.0f  SPD %5.1f  HDG %4.0f°  PITCH %+5.1f°  ROLL %+5.1f°  SCORE %d  RINGS %d  TICK %d  [%s]",
		aircraft.Position.Y,
		aircraft.Speed,
		headingDegrees(aircraft.Yaw),
		-aircraft.Pitch*180/math.Pi,
		aircraft.Roll*180/math.Pi,
		snapshot.Score,
		snapshot.Captured,
		snapshot.Tick,
		status,
	)
	drawText(screen, 0, top, styleHUD, line)

	controls := "controls: " + strings.Join(snapshot.Controls, " ")
	drawText(screen, 0, top+1, styleControl, controls)

	for i, event := range state.events {
		drawText(screen, 0, top+2+i, styleEvent, event)
	}
}

// headingDegrees переводит рыскание в курс 0..360
func headingDegrees(yaw float64) float64 {
	deg := math.Mod(yaw*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
