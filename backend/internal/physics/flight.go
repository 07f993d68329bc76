package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AircraftState - состояние самолета на момент тика
type AircraftState struct {
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
	Pitch    float64    `json:"pitch"`
	Yaw      float64    `json:"yaw"`
	Roll     float64    `json:"roll"`
	Speed    float64    `json:"speed"`
}

// FlightModel интегрирует аркадную динамику полета.
// Не потокобезопасна: вызывается только из горутины симуляции.
type FlightModel struct {
	config FlightConfig
	state  AircraftState
}

// NewFlightModel создает модель полета в начальном состоянии
func NewFlightModel(config FlightConfig) *FlightModel {
	fm := &FlightModel{config: config}
	fm.Reset()
	return fm
}

// Reset возвращает самолет в начальное состояние
func (fm *FlightModel) Reset() {
	fm.state = AircraftState{
		Position: mgl64.Vec3{0, fm.config.StartAltitude, 0},
		Speed:    fm.config.MinSpeed,
	}
}

// ApplyControl применяет одну команду к ориентации или скорости.
// Все изменения насыщаются на границах, ошибок нет.
func (fm *FlightModel) ApplyControl(signal ControlSignal) {
	cfg := &fm.config
	s := &fm.state

	switch signal {
	case PitchUp:
		s.Pitch = math.Max(s.Pitch-cfg.PitchSpeed, -cfg.MaxPitch)
	case PitchDown:
		s.Pitch = math.Min(s.Pitch+cfg.PitchSpeed, cfg.MaxPitch)
	case YawLeft:
		s.Yaw += cfg.TurnSpeed
		s.Roll = math.Max(s.Roll-cfg.RollSpeed, -cfg.MaxRoll)
	case YawRight:
		s.Yaw -= cfg.TurnSpeed
		s.Roll = math.Min(s.Roll+cfg.RollSpeed, cfg.MaxRoll)
	case SpeedUp:
		s.Speed = math.Min(s.Speed+cfg.Acceleration, cfg.MaxSpeed)
	case SpeedDown:
		s.Speed = math.Max(s.Speed-cfg.Acceleration, cfg.MinSpeed)
	}
}

// ApplyControls применяет все команды набора в фиксированном порядке
func (fm *FlightModel) ApplyControls(controls ControlSet) {
	for _, signal := range controls.Signals() {
		fm.ApplyControl(signal)
	}
}

// Advance выполняет один шаг интегрирования.
// Позиция сдвигается на скорость прошлого тика, затем скорость
// пересчитывается из текущей ориентации.
func (fm *FlightModel) Advance() {
	cfg := &fm.config
	s := &fm.state

	s.Position = s.Position.Add(s.Velocity)

	s.Velocity = mgl64.Vec3{
		math.Sin(s.Yaw) * s.Speed,
		math.Sin(-s.Pitch) * s.Speed,
		math.Cos(s.Yaw) * s.Speed,
	}

	s.Roll *= cfg.RollDamping

	if s.Position.Y() > 0 {
		s.Velocity[1] -= cfg.Gravity
	}

	// Земля плоская на нулевой высоте
	if s.Position.Y() < 0 {
		s.Position[1] = 0
		s.Velocity[1] = 0
	}
}

// Position возвращает текущую позицию
func (fm *FlightModel) Position() mgl64.Vec3 { return fm.state.Position }

// Velocity возвращает скорость, вычисленную на последнем шаге
func (fm *FlightModel) Velocity() mgl64.Vec3 { return fm.state.Velocity }

// Pitch возвращает тангаж в радианах
func (fm *FlightModel) Pitch() float64 { return fm.state.Pitch }

// Yaw возвращает рыскание в радианах
func (fm *FlightModel) Yaw() float64 { return fm.state.Yaw }

// Roll возвращает визуальный крен в радианах
func (fm *FlightModel) Roll() float64 { return fm.state.Roll }

// Speed возвращает скорость
func (fm *FlightModel) Speed() float64 { return fm.state.Speed }

// State возвращает копию состояния
func (fm *FlightModel) State() AircraftState { return fm.state }

// Config возвращает конфигурацию модели
func (fm *FlightModel) Config() FlightConfig { return fm.config }

// Orientation возвращает ориентацию самолета кватернионом для клиентов.
// Порядок поворотов: рыскание вокруг Y, затем тангаж вокруг X, затем крен вокруг Z.
func Orientation(state AircraftState) mgl64.Quat {
	return mgl64.AnglesToQuat(state.Yaw, state.Pitch, state.Roll, mgl64.YXZ)
}

// Heading возвращает единичный вектор направления носа в горизонтальной плоскости
func Heading(yaw float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(yaw), 0, math.Cos(yaw)}
}
