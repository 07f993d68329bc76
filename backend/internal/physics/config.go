package physics

import (
	"errors"
	"fmt"
	"math"
)

// FlightConfig содержит настройки аркадной модели полета.
// Все скорости заданы в единицах за тик, углы в радианах.
type FlightConfig struct {
	// MinSpeed - минимальная скорость самолета (сваливания нет)
	MinSpeed float64 `mapstructure:"minSpeed" json:"min_speed"`

	// MaxSpeed - максимальная скорость
	MaxSpeed float64 `mapstructure:"maxSpeed" json:"max_speed"`

	// Acceleration - изменение скорости за один тик SpeedUp/SpeedDown
	Acceleration float64 `mapstructure:"acceleration" json:"acceleration"`

	// PitchSpeed - изменение тангажа за один тик
	PitchSpeed float64 `mapstructure:"pitchSpeed" json:"pitch_speed"`

	// TurnSpeed - изменение рыскания за один тик
	TurnSpeed float64 `mapstructure:"turnSpeed" json:"turn_speed"`

	// RollSpeed - изменение крена за один тик поворота
	RollSpeed float64 `mapstructure:"rollSpeed" json:"roll_speed"`

	// MaxPitch - предельный тангаж по модулю
	MaxPitch float64 `mapstructure:"maxPitch" json:"max_pitch"`

	// MaxRoll - предельный визуальный крен по модулю
	MaxRoll float64 `mapstructure:"maxRoll" json:"max_roll"`

	// RollDamping - множитель затухания крена за тик
	RollDamping float64 `mapstructure:"rollDamping" json:"roll_damping"`

	// Gravity - вертикальное снижение скорости за тик, пока самолет выше земли
	Gravity float64 `mapstructure:"gravity" json:"gravity"`

	// StartAltitude - начальная высота самолета
	StartAltitude float64 `mapstructure:"startAltitude" json:"start_altitude"`
}

// ErrInvalidFlightConfig возвращается Validate для несогласованных настроек
var ErrInvalidFlightConfig = errors.New("invalid flight config")

// DefaultFlightConfig возвращает конфигурацию по умолчанию
func DefaultFlightConfig() FlightConfig {
	return FlightConfig{
		MinSpeed:      50.0,
		MaxSpeed:      300.0,
		Acceleration:  1.0,
		PitchSpeed:    0.02,
		TurnSpeed:     0.02,
		RollSpeed:     0.1,
		MaxPitch:      math.Pi / 4,
		MaxRoll:       0.3,
		RollDamping:   0.95,
		Gravity:       0.1,
		StartAltitude: 100.0,
	}
}

// Validate проверяет согласованность настроек
func (c FlightConfig) Validate() error {
	switch {
	case c.MinSpeed < 0:
		return fmt.Errorf("%w: minSpeed %.2f is negative", ErrInvalidFlightConfig, c.MinSpeed)
	case c.MaxSpeed < c.MinSpeed:
		return fmt.Errorf("%w: maxSpeed %.2f below minSpeed %.2f", ErrInvalidFlightConfig, c.MaxSpeed, c.MinSpeed)
	case c.MaxPitch <= 0 || c.MaxPitch >= math.Pi/2:
		return fmt.Errorf("%w: maxPitch %.3f out of (0, pi/2)", ErrInvalidFlightConfig, c.MaxPitch)
	case c.MaxRoll < 0:
		return fmt.Errorf("%w: maxRoll %.3f is negative", ErrInvalidFlightConfig, c.MaxRoll)
	case c.RollDamping < 0 || c.RollDamping > 1:
		return fmt.Errorf("%w: rollDamping %.3f out of [0, 1]", ErrInvalidFlightConfig, c.RollDamping)
	}
	return nil
}
