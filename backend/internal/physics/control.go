package physics

import (
	"errors"
	"fmt"
	"strings"
)

// ControlSignal - дискретная команда управления самолетом
type ControlSignal uint8

const (
	PitchUp ControlSignal = iota
	PitchDown
	YawLeft
	YawRight
	SpeedUp
	SpeedDown

	controlCount
)

// ErrUnknownControl возвращается при разборе неизвестного имени команды
var ErrUnknownControl = errors.New("unknown control signal")

var controlNames = [controlCount]string{
	PitchUp:   "pitch_up",
	PitchDown: "pitch_down",
	YawLeft:   "yaw_left",
	YawRight:  "yaw_right",
	SpeedUp:   "speed_up",
	SpeedDown: "speed_down",
}

// String возвращает имя команды в формате протокола
func (c ControlSignal) String() string {
	if c < controlCount {
		return controlNames[c]
	}
	return fmt.Sprintf("control(%d)", uint8(c))
}

// ParseControl разбирает имя команды. Регистр и разделители "-"/"_" не важны,
// поэтому "pitch_up", "PitchUp" и "pitch-up" дают одну и ту же команду.
func ParseControl(name string) (ControlSignal, error) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
	for i, candidate := range controlNames {
		if strings.ReplaceAll(candidate, "_", "") == normalized {
			return ControlSignal(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// AllControls возвращает все команды в порядке применения
func AllControls() []ControlSignal {
	controls := make([]ControlSignal, 0, controlCount)
	for c := ControlSignal(0); c < controlCount; c++ {
		controls = append(controls, c)
	}
	return controls
}

// ControlSet - набор удерживаемых команд за один тик.
// Значение копируется целиком, общего состояния нет.
type ControlSet uint8

// NewControlSet создает набор из перечисленных команд
func NewControlSet(signals ...ControlSignal) ControlSet {
	var set ControlSet
	for _, s := range signals {
		set = set.With(s)
	}
	return set
}

// With возвращает набор с добавленной командой
func (s ControlSet) With(c ControlSignal) ControlSet {
	if c >= controlCount {
		return s
	}
	return s | 1<<c
}

// Without возвращает набор без команды
func (s ControlSet) Without(c ControlSignal) ControlSet {
	if c >= controlCount {
		return s
	}
	return s &^ (1 << c)
}

// Has сообщает, удерживается ли команда
func (s ControlSet) Has(c ControlSignal) bool {
	return c < controlCount && s&(1<<c) != 0
}

// Empty сообщает, что ни одна команда не удерживается
func (s ControlSet) Empty() bool {
	return s == 0
}

// Signals возвращает команды набора в фиксированном порядке применения
func (s ControlSet) Signals() []ControlSignal {
	signals := make([]ControlSignal, 0, controlCount)
	for c := ControlSignal(0); c < controlCount; c++ {
		if s.Has(c) {
			signals = append(signals, c)
		}
	}
	return signals
}

// Names возвращает имена команд набора для протокола
func (s ControlSet) Names() []string {
	signals := s.Signals()
	names := make([]string, len(signals))
	for i, c := range signals {
		names[i] = c.String()
	}
	return names
}

// ParseControlSet собирает набор из имен команд
func ParseControlSet(names []string) (ControlSet, error) {
	var set ControlSet
	for _, name := range names {
		c, err := ParseControl(name)
		if err != nil {
			return 0, err
		}
		set = set.With(c)
	}
	return set, nil
}
