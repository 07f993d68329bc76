package main

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

// keyHoldTime - сколько команда считается удерживаемой после нажатия.
// Терминал не сообщает об отпускании клавиш, автоповтор продлевает удержание.
const keyHoldTime = 180 * time.Millisecond

// keyBindings связывает клавиши с командами
var keyBindings = map[tcell.Key]physics.ControlSignal{
	tcell.KeyUp:    physics.PitchUp,
	tcell.KeyDown:  physics.PitchDown,
	tcell.KeyLeft:  physics.YawLeft,
	tcell.KeyRight: physics.YawRight,
}

var runeBindings = map[rune]physics.ControlSignal{
	'w': physics.SpeedUp,
	'+': physics.SpeedUp,
	'=': physics.SpeedUp,
	's': physics.SpeedDown,
	'-': physics.SpeedDown,
}

// signalForKey возвращает команду для нажатой клавиши
func signalForKey(ev *tcell.EventKey) (physics.ControlSignal, bool) {
	if ev.Key() == tcell.KeyRune {
		signal, ok := runeBindings[ev.Rune()]
		return signal, ok
	}
	signal, ok := keyBindings[ev.Key()]
	return signal, ok
}

// keyHold хранит время последнего нажатия каждой команды
type keyHold struct {
	pressed map[physics.ControlSignal]time.Time
	hold    time.Duration
}

func newKeyHold(hold time.Duration) *keyHold {
	return &keyHold{
		pressed: make(map[physics.ControlSignal]time.Time),
		hold:    hold,
	}
}

func (k *keyHold) press(signal physics.ControlSignal, now time.Time) {
	k.pressed[signal] = now
}

// controls возвращает удерживаемые на момент now команды и забывает истекшие
func (k *keyHold) controls(now time.Time) physics.ControlSet {
	var set physics.ControlSet
	for signal, at := range k.pressed {
		if now.Sub(at) > k.hold {
			delete(k.pressed, signal)
			continue
		}
		set = set.With(signal)
	}
	return set
}

func (k *keyHold) releaseAll() {
	clear(k.pressed)
}
