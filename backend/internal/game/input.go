package game

import (
	"sync"
	"time"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

// DefaultHoldTimeout - время, после которого неподтвержденная команда считается отпущенной
const DefaultHoldTimeout = 250 * time.Millisecond

// InputCollector собирает удерживаемые команды из любых горутин
// и выдает копию набора на каждый тик.
type InputCollector struct {
	mu          sync.Mutex
	held        map[physics.ControlSignal]time.Time
	holdTimeout time.Duration
	clock       Clock
}

// NewInputCollector создает сборщик ввода. holdTimeout <= 0 отключает истечение.
func NewInputCollector(holdTimeout time.Duration, clock Clock) *InputCollector {
	if clock == nil {
		clock = SystemClock{}
	}
	return &InputCollector{
		held:        make(map[physics.ControlSignal]time.Time),
		holdTimeout: holdTimeout,
		clock:       clock,
	}
}

// Press отмечает команду удерживаемой
func (ic *InputCollector) Press(signal physics.ControlSignal) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.held[signal] = ic.clock.Now()
}

// Release отпускает команду
func (ic *InputCollector) Release(signal physics.ControlSignal) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.held, signal)
}

// Set заменяет набор удерживаемых команд целиком
func (ic *InputCollector) Set(controls physics.ControlSet) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	now := ic.clock.Now()
	clear(ic.held)
	for _, signal := range controls.Signals() {
		ic.held[signal] = now
	}
}

// ReleaseAll отпускает все команды
func (ic *InputCollector) ReleaseAll() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	clear(ic.held)
}

// Controls возвращает набор команд для текущего тика
func (ic *InputCollector) Controls() physics.ControlSet {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	now := ic.clock.Now()
	var set physics.ControlSet
	for signal, pressedAt := range ic.held {
		if ic.holdTimeout > 0 && now.Sub(pressedAt) > ic.holdTimeout {
			delete(ic.held, signal)
			continue
		}
		set = set.With(signal)
	}
	return set
}
