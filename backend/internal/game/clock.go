package game

import (
	"sync"
	"time"
)

// Clock - источник времени для отложенных задач
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает реальное время
type SystemClock struct{}

// Now возвращает текущее время
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock - управляемые часы для тестов и детерминированных прогонов
type ManualClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewManualClock создает часы, остановленные на start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

// Now возвращает текущее значение часов
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance сдвигает часы вперед
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set устанавливает часы
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
