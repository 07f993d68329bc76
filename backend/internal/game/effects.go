package game

import (
	"context"
	"time"
)

// TaskHandle идентифицирует отложенную задачу
type TaskHandle uint64

type scheduledTask struct {
	handle TaskHandle
	due    time.Time
	ctx    context.Context
	fn     func()
}

// EffectScheduler выполняет отложенные косметические задачи.
// Опрашивается горутиной симуляции раз в тик, поэтому задачи
// никогда не выполняются параллельно с ядром. Не потокобезопасен.
type EffectScheduler struct {
	clock      Clock
	tasks      []*scheduledTask
	nextHandle TaskHandle

	fired     uint64
	cancelled uint64
}

// NewEffectScheduler создает планировщик на заданных часах
func NewEffectScheduler(clock Clock) *EffectScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &EffectScheduler{
		clock:      clock,
		nextHandle: 1,
	}
}

// Schedule откладывает fn на delay. Если ctx отменен до срока,
// задача снимается без выполнения.
func (s *EffectScheduler) Schedule(ctx context.Context, delay time.Duration, fn func()) TaskHandle {
	handle := s.nextHandle
	s.nextHandle++

	s.tasks = append(s.tasks, &scheduledTask{
		handle: handle,
		due:    s.clock.Now().Add(delay),
		ctx:    ctx,
		fn:     fn,
	})
	return handle
}

// Cancel снимает задачу. Возвращает false, если задача уже выполнена или снята.
func (s *EffectScheduler) Cancel(handle TaskHandle) bool {
	for i, task := range s.tasks {
		if task.handle == handle {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			s.cancelled++
			return true
		}
	}
	return false
}

// RunDue выполняет созревшие задачи в порядке постановки и возвращает их число.
// Задачи с отмененным контекстом удаляются без выполнения.
func (s *EffectScheduler) RunDue() int {
	if len(s.tasks) == 0 {
		return 0
	}

	now := s.clock.Now()
	var due []*scheduledTask
	pending := s.tasks[:0]

	for _, task := range s.tasks {
		switch {
		case task.ctx != nil && task.ctx.Err() != nil:
			s.cancelled++
		case !now.Before(task.due):
			due = append(due, task)
		default:
			pending = append(pending, task)
		}
	}
	// Хвост старого среза больше не нужен
	clear(s.tasks[len(pending):])
	s.tasks = pending

	for _, task := range due {
		task.fn()
		s.fired++
	}
	return len(due)
}

// Pending возвращает количество ожидающих задач
func (s *EffectScheduler) Pending() int {
	return len(s.tasks)
}

// Stats возвращает счетчики планировщика
func (s *EffectScheduler) Stats() map[string]interface{} {
	return map[string]interface{}{
		"pending":   len(s.tasks),
		"fired":     s.fired,
		"cancelled": s.cancelled,
	}
}
