package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// MockBroadcaster для тестирования
type MockBroadcaster struct {
	Spawned       []Collectible
	Removed       []Collectible
	BurstsStarted []ParticleBurst
	BurstsExpired []string
	ChunkCreated  int
	ChunkReleased int
}

func (mb *MockBroadcaster) BroadcastRingSpawned(ring Collectible) {
	mb.Spawned = append(mb.Spawned, ring)
}

func (mb *MockBroadcaster) BroadcastRingRemoved(ring Collectible) {
	mb.Removed = append(mb.Removed, ring)
}

func (mb *MockBroadcaster) BroadcastBurstStarted(burst ParticleBurst) {
	mb.BurstsStarted = append(mb.BurstsStarted, burst)
}

func (mb *MockBroadcaster) BroadcastBurstExpired(burstID string) {
	mb.BurstsExpired = append(mb.BurstsExpired, burstID)
}

func (mb *MockBroadcaster) BroadcastChunkCreated(chunk world.TerrainChunk) {
	mb.ChunkCreated++
}

func (mb *MockBroadcaster) BroadcastChunkReleased(chunk world.TerrainChunk) {
	mb.ChunkReleased++
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Создаем тестовое поле с фиксированным зерном и ручными часами
func createTestField(seed uint64) (*CollectibleField, *MockBroadcaster, *ManualClock) {
	clock := NewManualClock(testEpoch)
	field := NewCollectibleField(DefaultFieldConfig(), rand.New(rand.NewPCG(seed, seed+1)), clock, zerolog.Nop())
	mock := &MockBroadcaster{}
	field.SetBroadcaster(mock)
	return field, mock, clock
}

// placeRing переносит кольцо в заданную точку
func placeRing(t *testing.T, field *CollectibleField, index int, pos mgl64.Vec3) string {
	t.Helper()
	if index >= len(field.rings) {
		t.Fatalf("Нет кольца с индексом %d", index)
	}
	field.rings[index].Position = pos
	return field.rings[index].ID
}

var farAway = mgl64.Vec3{50000, 5000, 50000}

// isolate уносит все кольца подальше от области теста
func isolate(t *testing.T, field *CollectibleField) {
	t.Helper()
	for i := range field.rings {
		placeRing(t, field, i, farAway.Mul(-1))
	}
}

func TestCollectibleField_InitialFill(t *testing.T) {
	field, mock, _ := createTestField(1)

	field.Update(mgl64.Vec3{0, 100, 0})

	rings := field.Rings()
	if len(rings) != 10 {
		t.Fatalf("Ожидали 10 колец, получили %d", len(rings))
	}
	if len(mock.Spawned) != 10 {
		t.Errorf("Ожидали 10 событий спавна, получили %d", len(mock.Spawned))
	}

	for i, ring := range rings {
		wantID := fmt.Sprintf("ring_%d", i+1)
		if ring.ID != wantID {
			t.Errorf("Ожидали ID %s, получили %s", wantID, ring.ID)
		}
		horizontal := math.Hypot(ring.Position.X(), ring.Position.Z())
		if horizontal > 1000 {
			t.Errorf("Кольцо %s вне диска спавна: %.2f", ring.ID, horizontal)
		}
		if ring.Position.Y() < 100 || ring.Position.Y() >= 300 {
			t.Errorf("Высота кольца %s вне [100, 300): %.2f", ring.ID, ring.Position.Y())
		}
		if ring.Collected {
			t.Errorf("Новое кольцо %s не должно быть собранным", ring.ID)
		}
	}
}

func TestCollectibleField_SpawnsAroundOriginNotAircraft(t *testing.T) {
	field, _, _ := createTestField(2)

	field.Update(mgl64.Vec3{100000, 200, -100000})

	for _, ring := range field.Rings() {
		if math.Hypot(ring.Position.X(), ring.Position.Z()) > 1000 {
			t.Errorf("Кольца появляются вокруг начала координат, %s в %v", ring.ID, ring.Position)
		}
	}
}

func TestCollectibleField_CaptureBoundary(t *testing.T) {
	tests := []struct {
		name     string
		offset   float64
		captured bool
	}{
		{"inside radius", 29.9, true},
		{"outside radius", 30.1, false},
		{"exactly on radius", 30.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, mock, _ := createTestField(3)
			field.Update(farAway)
			isolate(t, field)

			ringPos := mgl64.Vec3{0, 200, 0}
			id := placeRing(t, field, 0, ringPos)

			got := field.CheckCollisions(ringPos.Add(mgl64.Vec3{tt.offset, 0, 0}))
			if got != tt.captured {
				t.Errorf("CheckCollisions = %v, ожидали %v", got, tt.captured)
			}

			ring, _ := field.Ring(id)
			if ring.Collected != tt.captured {
				t.Errorf("Флаг Collected = %v, ожидали %v", ring.Collected, tt.captured)
			}

			wantBursts := 0
			if tt.captured {
				wantBursts = 1
			}
			if len(mock.BurstsStarted) != wantBursts {
				t.Errorf("Ожидали %d вспышек, получили %d", wantBursts, len(mock.BurstsStarted))
			}
		})
	}
}

func TestCollectibleField_CaptureUses3DDistance(t *testing.T) {
	field, _, _ := createTestField(4)
	field.Update(farAway)
	isolate(t, field)

	placeRing(t, field, 0, mgl64.Vec3{0, 200, 0})

	// По горизонтали совпадает, по высоте далеко
	if field.CheckCollisions(mgl64.Vec3{0, 100, 0}) {
		t.Errorf("Кольцо выше на 100 не должно ловиться")
	}
	// Смещение (20, 20, 0) дает 28.28 < 30
	if !field.CheckCollisions(mgl64.Vec3{20, 220, 0}) {
		t.Errorf("Кольцо на расстоянии 28.28 должно ловиться")
	}
}

func TestCollectibleField_CaptureFiresOnce(t *testing.T) {
	field, mock, _ := createTestField(5)
	field.Update(farAway)
	isolate(t, field)

	captures := 0
	field.OnCapture(func(ring Collectible) { captures++ })

	pos := mgl64.Vec3{10, 150, 10}
	placeRing(t, field, 0, pos)

	if !field.CheckCollisions(pos) {
		t.Fatalf("Ожидали поимку")
	}
	if field.CheckCollisions(pos) {
		t.Errorf("Повторная проверка той же точки не должна давать поимку")
	}
	if captures != 1 {
		t.Errorf("Событие поимки должно прийти ровно один раз, получили %d", captures)
	}

	field.Update(pos)
	field.Update(pos)
	if len(mock.Removed) != 1 {
		t.Errorf("Кольцо должно удалиться ровно один раз, событий %d", len(mock.Removed))
	}
}

func TestCollectibleField_PoolRefilledAfterCaptures(t *testing.T) {
	field, mock, _ := createTestField(6)
	field.Update(farAway)
	isolate(t, field)

	// Три кольца в одной точке
	pos := mgl64.Vec3{-300, 180, 400}
	captured := []string{
		placeRing(t, field, 1, pos),
		placeRing(t, field, 4, pos),
		placeRing(t, field, 7, pos),
	}

	if !field.CheckCollisions(pos) {
		t.Fatalf("Ожидали поимку")
	}
	if field.LiveCount() != 7 {
		t.Errorf("После поимки до Update живых колец 7, получили %d", field.LiveCount())
	}

	field.Update(farAway)

	if n := len(field.Rings()); n != 10 {
		t.Errorf("После Update пул должен быть полон: %d", n)
	}
	if field.LiveCount() != 10 {
		t.Errorf("Все кольца после Update живые, получили %d", field.LiveCount())
	}
	if len(mock.Removed) != 3 {
		t.Errorf("Ожидали 3 удаления, получили %d", len(mock.Removed))
	}
	if len(mock.Spawned) != 13 {
		t.Errorf("Ожидали 13 спавнов, получили %d", len(mock.Spawned))
	}
	for _, id := range captured {
		if _, exists := field.Ring(id); exists {
			t.Errorf("Собранное кольцо %s должно быть удалено", id)
		}
	}

	// Новые ID продолжают последовательность
	last := field.Rings()[9]
	if last.ID != "ring_13" {
		t.Errorf("Ожидали последний ID ring_13, получили %s", last.ID)
	}
}

func TestCollectibleField_Spin(t *testing.T) {
	field, _, _ := createTestField(7)

	field.Update(farAway)
	field.Update(farAway)
	field.Update(farAway)

	for _, ring := range field.Rings() {
		if math.Abs(ring.Rotation-0.06) > 1e-9 {
			t.Errorf("Кольцо %s: ожидали поворот 0.06, получили %.4f", ring.ID, ring.Rotation)
		}
	}
}

func TestCollectibleField_BurstLifetime(t *testing.T) {
	field, mock, clock := createTestField(8)
	field.Update(farAway)
	isolate(t, field)

	pos := mgl64.Vec3{0, 120, 0}
	placeRing(t, field, 0, pos)
	field.CheckCollisions(pos)

	bursts := field.Bursts()
	if len(bursts) != 1 {
		t.Fatalf("Ожидали 1 вспышку, получили %d", len(bursts))
	}
	if len(bursts[0].Particles) != 20 {
		t.Errorf("Ожидали 20 искр, получили %d", len(bursts[0].Particles))
	}
	if bursts[0].Origin != pos {
		t.Errorf("Вспышка должна начинаться в точке кольца: %v", bursts[0].Origin)
	}

	clock.Advance(999 * time.Millisecond)
	field.Update(farAway)
	if len(field.Bursts()) != 1 {
		t.Errorf("Вспышка еще жива на 999 мс")
	}
	moved := field.Bursts()[0].Particles[0].Position
	if moved == pos {
		t.Errorf("Искры должны двигаться каждый тик")
	}

	clock.Advance(time.Millisecond)
	field.Update(farAway)
	if len(field.Bursts()) != 0 {
		t.Errorf("Вспышка должна завершиться через 1000 мс")
	}
	if len(mock.BurstsExpired) != 1 || mock.BurstsExpired[0] != bursts[0].ID {
		t.Errorf("Ожидали событие завершения %s, получили %v", bursts[0].ID, mock.BurstsExpired)
	}
}

func TestCollectibleField_CloseCancelsPendingTeardown(t *testing.T) {
	field, mock, clock := createTestField(9)
	field.Update(farAway)
	isolate(t, field)

	pos := mgl64.Vec3{0, 120, 0}
	placeRing(t, field, 0, pos)
	field.CheckCollisions(pos)

	field.Close()
	if field.effects.Pending() != 0 {
		t.Errorf("После Close не должно быть ожидающих задач, осталось %d", field.effects.Pending())
	}
	if len(mock.BurstsExpired) != 1 {
		t.Errorf("Close освобождает вспышку один раз, событий %d", len(mock.BurstsExpired))
	}
	if len(mock.Removed) != 10 {
		t.Errorf("Close освобождает все кольца, событий %d", len(mock.Removed))
	}

	clock.Advance(5 * time.Second)
	field.Update(farAway)
	field.effects.RunDue()
	field.Close()

	if len(mock.BurstsExpired) != 1 {
		t.Errorf("Отложенная задача после Close не должна выполняться, событий %d", len(mock.BurstsExpired))
	}
	if len(field.Rings()) != 0 {
		t.Errorf("Закрытое поле не должно спавнить кольца")
	}
	if field.CheckCollisions(pos) {
		t.Errorf("Закрытое поле не ловит кольца")
	}
}

func TestCollectibleField_DeterministicWithSeed(t *testing.T) {
	a, _, _ := createTestField(42)
	b, _, _ := createTestField(42)

	a.Update(farAway)
	b.Update(farAway)

	ra, rb := a.Rings(), b.Rings()
	for i := range ra {
		if ra[i].Position != rb[i].Position {
			t.Errorf("Одинаковое зерно должно давать одинаковые позиции: %v != %v", ra[i].Position, rb[i].Position)
		}
	}
}

func TestFieldConfig_Validate(t *testing.T) {
	if err := DefaultFieldConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*FieldConfig)
	}{
		{"negative max collectibles", func(c *FieldConfig) { c.MaxCollectibles = -1 }},
		{"negative spawn distance", func(c *FieldConfig) { c.SpawnDistance = -5 }},
		{"max height below min height", func(c *FieldConfig) { c.MaxHeight = 50 }},
		{"zero capture radius", func(c *FieldConfig) { c.CaptureRadius = 0 }},
		{"negative burst lifetime", func(c *FieldConfig) { c.BurstLifetime = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFieldConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidFieldConfig) {
				t.Errorf("Ожидалась ErrInvalidFieldConfig, получено %v", err)
			}
		})
	}
}

func TestSimulation_InvalidFieldConfigIsMatchable(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.Field.CaptureRadius = -1

	_, err := NewSimulation(cfg, SimulationDeps{Logger: zerolog.Nop()})
	if !errors.Is(err, ErrInvalidFieldConfig) {
		t.Errorf("NewSimulation должен вернуть ErrInvalidFieldConfig, получено %v", err)
	}
}

// Бенчмарк для проверки производительности
func BenchmarkCollectibleField_Tick(b *testing.B) {
	field, _, _ := createTestField(10)
	focal := mgl64.Vec3{0, 200, 0}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		field.Update(focal)
		field.CheckCollisions(focal)
	}
}
