package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// FieldConfig содержит настройки поля колец
type FieldConfig struct {
	MaxCollectibles int           `mapstructure:"maxCollectibles" json:"max_collectibles"`
	SpawnDistance   float64       `mapstructure:"spawnDistance" json:"spawn_distance"`
	MinHeight       float64       `mapstructure:"minHeight" json:"min_height"`
	MaxHeight       float64       `mapstructure:"maxHeight" json:"max_height"`
	CaptureRadius   float64       `mapstructure:"captureRadius" json:"capture_radius"`
	SpinSpeed       float64       `mapstructure:"spinSpeed" json:"spin_speed"`
	BurstLifetime   time.Duration `mapstructure:"burstLifetime" json:"burst_lifetime"`
	ParticleCount   int           `mapstructure:"particleCount" json:"particle_count"`
	ParticleSpeed   float64       `mapstructure:"particleSpeed" json:"particle_speed"`
}

// DefaultFieldConfig возвращает конфигурацию по умолчанию
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		MaxCollectibles: 10,
		SpawnDistance:   1000.0,
		MinHeight:       100.0,
		MaxHeight:       300.0,
		CaptureRadius:   30.0,
		SpinSpeed:       0.02,
		BurstLifetime:   1000 * time.Millisecond,
		ParticleCount:   20,
		ParticleSpeed:   2.0,
	}
}

// ErrInvalidFieldConfig возвращается Validate для несогласованных настроек
var ErrInvalidFieldConfig = errors.New("invalid collectibles config")

// Validate проверяет согласованность настроек
func (c FieldConfig) Validate() error {
	switch {
	case c.MaxCollectibles < 0:
		return fmt.Errorf("%w: maxCollectibles %d is negative", ErrInvalidFieldConfig, c.MaxCollectibles)
	case c.SpawnDistance < 0:
		return fmt.Errorf("%w: spawnDistance %.2f is negative", ErrInvalidFieldConfig, c.SpawnDistance)
	case c.MaxHeight < c.MinHeight:
		return fmt.Errorf("%w: maxHeight %.2f below minHeight %.2f", ErrInvalidFieldConfig, c.MaxHeight, c.MinHeight)
	case c.CaptureRadius <= 0:
		return fmt.Errorf("%w: captureRadius %.2f must be positive", ErrInvalidFieldConfig, c.CaptureRadius)
	case c.BurstLifetime < 0:
		return fmt.Errorf("%w: burstLifetime %s is negative", ErrInvalidFieldConfig, c.BurstLifetime)
	}
	return nil
}

// Collectible - кольцо в воздухе
type Collectible struct {
	ID        string     `json:"id"`
	Position  mgl64.Vec3 `json:"position"`
	Rotation  float64    `json:"rotation"`
	Collected bool       `json:"collected"`
	SpawnTime time.Time  `json:"-"`
}

// RingEventBroadcaster интерфейс для отправки событий колец
type RingEventBroadcaster interface {
	BroadcastRingSpawned(ring Collectible)
	BroadcastRingRemoved(ring Collectible)
	BroadcastBurstStarted(burst ParticleBurst)
	BroadcastBurstExpired(burstID string)
}

// CaptureListener вызывается ровно один раз для каждого пойманного кольца
type CaptureListener func(ring Collectible)

// CollectibleField управляет пулом колец: спавн, поимка, удаление, вспышки.
// Все методы вызываются из горутины симуляции.
type CollectibleField struct {
	config FieldConfig
	logger zerolog.Logger
	rng    *rand.Rand
	clock  Clock

	// Кольца в порядке появления и индекс по ID
	rings  []*Collectible
	byID   map[string]*Collectible
	nextID uint64

	bursts      map[string]*ParticleBurst
	burstOrder  []string
	nextBurstID uint64
	effects     *EffectScheduler

	// Время жизни поля: отмена снимает все отложенные задачи
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	broadcaster RingEventBroadcaster
	listeners   []CaptureListener

	totalSpawned  uint64
	totalCaptured uint64
}

// NewCollectibleField создает пустое поле. Пул заполняется первым Update.
func NewCollectibleField(config FieldConfig, rng *rand.Rand, clock Clock, logger zerolog.Logger) *CollectibleField {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if clock == nil {
		clock = SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CollectibleField{
		config:  config,
		logger:  logger.With().Str("system", "CollectibleField").Logger(),
		rng:     rng,
		clock:   clock,
		byID:    make(map[string]*Collectible),
		nextID:  1,
		bursts:  make(map[string]*ParticleBurst),
		effects: NewEffectScheduler(clock),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetBroadcaster устанавливает интерфейс для отправки событий
func (cf *CollectibleField) SetBroadcaster(broadcaster RingEventBroadcaster) {
	cf.broadcaster = broadcaster
}

// OnCapture добавляет слушателя поимки колец
func (cf *CollectibleField) OnCapture(listener CaptureListener) {
	cf.listeners = append(cf.listeners, listener)
}

// Update выполняет один тик поля:
// завершает просроченные вспышки, удаляет собранные кольца,
// добирает пул до MaxCollectibles и вращает живые кольца.
// Кольца появляются вокруг начала координат, а не вокруг focal.
func (cf *CollectibleField) Update(focal mgl64.Vec3) {
	if cf.closed {
		return
	}

	cf.effects.RunDue()
	for _, id := range cf.burstOrder {
		cf.bursts[id].step()
	}

	cf.removeCollected()

	for len(cf.rings) < cf.config.MaxCollectibles {
		cf.spawnRing()
	}

	for _, ring := range cf.rings {
		ring.Rotation += cf.config.SpinSpeed
	}
}

// CheckCollisions помечает кольца ближе CaptureRadius к focal собранными
// и запускает на их месте вспышки. Возвращает true, если поймано хотя бы одно кольцо.
func (cf *CollectibleField) CheckCollisions(focal mgl64.Vec3) bool {
	if cf.closed {
		return false
	}

	captured := false
	for _, ring := range cf.rings {
		if ring.Collected {
			continue
		}

		distance := focal.Sub(ring.Position).Len()
		if distance >= cf.config.CaptureRadius {
			continue
		}

		ring.Collected = true
		cf.totalCaptured++
		captured = true

		cf.logger.Info().
			Str("ring", ring.ID).
			Float64("distance", distance).
			Msg("ring captured")

		cf.startBurst(ring)

		for _, listener := range cf.listeners {
			listener(*ring)
		}
	}
	return captured
}

// spawnRing создает кольцо в случайной точке горизонтального диска
func (cf *CollectibleField) spawnRing() {
	angle := cf.rng.Float64() * 2 * math.Pi
	// sqrt дает равномерное распределение по площади диска
	distance := cf.config.SpawnDistance * math.Sqrt(cf.rng.Float64())
	height := cf.config.MinHeight + cf.rng.Float64()*(cf.config.MaxHeight-cf.config.MinHeight)

	ring := &Collectible{
		ID:        fmt.Sprintf("ring_%d", cf.nextID),
		Position:  mgl64.Vec3{math.Cos(angle) * distance, height, math.Sin(angle) * distance},
		SpawnTime: cf.clock.Now(),
	}
	cf.nextID++

	cf.rings = append(cf.rings, ring)
	cf.byID[ring.ID] = ring
	cf.totalSpawned++

	cf.logger.Debug().
		Str("ring", ring.ID).
		Float64("x", ring.Position.X()).
		Float64("y", ring.Position.Y()).
		Float64("z", ring.Position.Z()).
		Msg("ring spawned")

	if cf.broadcaster != nil {
		cf.broadcaster.BroadcastRingSpawned(*ring)
	}
}

// removeCollected освобождает собранные кольца
func (cf *CollectibleField) removeCollected() {
	live := cf.rings[:0]
	for _, ring := range cf.rings {
		if !ring.Collected {
			live = append(live, ring)
			continue
		}
		cf.releaseRing(ring)
	}
	clear(cf.rings[len(live):])
	cf.rings = live
}

// releaseRing освобождает кольцо; повторный вызов ничего не делает
func (cf *CollectibleField) releaseRing(ring *Collectible) {
	if _, exists := cf.byID[ring.ID]; !exists {
		return
	}
	delete(cf.byID, ring.ID)

	if cf.broadcaster != nil {
		cf.broadcaster.BroadcastRingRemoved(*ring)
	}
}

func (cf *CollectibleField) startBurst(ring *Collectible) {
	id := fmt.Sprintf("burst_%d", cf.nextBurstID+1)
	cf.nextBurstID++

	burst := newParticleBurst(id, ring.ID, ring.Position, cf.config.ParticleCount,
		cf.config.ParticleSpeed, cf.rng, cf.clock.Now(), cf.config.BurstLifetime)
	burst.task = cf.effects.Schedule(cf.ctx, cf.config.BurstLifetime, func() {
		cf.releaseBurst(id)
	})

	cf.bursts[id] = burst
	cf.burstOrder = append(cf.burstOrder, id)

	if cf.broadcaster != nil {
		cf.broadcaster.BroadcastBurstStarted(burst.snapshot())
	}
}

// releaseBurst освобождает вспышку; повторный вызов ничего не делает
func (cf *CollectibleField) releaseBurst(id string) {
	burst, exists := cf.bursts[id]
	if !exists {
		return
	}
	delete(cf.bursts, id)
	cf.effects.Cancel(burst.task)
	for i, candidate := range cf.burstOrder {
		if candidate == id {
			cf.burstOrder = append(cf.burstOrder[:i], cf.burstOrder[i+1:]...)
			break
		}
	}

	if cf.broadcaster != nil {
		cf.broadcaster.BroadcastBurstExpired(id)
	}
}

// Close отменяет все отложенные задачи поля и освобождает кольца и вспышки.
// Повторный вызов ничего не делает.
func (cf *CollectibleField) Close() {
	if cf.closed {
		return
	}
	cf.closed = true
	cf.cancel()

	for _, id := range append([]string(nil), cf.burstOrder...) {
		cf.releaseBurst(id)
	}
	for _, ring := range cf.rings {
		cf.releaseRing(ring)
	}
	cf.rings = nil

	cf.logger.Info().
		Uint64("spawned", cf.totalSpawned).
		Uint64("captured", cf.totalCaptured).
		Msg("collectible field closed")
}

// Rings возвращает копии колец в порядке появления
func (cf *CollectibleField) Rings() []Collectible {
	result := make([]Collectible, len(cf.rings))
	for i, ring := range cf.rings {
		result[i] = *ring
	}
	return result
}

// Ring возвращает копию кольца по ID
func (cf *CollectibleField) Ring(id string) (Collectible, bool) {
	ring, exists := cf.byID[id]
	if !exists {
		return Collectible{}, false
	}
	return *ring, true
}

// LiveCount возвращает количество несобранных колец
func (cf *CollectibleField) LiveCount() int {
	count := 0
	for _, ring := range cf.rings {
		if !ring.Collected {
			count++
		}
	}
	return count
}

// Bursts возвращает копии активных вспышек в порядке запуска
func (cf *CollectibleField) Bursts() []ParticleBurst {
	result := make([]ParticleBurst, 0, len(cf.burstOrder))
	for _, id := range cf.burstOrder {
		result = append(result, cf.bursts[id].snapshot())
	}
	return result
}

// TotalCaptured возвращает число пойманных колец за время жизни поля
func (cf *CollectibleField) TotalCaptured() uint64 {
	return cf.totalCaptured
}

// Config возвращает конфигурацию поля
func (cf *CollectibleField) Config() FieldConfig {
	return cf.config
}

// Stats возвращает счетчики поля
func (cf *CollectibleField) Stats() map[string]interface{} {
	return map[string]interface{}{
		"rings":          len(cf.rings),
		"live_rings":     cf.LiveCount(),
		"active_bursts":  len(cf.bursts),
		"total_spawned":  cf.totalSpawned,
		"total_captured": cf.totalCaptured,
		"effects":        cf.effects.Stats(),
	}
}
