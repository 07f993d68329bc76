package game

import (
	"time"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// Snapshot - неизменяемый снимок мира после тика.
// Передается наблюдателям в другие горутины, поэтому содержит только копии.
type Snapshot struct {
	Tick      uint64                `json:"tick"`
	Time      time.Time             `json:"time"`
	Score     int64                 `json:"score"`
	Captured  uint64                `json:"captured"`
	Aircraft  physics.AircraftState `json:"aircraft"`
	Controls  physics.ControlSet    `json:"-"`
	Rings     []Collectible         `json:"rings"`
	Bursts    []ParticleBurst       `json:"bursts"`
	Chunks    []world.ChunkCoord    `json:"chunks"`
	FocalCell world.ChunkCoord      `json:"focal_cell"`
}

// SnapshotObserver получает снимок после каждого тика.
// Вызывается из горутины симуляции и не должен блокироваться.
type SnapshotObserver interface {
	OnSnapshot(snapshot *Snapshot)
}

// SnapshotObserverFunc адаптирует функцию к SnapshotObserver
type SnapshotObserverFunc func(snapshot *Snapshot)

// OnSnapshot вызывает f
func (f SnapshotObserverFunc) OnSnapshot(snapshot *Snapshot) {
	f(snapshot)
}
