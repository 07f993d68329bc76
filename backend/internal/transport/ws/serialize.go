package ws

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// safeFloat заменяет NaN и бесконечности, которые не сериализуются в JSON
func safeFloat(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	return val
}

func toVec3(v mgl64.Vec3) Vec3 {
	return Vec3{X: safeFloat(v.X()), Y: safeFloat(v.Y()), Z: safeFloat(v.Z())}
}

func toQuat(q mgl64.Quat) Quat {
	return Quat{X: safeFloat(q.V.X()), Y: safeFloat(q.V.Y()), Z: safeFloat(q.V.Z()), W: safeFloat(q.W)}
}

// NewAircraftView переводит состояние самолета в вид для клиента
func NewAircraftView(state physics.AircraftState) AircraftView {
	return AircraftView{
		Position:    toVec3(state.Position),
		Velocity:    toVec3(state.Velocity),
		Orientation: toQuat(physics.Orientation(state)),
		Heading:     toVec3(physics.Heading(state.Yaw)),
		Pitch:       safeFloat(state.Pitch),
		Yaw:         safeFloat(state.Yaw),
		Roll:        safeFloat(state.Roll),
		Speed:       safeFloat(state.Speed),
	}
}

// NewRingView переводит кольцо в вид для клиента
func NewRingView(ring game.Collectible) RingView {
	return RingView{
		ID:        ring.ID,
		Position:  toVec3(ring.Position),
		Rotation:  safeFloat(ring.Rotation),
		Collected: ring.Collected,
	}
}

// NewBurstView переводит вспышку в вид для клиента на момент now
func NewBurstView(burst game.ParticleBurst, now time.Time) BurstView {
	particles := make([]Vec3, len(burst.Particles))
	for i, p := range burst.Particles {
		particles[i] = toVec3(p.Position)
	}
	return BurstView{
		ID:        burst.ID,
		RingID:    burst.RingID,
		Origin:    toVec3(burst.Origin),
		Particles: particles,
		AgeMs:     burst.Age(now).Milliseconds(),
		LifeMs:    burst.Lifetime.Milliseconds(),
	}
}

// NewSnapshotMessage собирает сообщение из снимка мира
func NewSnapshotMessage(snapshot *game.Snapshot) *SnapshotMessage {
	rings := make([]RingView, len(snapshot.Rings))
	for i, ring := range snapshot.Rings {
		rings[i] = NewRingView(ring)
	}

	bursts := make([]BurstView, len(snapshot.Bursts))
	for i, burst := range snapshot.Bursts {
		bursts[i] = NewBurstView(burst, snapshot.Time)
	}

	chunks := snapshot.Chunks
	if chunks == nil {
		chunks = []world.ChunkCoord{}
	}

	return &SnapshotMessage{
		Type:       MessageTypeSnapshot,
		Tick:       snapshot.Tick,
		ServerTime: snapshot.Time.UnixMilli(),
		Score:      snapshot.Score,
		Captured:   snapshot.Captured,
		Controls:   snapshot.Controls.Names(),
		Aircraft:   NewAircraftView(snapshot.Aircraft),
		Rings:      rings,
		Bursts:     bursts,
		Chunks:     chunks,
		FocalCell:  snapshot.FocalCell,
	}
}

// NewChunkMessage создает сообщение о тайле заданного типа
func NewChunkMessage(messageType string, chunk world.TerrainChunk) *ChunkMessage {
	return &ChunkMessage{
		Type:     messageType,
		Handle:   uint64(chunk.Handle),
		Coord:    chunk.Coord,
		Center:   toVec3(chunk.Center),
		Size:     chunk.Size,
		Material: chunk.Material,
	}
}

// NewRingMessage создает сообщение о кольце заданного типа
func NewRingMessage(messageType string, ring game.Collectible) *RingMessage {
	return &RingMessage{Type: messageType, Ring: NewRingView(ring)}
}
