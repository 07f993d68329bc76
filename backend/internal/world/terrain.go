package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

// NewTerrainChunk строит плоский тайл для клетки.
// Параметры зависят только от координаты, размера и материала.
func NewTerrainChunk(handle ChunkHandle, coord ChunkCoord, size float64, material Material) *TerrainChunk {
	return &TerrainChunk{
		Handle:   handle,
		Coord:    coord,
		Center:   mgl64.Vec3{float64(coord.X) * size, 0, float64(coord.Z) * size},
		Size:     size,
		Material: material,
	}
}

// Bounds возвращает углы тайла на плоскости земли
func (tc *TerrainChunk) Bounds() (minCorner, maxCorner mgl64.Vec3) {
	half := tc.Size / 2
	offset := mgl64.Vec3{half, 0, half}
	return tc.Center.Sub(offset), tc.Center.Add(offset)
}

// Contains сообщает, лежит ли проекция точки на землю внутри тайла
func (tc *TerrainChunk) Contains(pos mgl64.Vec3) bool {
	lo, hi := tc.Bounds()
	return pos.X() >= lo.X() && pos.X() < hi.X() &&
		pos.Z() >= lo.Z() && pos.Z() < hi.Z()
}

// Released сообщает, освобожден ли тайл
func (tc *TerrainChunk) Released() bool {
	return tc.released
}

// release помечает тайл освобожденным; повторный вызов ничего не делает
func (tc *TerrainChunk) release() bool {
	if tc.released {
		return false
	}
	tc.released = true
	return true
}
