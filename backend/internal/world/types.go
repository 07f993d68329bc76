package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ChunkCoord - целочисленная координата клетки сетки на плоскости XZ
type ChunkCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// ChunkHandle - идентификатор выданного тайла, растет монотонно
type ChunkHandle uint64

// Material - фиксированное описание поверхности тайла для клиентов
type Material struct {
	Color     string  `mapstructure:"color" json:"color"`
	Roughness float64 `mapstructure:"roughness" json:"roughness"`
	Metalness float64 `mapstructure:"metalness" json:"metalness"`
}

// TerrainChunk - плоский квадратный тайл земли
type TerrainChunk struct {
	Handle   ChunkHandle `json:"handle"`
	Coord    ChunkCoord  `json:"coord"`
	Center   mgl64.Vec3  `json:"center"`
	Size     float64     `json:"size"`
	Material Material    `json:"material"`

	released bool
}

// CellOf возвращает клетку, содержащую точку
func CellOf(pos mgl64.Vec3, chunkSize float64) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(pos.X() / chunkSize)),
		Z: int(math.Floor(pos.Z() / chunkSize)),
	}
}

// Chebyshev возвращает расстояние Чебышёва между клетками
func (c ChunkCoord) Chebyshev(other ChunkCoord) int {
	return max(absInt(c.X-other.X), absInt(c.Z-other.Z))
}

// Less задает порядок обхода: сначала по Z, затем по X
func (c ChunkCoord) Less(other ChunkCoord) bool {
	if c.Z != other.Z {
		return c.Z < other.Z
	}
	return c.X < other.X
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
