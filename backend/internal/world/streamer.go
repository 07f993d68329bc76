package world

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// ChunkEventBroadcaster получает события жизненного цикла тайлов
type ChunkEventBroadcaster interface {
	BroadcastChunkCreated(chunk TerrainChunk)
	BroadcastChunkReleased(chunk TerrainChunk)
}

// ChunkDiff - изменения набора тайлов за один вызов Update
type ChunkDiff struct {
	Created  []ChunkCoord
	Released []ChunkCoord
}

// Empty сообщает, что набор тайлов не изменился
func (d ChunkDiff) Empty() bool {
	return len(d.Created) == 0 && len(d.Released) == 0
}

// ChunkStreamer держит разреженный набор тайлов вокруг фокусной точки.
// Не потокобезопасен: вызывается только из горутины симуляции.
type ChunkStreamer struct {
	config TerrainConfig
	logger zerolog.Logger

	chunks     map[ChunkCoord]*TerrainChunk
	nextHandle ChunkHandle

	focal    ChunkCoord
	hasFocal bool

	totalCreated  uint64
	totalReleased uint64

	broadcaster ChunkEventBroadcaster
}

// NewChunkStreamer создает пустой стример
func NewChunkStreamer(config TerrainConfig, logger zerolog.Logger) *ChunkStreamer {
	return &ChunkStreamer{
		config:     config,
		logger:     logger.With().Str("system", "ChunkStreamer").Logger(),
		chunks:     make(map[ChunkCoord]*TerrainChunk),
		nextHandle: 1,
	}
}

// SetBroadcaster устанавливает получателя событий тайлов
func (cs *ChunkStreamer) SetBroadcaster(broadcaster ChunkEventBroadcaster) {
	cs.broadcaster = broadcaster
}

// Update приводит набор тайлов к квадрату клеток радиусом ViewDistance
// вокруг клетки фокусной точки. Для неизменной клетки ничего не делает.
func (cs *ChunkStreamer) Update(focal mgl64.Vec3) ChunkDiff {
	center := CellOf(focal, cs.config.ChunkSize)
	if cs.hasFocal && center == cs.focal {
		return ChunkDiff{}
	}
	cs.focal = center
	cs.hasFocal = true

	var diff ChunkDiff
	view := cs.config.ViewDistance

	for dz := -view; dz <= view; dz++ {
		for dx := -view; dx <= view; dx++ {
			coord := ChunkCoord{X: center.X + dx, Z: center.Z + dz}
			if _, exists := cs.chunks[coord]; exists {
				continue
			}
			cs.createChunk(coord)
			diff.Created = append(diff.Created, coord)
		}
	}

	var stale []ChunkCoord
	for coord := range cs.chunks {
		if coord.Chebyshev(center) > view {
			stale = append(stale, coord)
		}
	}
	slices.SortFunc(stale, compareCoords)

	for _, coord := range stale {
		cs.releaseChunk(coord)
	}
	diff.Released = stale

	if !diff.Empty() {
		cs.logger.Debug().
			Stringer("focal", center).
			Int("created", len(diff.Created)).
			Int("released", len(diff.Released)).
			Int("live", len(cs.chunks)).
			Msg("chunk set updated")
	}

	return diff
}

func (cs *ChunkStreamer) createChunk(coord ChunkCoord) {
	chunk := NewTerrainChunk(cs.nextHandle, coord, cs.config.ChunkSize, cs.config.Material)
	cs.nextHandle++
	cs.chunks[coord] = chunk
	cs.totalCreated++

	if cs.broadcaster != nil {
		cs.broadcaster.BroadcastChunkCreated(*chunk)
	}
}

// releaseChunk освобождает тайл; для отсутствующей клетки ничего не делает
func (cs *ChunkStreamer) releaseChunk(coord ChunkCoord) {
	chunk, exists := cs.chunks[coord]
	if !exists {
		return
	}
	delete(cs.chunks, coord)

	if !chunk.release() {
		return
	}
	cs.totalReleased++

	if cs.broadcaster != nil {
		cs.broadcaster.BroadcastChunkReleased(*chunk)
	}
}

// Close освобождает все тайлы
func (cs *ChunkStreamer) Close() {
	for _, coord := range cs.Coords() {
		cs.releaseChunk(coord)
	}
	cs.hasFocal = false
}

// Len возвращает количество живых тайлов
func (cs *ChunkStreamer) Len() int {
	return len(cs.chunks)
}

// Has сообщает, загружен ли тайл клетки
func (cs *ChunkStreamer) Has(coord ChunkCoord) bool {
	_, exists := cs.chunks[coord]
	return exists
}

// Chunk возвращает копию тайла клетки
func (cs *ChunkStreamer) Chunk(coord ChunkCoord) (TerrainChunk, bool) {
	chunk, exists := cs.chunks[coord]
	if !exists {
		return TerrainChunk{}, false
	}
	return *chunk, true
}

// Coords возвращает координаты живых тайлов в порядке обхода
func (cs *ChunkStreamer) Coords() []ChunkCoord {
	coords := make([]ChunkCoord, 0, len(cs.chunks))
	for coord := range cs.chunks {
		coords = append(coords, coord)
	}
	slices.SortFunc(coords, compareCoords)
	return coords
}

// Chunks возвращает копии живых тайлов в порядке обхода
func (cs *ChunkStreamer) Chunks() []TerrainChunk {
	coords := cs.Coords()
	chunks := make([]TerrainChunk, len(coords))
	for i, coord := range coords {
		chunks[i] = *cs.chunks[coord]
	}
	return chunks
}

// FocalCell возвращает клетку последнего Update
func (cs *ChunkStreamer) FocalCell() (ChunkCoord, bool) {
	return cs.focal, cs.hasFocal
}

// Config возвращает конфигурацию стримера
func (cs *ChunkStreamer) Config() TerrainConfig {
	return cs.config
}

// Stats возвращает счетчики стримера
func (cs *ChunkStreamer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"live_chunks":    len(cs.chunks),
		"total_created":  cs.totalCreated,
		"total_released": cs.totalReleased,
		"focal_cell":     cs.focal.String(),
	}
}

func compareCoords(a, b ChunkCoord) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
