package ws

import (
	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// Константы для WebSocket сообщений
const (
	MessageTypeInfo          = "info"           // Информационное сообщение
	MessageTypePing          = "ping"           // Пинг для измерения задержки
	MessageTypePong          = "pong"           // Ответ на пинг
	MessageTypeError         = "error"          // Ошибка обработки сообщения клиента
	MessageTypeControls      = "controls"       // Удерживаемые клиентом команды
	MessageTypePress         = "press"          // Клиент нажал одну команду
	MessageTypeRelease       = "release"        // Клиент отпустил одну команду
	MessageTypeReleaseAll    = "release_all"    // Клиент отпустил все команды
	MessageTypeSnapshot      = "snapshot"       // Состояние мира после тика
	MessageTypeFlightConfig  = "flight_config"  // Настройки полета и мира
	MessageTypeChunkCreated  = "chunk_created"  // Появился тайл земли
	MessageTypeChunkReleased = "chunk_released" // Тайл земли освобожден
	MessageTypeRingSpawned   = "ring_spawned"   // Появилось кольцо
	MessageTypeRingRemoved   = "ring_removed"   // Кольцо удалено
	MessageTypeBurstStarted  = "burst_started"  // Началась вспышка
	MessageTypeBurstExpired  = "burst_expired"  // Вспышка завершилась
)

// Vec3 - вектор в сообщениях
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat - кватернион ориентации
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// InfoMessage представляет информационное сообщение от сервера
type InfoMessage struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	ServerTime int64  `json:"server_time"`
}

// ErrorMessage сообщает клиенту о непринятом сообщении
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// PingMessage представляет пинг от клиента
type PingMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
}

// PongMessage представляет ответ на пинг от сервера
type PongMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// ControlsMessage - полный набор команд, которые клиент сейчас удерживает
type ControlsMessage struct {
	Type       string   `json:"type"`
	Controls   []string `json:"controls"`
	ClientTime int64    `json:"client_time,omitempty"`
}

// ControlMessage - нажатие или отпускание одной команды
type ControlMessage struct {
	Type       string `json:"type"`
	Control    string `json:"control,omitempty"`
	ClientTime int64  `json:"client_time,omitempty"`
}

// AircraftView - состояние самолета для отрисовки
type AircraftView struct {
	Position    Vec3    `json:"position"`
	Velocity    Vec3    `json:"velocity"`
	Orientation Quat    `json:"orientation"`
	Heading     Vec3    `json:"heading"`
	Pitch       float64 `json:"pitch"`
	Yaw         float64 `json:"yaw"`
	Roll        float64 `json:"roll"`
	Speed       float64 `json:"speed"`
}

// RingView - кольцо для отрисовки
type RingView struct {
	ID        string  `json:"id"`
	Position  Vec3    `json:"position"`
	Rotation  float64 `json:"rotation"`
	Collected bool    `json:"collected"`
}

// BurstView - вспышка частиц для отрисовки
type BurstView struct {
	ID        string `json:"id"`
	RingID    string `json:"ring_id"`
	Origin    Vec3   `json:"origin"`
	Particles []Vec3 `json:"particles"`
	AgeMs     int64  `json:"age_ms"`
	LifeMs    int64  `json:"life_ms"`
}

// SnapshotMessage - состояние мира после тика
type SnapshotMessage struct {
	Type       string             `json:"type"`
	Tick       uint64             `json:"tick"`
	ServerTime int64              `json:"server_time"`
	Score      int64              `json:"score"`
	Captured   uint64             `json:"captured"`
	Controls   []string           `json:"controls"`
	Aircraft   AircraftView       `json:"aircraft"`
	Rings      []RingView         `json:"rings"`
	Bursts     []BurstView        `json:"bursts"`
	Chunks     []world.ChunkCoord `json:"chunks"`
	FocalCell  world.ChunkCoord   `json:"focal_cell"`
}

// ChunkMessage сообщает о создании или освобождении тайла
type ChunkMessage struct {
	Type     string           `json:"type"`
	Handle   uint64           `json:"handle"`
	Coord    world.ChunkCoord `json:"coord"`
	Center   Vec3             `json:"center"`
	Size     float64          `json:"size"`
	Material world.Material   `json:"material"`
}

// RingMessage сообщает о появлении или удалении кольца
type RingMessage struct {
	Type string   `json:"type"`
	Ring RingView `json:"ring"`
}

// BurstMessage сообщает о начале вспышки
type BurstMessage struct {
	Type  string    `json:"type"`
	Burst BurstView `json:"burst"`
}

// BurstExpiredMessage сообщает о завершении вспышки
type BurstExpiredMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// FlightConfigMessage передает клиенту параметры симуляции
type FlightConfigMessage struct {
	Type         string               `json:"type"`
	TickRate     int                  `json:"tick_rate"`
	Flight       physics.FlightConfig `json:"flight"`
	Terrain      world.TerrainConfig  `json:"terrain"`
	Collectibles game.FieldConfig     `json:"collectibles"`
}
