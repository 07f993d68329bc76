package world

import (
	"errors"
	"fmt"
)

// TerrainConfig содержит настройки потоковой загрузки земли
type TerrainConfig struct {
	// ChunkSize - длина стороны тайла
	ChunkSize float64 `mapstructure:"chunkSize" json:"chunk_size"`

	// ViewDistance - радиус загрузки в клетках (по Чебышёву)
	ViewDistance int `mapstructure:"viewDistance" json:"view_distance"`

	// Material - материал всех тайлов
	Material Material `mapstructure:"material" json:"material"`
}

// ErrInvalidTerrainConfig возвращается Validate для несогласованных настроек
var ErrInvalidTerrainConfig = errors.New("invalid terrain config")

// DefaultTerrainConfig возвращает конфигурацию по умолчанию
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		ChunkSize:    2000.0,
		ViewDistance: 3,
		Material: Material{
			Color:     "#3a7d44", // травяной зеленый
			Roughness: 0.9,
			Metalness: 0.0,
		},
	}
}

// Validate проверяет согласованность настроек
func (c TerrainConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunkSize %.2f must be positive", ErrInvalidTerrainConfig, c.ChunkSize)
	}
	if c.ViewDistance < 0 {
		return fmt.Errorf("%w: viewDistance %d is negative", ErrInvalidTerrainConfig, c.ViewDistance)
	}
	return nil
}
