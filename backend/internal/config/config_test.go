package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, physics.DefaultFlightConfig(), cfg.Flight)
	assert.Equal(t, world.DefaultTerrainConfig(), cfg.Terrain)
	assert.Equal(t, game.DefaultFieldConfig(), cfg.Collectibles)
	assert.Equal(t, 60, cfg.Sim.TickRate)
	assert.Equal(t, int64(10), cfg.Sim.ScorePerRing)
	assert.Equal(t, 250*time.Millisecond, cfg.Sim.HoldTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.StreamInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "localhost:12201", cfg.Log.Graylog.Address)
	assert.False(t, cfg.Log.Graylog.Enabled)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 200, cfg.Telemetry.MaxEntries)
	assert.False(t, cfg.Telemetry.Influx.Enabled)
	assert.Equal(t, "flight", cfg.Telemetry.Influx.Bucket)
	assert.Equal(t, time.Second, cfg.Telemetry.Influx.FlushInterval)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "skyrings.json")
	raw := `{
		"flight": { "maxSpeed": 400, "gravity": 0.2 },
		"terrain": { "viewDistance": 1, "material": { "color": "#ffffff" } },
		"collectibles": { "maxCollectibles": 5, "burstLifetime": "500ms" },
		"sim": { "tickRate": 30, "seed": 42 },
		"server": { "addr": "127.0.0.1:9000" },
		"log": { "level": "debug" }
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 400.0, cfg.Flight.MaxSpeed)
	assert.Equal(t, 0.2, cfg.Flight.Gravity)
	assert.Equal(t, 50.0, cfg.Flight.MinSpeed, "untouched keys keep defaults")
	assert.Equal(t, 1, cfg.Terrain.ViewDistance)
	assert.Equal(t, "#ffffff", cfg.Terrain.Material.Color)
	assert.Equal(t, 0.9, cfg.Terrain.Material.Roughness)
	assert.Equal(t, 5, cfg.Collectibles.MaxCollectibles)
	assert.Equal(t, 500*time.Millisecond, cfg.Collectibles.BurstLifetime)
	assert.Equal(t, 30, cfg.Sim.TickRate)
	assert.Equal(t, uint64(42), cfg.Sim.Seed)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "skyrings.yaml")
	raw := "collectibles:\n  captureRadius: 45\ntelemetry:\n  influx:\n    enabled: false\n    org: pilots\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45.0, cfg.Collectibles.CaptureRadius)
	assert.Equal(t, "pilots", cfg.Telemetry.Influx.Org)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("SKYRINGS_FLIGHT_MAXSPEED", "250")
	t.Setenv("SKYRINGS_SERVER_STREAMINTERVAL", "100ms")
	t.Setenv("SKYRINGS_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 250.0, cfg.Flight.MaxSpeed)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.StreamInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load("/nonexistent/path/skyrings.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "bad.json")
	raw := `{"flight": {"minSpeed": 500}, "terrain": {"chunkSize": 0}, "collectibles": {"captureRadius": 0}, "log": {"level": "loud"}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, physics.ErrInvalidFlightConfig)
	assert.ErrorIs(t, err, world.ErrInvalidTerrainConfig)
	assert.ErrorIs(t, err, game.ErrInvalidFieldConfig)
}

func TestConfig_Simulation(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("sim.scorePerRing", 25)
	viper.Set("collectibles.maxCollectibles", 3)

	cfg, err := Load("")
	require.NoError(t, err)

	sim := cfg.Simulation()
	assert.Equal(t, int64(25), sim.ScorePerRing)
	assert.Equal(t, 3, sim.Field.MaxCollectibles)
	assert.Equal(t, cfg.Flight, sim.Flight)
	assert.Equal(t, cfg.Terrain, sim.Terrain)
}
