package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/logging"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/telemetry"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

// EnvPrefix - префикс переменных окружения: SKYRINGS_FLIGHT_MAXSPEED
const EnvPrefix = "SKYRINGS"

// TelemetryConfig - настройки записи телеметрии полета
type TelemetryConfig struct {
	Enabled       bool                   `mapstructure:"enabled"`
	MaxEntries    int                    `mapstructure:"maxEntries"`
	PrintInterval time.Duration          `mapstructure:"printInterval"`
	BackupFile    string                 `mapstructure:"backupFile"`
	Influx        telemetry.InfluxConfig `mapstructure:"influx"`
}

// Config - полная конфигурация сервера
type Config struct {
	Flight       physics.FlightConfig  `mapstructure:"flight"`
	Terrain      world.TerrainConfig   `mapstructure:"terrain"`
	Collectibles game.FieldConfig      `mapstructure:"collectibles"`
	Sim          game.SimulationConfig `mapstructure:"sim"`
	Server       ws.ServerConfig       `mapstructure:"server"`
	Log          logging.Config        `mapstructure:"log"`
	Telemetry    TelemetryConfig       `mapstructure:"telemetry"`
}

// SetDefaults регистрирует значения по умолчанию для всех ключей
func SetDefaults() {
	flight := physics.DefaultFlightConfig()
	viper.SetDefault("flight.minSpeed", flight.MinSpeed)
	viper.SetDefault("flight.maxSpeed", flight.MaxSpeed)
	viper.SetDefault("flight.acceleration", flight.Acceleration)
	viper.SetDefault("flight.pitchSpeed", flight.PitchSpeed)
	viper.SetDefault("flight.turnSpeed", flight.TurnSpeed)
	viper.SetDefault("flight.rollSpeed", flight.RollSpeed)
	viper.SetDefault("flight.maxPitch", flight.MaxPitch)
	viper.SetDefault("flight.maxRoll", flight.MaxRoll)
	viper.SetDefault("flight.rollDamping", flight.RollDamping)
	viper.SetDefault("flight.gravity", flight.Gravity)
	viper.SetDefault("flight.startAltitude", flight.StartAltitude)

	terrain := world.DefaultTerrainConfig()
	viper.SetDefault("terrain.chunkSize", terrain.ChunkSize)
	viper.SetDefault("terrain.viewDistance", terrain.ViewDistance)
	viper.SetDefault("terrain.material.color", terrain.Material.Color)
	viper.SetDefault("terrain.material.roughness", terrain.Material.Roughness)
	viper.SetDefault("terrain.material.metalness", terrain.Material.Metalness)

	field := game.DefaultFieldConfig()
	viper.SetDefault("collectibles.maxCollectibles", field.MaxCollectibles)
	viper.SetDefault("collectibles.spawnDistance", field.SpawnDistance)
	viper.SetDefault("collectibles.minHeight", field.MinHeight)
	viper.SetDefault("collectibles.maxHeight", field.MaxHeight)
	viper.SetDefault("collectibles.captureRadius", field.CaptureRadius)
	viper.SetDefault("collectibles.spinSpeed", field.SpinSpeed)
	viper.SetDefault("collectibles.burstLifetime", field.BurstLifetime)
	viper.SetDefault("collectibles.particleCount", field.ParticleCount)
	viper.SetDefault("collectibles.particleSpeed", field.ParticleSpeed)

	sim := game.DefaultSimulationConfig()
	viper.SetDefault("sim.tickRate", sim.TickRate)
	viper.SetDefault("sim.scorePerRing", sim.ScorePerRing)
	viper.SetDefault("sim.holdTimeout", sim.HoldTimeout)
	viper.SetDefault("sim.telemetryInterval", sim.TelemetryInterval)
	viper.SetDefault("sim.seed", sim.Seed)

	server := ws.DefaultServerConfig()
	viper.SetDefault("server.addr", server.Addr)
	viper.SetDefault("server.streamInterval", server.StreamInterval)
	viper.SetDefault("server.pingInterval", server.PingInterval)
	viper.SetDefault("server.sendBuffer", server.SendBuffer)
	viper.SetDefault("server.writeTimeout", server.WriteTimeout)

	log := logging.DefaultConfig()
	viper.SetDefault("log.level", log.Level)
	viper.SetDefault("log.file", log.File)
	viper.SetDefault("log.noColor", log.NoColor)
	viper.SetDefault("log.graylog.enabled", log.Graylog.Enabled)
	viper.SetDefault("log.graylog.address", log.Graylog.Address)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.maxEntries", telemetry.DefaultMaxEntries)
	viper.SetDefault("telemetry.printInterval", telemetry.DefaultPrintInterval)
	viper.SetDefault("telemetry.backupFile", "")
	viper.SetDefault("telemetry.influx.enabled", false)
	viper.SetDefault("telemetry.influx.url", "http://localhost:8086")
	viper.SetDefault("telemetry.influx.token", "")
	viper.SetDefault("telemetry.influx.org", "skyrings")
	viper.SetDefault("telemetry.influx.bucket", "flight")
	viper.SetDefault("telemetry.influx.batchSize", 500)
	viper.SetDefault("telemetry.influx.flushInterval", time.Second)
	viper.SetDefault("telemetry.influx.session", "")
}

// Load читает конфигурацию. Пустой path означает только значения по умолчанию
// и переменные окружения; формат файла определяется по расширению.
func Load(path string) (*Config, error) {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет все секции
func (c *Config) Validate() error {
	var errs []error
	if err := c.Flight.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Terrain.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Collectibles.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sim.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.tickRate %d must be positive", c.Sim.TickRate))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Simulation собирает конфигурацию симуляции из секций
func (c *Config) Simulation() game.SimulationConfig {
	sim := c.Sim
	sim.Flight = c.Flight
	sim.Terrain = c.Terrain
	sim.Field = c.Collectibles
	return sim
}
