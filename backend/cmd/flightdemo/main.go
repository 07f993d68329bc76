package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/config"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/logging"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/telemetry"
)

// maneuver - участок сценария: команды удерживаются заданное число тиков
type maneuver struct {
	controls physics.ControlSet
	ticks    int
}

// parseScript разбирает сценарий вида "pitch_up+speed_up:120,yaw_left:60".
// Пустой набор команд записывается как "none".
func parseScript(script string) ([]maneuver, error) {
	var result []maneuver
	for _, part := range strings.Split(script, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		names, count, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("maneuver %q: missing tick count", part)
		}
		var ticks int
		if _, err := fmt.Sscanf(count, "%d", &ticks); err != nil || ticks <= 0 {
			return nil, fmt.Errorf("maneuver %q: invalid tick count", part)
		}

		var controls physics.ControlSet
		if names != "none" {
			set, err := physics.ParseControlSet(strings.Split(names, "+"))
			if err != nil {
				return nil, fmt.Errorf("maneuver %q: %w", part, err)
			}
			controls = set
		}
		result = append(result, maneuver{controls: controls, ticks: ticks})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	return result, nil
}

// flyScript прогоняет сценарий шагами тикера по ручным часам
func flyScript(sim *game.Simulation, clock *game.ManualClock, script []maneuver, tickDuration time.Duration) error {
	for _, m := range script {
		for i := 0; i < m.ticks; i++ {
			clock.Advance(tickDuration)
			if err := sim.Ticker.Step(m.controls); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "", "Путь к файлу конфигурации")
		script     = flag.String("script", "speed_up:60,pitch_up:90,yaw_left:240,pitch_down:60,none:300", "Сценарий полета")
		seed       = flag.Uint64("seed", 1, "Зерно генератора колец")
		output     = flag.String("telemetry", "", "Файл телеметрии в line protocol, '-' для stdout")
		every      = flag.Uint64("every", 10, "Запись телеметрии каждые N тиков")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	maneuvers, err := parseScript(*script)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid script")
	}

	if err := run(cfg, maneuvers, *seed, *output, *every, logger); err != nil {
		logger.Fatal().Err(err).Msg("flight demo failed")
	}
}

func run(cfg *config.Config, maneuvers []maneuver, seed uint64, output string, every uint64, logger zerolog.Logger) error {
	// Сводка печатается один раз в конце прогона
	recorder := telemetry.NewTelemetryManager(cfg.Telemetry.MaxEntries, 0, logger)
	defer recorder.Close()

	if output != "" {
		var w io.Writer = os.Stdout
		if output != "-" {
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating telemetry file: %w", err)
			}
			w = file
		}
		recorder.AddSink(telemetry.NewLineProtocolSink(w, "flightdemo"))
	}

	simCfg := cfg.Simulation()
	simCfg.TelemetryInterval = every

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := game.NewManualClock(start)
	sim, err := game.NewSimulation(simCfg, game.SimulationDeps{
		Logger:   logger,
		Clock:    clock,
		Rand:     rand.New(rand.NewPCG(seed, seed+1)),
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	defer sim.Close()

	tickDuration := time.Second / time.Duration(simCfg.TickRate)
	if err := flyScript(sim, clock, maneuvers, tickDuration); err != nil {
		return err
	}

	state := sim.Flight.State()
	snapshot := sim.Ticker.LastSnapshot()
	logger.Info().
		Uint64("ticks", sim.Ticker.GetTickCount()).
		Dur("flight_time", clock.Now().Sub(start)).
		Float64("x", state.Position.X()).
		Float64("y", state.Position.Y()).
		Float64("z", state.Position.Z()).
		Float64("speed", state.Speed).
		Int64("score", sim.Ticker.Score()).
		Uint64("captured", snapshot.Captured).
		Int("chunks", sim.Streamer.Len()).
		Msg("flight demo finished")

	recorder.PrintSummary()

	health := sim.Ticker.Health()
	for _, b := range health.Bottlenecks {
		logger.Warn().
			Str("name", b.System).
			Str("severity", b.Severity).
			Dur("average", b.AverageTime).
			Float64("percent_of_tick", b.PercentOfTick).
			Msg("slow system")
	}
	return nil
}
