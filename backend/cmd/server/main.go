package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/config"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/logging"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/telemetry"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "Путь к файлу конфигурации (json, yaml, toml)")
	addr := flag.String("addr", "", "Адрес HTTP сервера, перекрывает server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	recorder, err := setupTelemetry(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing telemetry")
		}
	}()

	simCfg := cfg.Simulation()
	deps := game.SimulationDeps{Logger: logger}
	if cfg.Telemetry.Enabled {
		deps.Recorder = recorder
	}

	sim, err := game.NewSimulation(simCfg, deps)
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}
	defer sim.Close()

	// Команды клиентов идут в сборщик ввода симуляции
	server := ws.NewServer(cfg.Server, sim.Input, logger)
	sim.Streamer.SetBroadcaster(server)
	sim.Field.SetBroadcaster(server)
	sim.Ticker.AddObserver(server)

	if err := server.SetFlightConfig(ws.FlightConfigMessage{
		TickRate:     simCfg.TickRate,
		Flight:       simCfg.Flight,
		Terrain:      simCfg.Terrain,
		Collectibles: simCfg.Field,
	}); err != nil {
		return fmt.Errorf("encoding flight config: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	mux.HandleFunc("/stats", statsHandler(sim, server, recorder, logger))
	mux.HandleFunc("/telemetry", telemetryHandler(recorder, logger))
	mux.HandleFunc("/health", healthHandler(sim.Ticker, logger))

	if err := sim.Ticker.Start(); err != nil {
		return fmt.Errorf("starting game ticker: %w", err)
	}

	go server.Run(ctx)
	if cfg.Telemetry.Enabled {
		go printTelemetry(ctx, recorder, cfg.Telemetry.PrintInterval)
	}

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Int("tick_rate", simCfg.TickRate).
		Uint64("seed", simCfg.Seed).
		Msg("flight server started")

	err = ws.ListenAndServe(ctx, cfg.Server.Addr, mux, logger)
	server.Close()
	return err
}

// setupTelemetry создает менеджер телеметрии и подключает хранилища из конфигурации
func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig, logger zerolog.Logger) (*telemetry.TelemetryManager, error) {
	manager := telemetry.NewTelemetryManager(cfg.MaxEntries, cfg.PrintInterval, logger)
	manager.SetEnabled(cfg.Enabled)
	if !cfg.Enabled {
		return manager, nil
	}

	if cfg.BackupFile != "" {
		file, err := os.OpenFile(cfg.BackupFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening telemetry backup file: %w", err)
		}
		manager.AddSink(telemetry.NewLineProtocolSink(file, cfg.Influx.Session))
		logger.Info().Str("file", cfg.BackupFile).Msg("telemetry backup file enabled")
	}

	influxCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sink, err := telemetry.NewInfluxSink(influxCtx, cfg.Influx, logger)
	switch {
	case errors.Is(err, telemetry.ErrInfluxDisabled):
	case err != nil:
		// Сервер продолжает работу без InfluxDB
		logger.Warn().Err(err).Msg("InfluxDB sink unavailable")
	default:
		manager.AddSink(sink)
	}

	return manager, nil
}

func printTelemetry(ctx context.Context, recorder *telemetry.TelemetryManager, interval time.Duration) {
	if interval <= 0 {
		interval = telemetry.DefaultPrintInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recorder.PrintSummary()
		}
	}
}

func statsHandler(sim *game.Simulation, server *ws.Server, recorder *telemetry.TelemetryManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"ticker":    sim.Ticker.GetStats(),
			"network":   server.GetStats(),
			"telemetry": recorder.GetStats(),
			"score":     sim.Ticker.Score(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.Warn().Err(err).Msg("writing stats response")
		}
	}
}

func telemetryHandler(recorder *telemetry.TelemetryManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := recorder.GetTelemetryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(data)); err != nil {
			logger.Warn().Err(err).Msg("writing telemetry response")
		}
	}
}

func healthHandler(ticker *game.GameTicker, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := ticker.Health()

		w.Header().Set("Content-Type", "application/json")
		if report.Status == game.HealthCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Warn().Err(err).Msg("writing health response")
		}
	}
}
