package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/logging"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
)

// Bot подключается к серверу и управляет самолетом по снимкам
type Bot struct {
	ID          string
	ServerURL   string
	Duration    time.Duration
	CommandRate time.Duration

	autopilot *Autopilot
	logger    zerolog.Logger
	stats     BotStats
}

// BotStats содержит статистику работы бота
type BotStats struct {
	CommandsSent      atomic.Uint64
	SnapshotsReceived atomic.Uint64
	RingsCaptured     atomic.Uint64
	Errors            atomic.Uint64
	Score             atomic.Int64
	StartTime         time.Time
}

// NewBot создает нового бота
func NewBot(id, serverURL string, autopilot *Autopilot, duration, commandRate time.Duration, logger zerolog.Logger) *Bot {
	return &Bot{
		ID:          id,
		ServerURL:   serverURL,
		Duration:    duration,
		CommandRate: commandRate,
		autopilot:   autopilot,
		logger:      logger.With().Str("bot", id).Logger(),
		stats:       BotStats{StartTime: time.Now()},
	}
}

// Run летает до истечения Duration, отмены контекста или разрыва соединения
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.Duration)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := ws.Dial(dialCtx, b.ServerURL, b.logger)
	dialCancel()
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", b.ServerURL, err)
	}
	defer client.Close()

	b.logger.Info().Str("url", b.ServerURL).Msg("bot connected")

	commandTicker := time.NewTicker(b.CommandRate)
	defer commandTicker.Stop()
	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()

	var latest *ws.SnapshotMessage
	var lastTick uint64

	for {
		select {
		case <-ctx.Done():
			// Отпускаем все команды перед выходом
			_ = client.ReleaseAll()
			b.logger.Info().Msg("bot finished")
			return nil

		case msg, ok := <-client.Messages():
			if !ok {
				return fmt.Errorf("connection closed: %w", client.Err())
			}
			latest = b.handleMessage(msg, latest)

		case <-commandTicker.C:
			if latest == nil || latest.Tick == lastTick {
				continue
			}
			lastTick = latest.Tick

			// Команды отправляются каждый раз, иначе сервер отпустит их по таймауту
			controls := b.autopilot.Steer(latest)
			if err := client.SendControls(controls); err != nil {
				b.stats.Errors.Add(1)
				b.logger.Warn().Err(err).Msg("failed to send controls")
				continue
			}
			b.stats.CommandsSent.Add(1)

		case <-pingTicker.C:
			if err := client.Ping(); err != nil {
				b.logger.Warn().Err(err).Msg("failed to send ping")
			}
		}
	}
}

func (b *Bot) handleMessage(msg interface{}, latest *ws.SnapshotMessage) *ws.SnapshotMessage {
	switch m := msg.(type) {
	case *ws.SnapshotMessage:
		b.stats.SnapshotsReceived.Add(1)
		b.stats.Score.Store(m.Score)
		return m
	case *ws.RingMessage:
		if m.Type == ws.MessageTypeRingRemoved && m.Ring.Collected {
			b.stats.RingsCaptured.Add(1)
			b.logger.Info().Str("ring", m.Ring.ID).Msg("ring captured")
		}
	case *ws.PongMessage:
		b.logger.Debug().
			Int64("rtt_ms", ws.GetCurrentServerTime()-m.ClientTime).
			Msg("pong")
	case *ws.ErrorMessage:
		b.stats.Errors.Add(1)
		b.logger.Warn().Str("message", m.Message).Msg("server error")
	case *ws.InfoMessage:
		b.logger.Info().Str("message", m.Message).Msg("server info")
	}
	return latest
}

// PrintStats выводит статистику бота
func (b *Bot) PrintStats() {
	duration := time.Since(b.stats.StartTime)
	sent := b.stats.CommandsSent.Load()

	event := b.logger.Info().
		Dur("uptime", duration).
		Uint64("commands_sent", sent).
		Uint64("snapshots", b.stats.SnapshotsReceived.Load()).
		Uint64("rings", b.stats.RingsCaptured.Load()).
		Int64("score", b.stats.Score.Load()).
		Uint64("errors", b.stats.Errors.Load())
	if sent > 0 {
		event = event.Float64("commands_per_sec", float64(sent)/duration.Seconds())
	}
	event.Msg("bot stats")
}

func main() {
	// Флаги командной строки
	var (
		serverURL   = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		botID       = flag.String("id", "bot1", "ID бота")
		count       = flag.Int("count", 1, "Количество ботов")
		pattern     = flag.String("pattern", PatternSeek, "Паттерн полета (seek, circle, random)")
		duration    = flag.Duration("duration", 30*time.Second, "Длительность работы бота")
		commandRate = flag.Duration("rate", 50*time.Millisecond, "Частота отправки команд")
		logLevel    = flag.String("log", "info", "Уровень логирования")
		seed        = flag.Uint64("seed", 0, "Зерно генератора для паттерна random")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	logger, closer, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bots := make([]*Bot, 0, *count)
	for i := 0; i < *count; i++ {
		id := *botID
		if *count > 1 {
			id = fmt.Sprintf("%s-%d", *botID, i+1)
		}
		autopilot, err := NewAutopilot(*pattern, rand.New(rand.NewPCG(*seed, uint64(i))))
		if err != nil {
			logger.Error().Err(err).Msg("invalid pattern")
			os.Exit(1)
		}
		bots = append(bots, NewBot(id, *serverURL, autopilot, *duration, *commandRate, logger))
	}

	var wg sync.WaitGroup
	var failed atomic.Bool
	for _, bot := range bots {
		wg.Add(1)
		go func(bot *Bot) {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				bot.logger.Error().Err(err).Msg("bot failed")
				failed.Store(true)
			}
			bot.PrintStats()
		}(bot)
	}
	wg.Wait()

	if failed.Load() {
		os.Exit(1)
	}
}
