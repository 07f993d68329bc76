package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/logging"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/transport/ws"
)

// Cockpit - терминальный клиент: карта сверху и управление с клавиатуры
type Cockpit struct {
	screen tcell.Screen
	client *ws.Client
	keys   *keyHold
	state  cockpitState
	logger zerolog.Logger
}

// NewCockpit создает кабину поверх уже открытого соединения
func NewCockpit(screen tcell.Screen, client *ws.Client, scale float64, logger zerolog.Logger) *Cockpit {
	return &Cockpit{
		screen: screen,
		client: client,
		keys:   newKeyHold(keyHoldTime),
		state:  cockpitState{scale: scale, connected: true},
		logger: logger,
	}
}

// Run обрабатывает клавиши и сообщения сервера до выхода пользователя
func (c *Cockpit) Run(ctx context.Context, sendRate time.Duration) error {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := c.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	sendTicker := time.NewTicker(sendRate)
	defer sendTicker.Stop()
	frameTicker := time.NewTicker(33 * time.Millisecond)
	defer frameTicker.Stop()

	messages := c.client.Messages()
	var lastSent time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			if !c.handleEvent(ev) {
				_ = c.client.ReleaseAll()
				return nil
			}

		case msg, ok := <-messages:
			if !ok {
				c.state.connected = false
				c.state.addEvent("disconnected: %v", c.client.Err())
				messages = nil
				continue
			}
			c.handleMessage(msg)

		case now := <-sendTicker.C:
			if !c.state.connected {
				continue
			}
			controls := c.keys.controls(now)
			// Пустой набор повторяется редко, сервер сам отпустит команды по таймауту
			if controls.Empty() && now.Sub(lastSent) < time.Second {
				continue
			}
			if err := c.client.SendControls(controls); err != nil {
				c.logger.Warn().Err(err).Msg("failed to send controls")
				continue
			}
			lastSent = now

		case <-frameTicker.C:
			draw(c.screen, &c.state)
		}
	}
}

// handleEvent возвращает false, когда пользователь выходит
func (c *Cockpit) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}
		if ev.Key() == tcell.KeyRune && ev.Rune() == ' ' {
			c.keys.releaseAll()
			if c.state.connected {
				if err := c.client.ReleaseAll(); err != nil {
					c.logger.Warn().Err(err).Msg("failed to release controls")
				}
			}
			return true
		}
		if ev.Key() == tcell.KeyRune && (ev.Rune() == '[' || ev.Rune() == ']') {
			c.zoom(ev.Rune() == '[')
			return true
		}
		if signal, ok := signalForKey(ev); ok {
			c.keys.press(signal, time.Now())
		}

	case *tcell.EventResize:
		c.screen.Sync()
	}
	return true
}

func (c *Cockpit) zoom(in bool) {
	if in {
		c.state.scale = max(c.state.scale/2, 1)
	} else {
		c.state.scale = min(c.state.scale*2, 4096)
	}
}

func (c *Cockpit) handleMessage(msg interface{}) {
	switch m := msg.(type) {
	case *ws.SnapshotMessage:
		c.state.snapshot = m
	case *ws.FlightConfigMessage:
		c.state.config = m
		c.state.addEvent("flight config: tick rate %d, max speed %.0f", m.TickRate, m.Flight.MaxSpeed)
	case *ws.RingMessage:
		if m.Type == ws.MessageTypeRingRemoved && m.Ring.Collected {
			c.state.addEvent("ring %s captured", m.Ring.ID)
		}
	case *ws.InfoMessage:
		c.state.addEvent("server: %s", m.Message)
	case *ws.ErrorMessage:
		c.state.addEvent("server error: %s", m.Message)
	}
}

func main() {
	var (
		serverURL = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		scale     = flag.Float64("scale", 64, "Мировых единиц на столбец карты")
		sendRate  = flag.Duration("rate", 50*time.Millisecond, "Частота отправки команд")
		logFile   = flag.String("log-file", "", "Файл для логов (экран занят картой)")
		logLevel  = flag.String("log", "info", "Уровень логирования")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	logCfg.File = *logFile
	logCfg.Output = io.Discard
	logger, closer, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx := context.Background()
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := ws.Dial(dialCtx, *serverURL, logger)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to %s: %v\n", *serverURL, err)
		os.Exit(1)
	}
	defer client.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing screen: %v\n", err)
		os.Exit(1)
	}
	screen.SetStyle(styleDefault)

	cockpit := NewCockpit(screen, client, *scale, logger)
	err = cockpit.Run(ctx, *sendRate)
	screen.Fini()

	if err != nil {
		logger.Error().Err(err).Msg("cockpit stopped with error")
		os.Exit(1)
	}
}
