package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

var ErrUnknownLevel = errors.New("unknown log level")

// GraylogConfig - настройки отправки логов в Graylog по GELF
type GraylogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Config - настройки логирования
type Config struct {
	Level   string        `mapstructure:"level"`
	File    string        `mapstructure:"file"`
	NoColor bool          `mapstructure:"noColor"`
	Graylog GraylogConfig `mapstructure:"graylog"`

	// Output - консольный вывод, по умолчанию os.Stdout
	Output io.Writer `mapstructure:"-"`
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Level: "info",
		Graylog: GraylogConfig{
			Address: "localhost:12201",
		},
	}
}

// ParseLevel переводит имя уровня в zerolog.Level
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return zerolog.TraceLevel, nil
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "", "INFO":
		return zerolog.InfoLevel, nil
	case "WARN", "WARNING":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}

// Setup собирает логгер: цветная консоль, опционально файл и Graylog.
// Возвращаемый Closer закрывает файл и GELF соединение.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		},
	}
	closers := closerList{}

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("creating log dir: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
		closers = append(closers, file)
	}

	if cfg.Graylog.Enabled {
		gelfWriter, err := gelf.NewWriter(cfg.Graylog.Address)
		if err != nil {
			closers.Close()
			return zerolog.Nop(), nil, fmt.Errorf("connecting to graylog at %s: %w", cfg.Graylog.Address, err)
		}
		writers = append(writers, gelfWriter)
		closers = append(closers, gelfWriter)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	logger.Info().Str("loglevel", level.String()).Msg("Logging set up")
	return logger, closers, nil
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
