package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

const flightMeasurement = "flight_telemetry"

var ErrInfluxDisabled = errors.New("influx sink is disabled")

// InfluxConfig описывает подключение к InfluxDB
type InfluxConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Org           string        `mapstructure:"org"`
	Bucket        string        `mapstructure:"bucket"`
	BatchSize     uint          `mapstructure:"batchSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
	Session       string        `mapstructure:"session"`
}

// InfluxSink пишет выборки в InfluxDB асинхронным WriteAPI
type InfluxSink struct {
	client  influxdb2.Client
	writer  influxdb2_api.WriteAPI
	session string
	logger  zerolog.Logger
}

// NewInfluxSink подключается к InfluxDB и проверяет доступность сервера
func NewInfluxSink(ctx context.Context, cfg InfluxConfig, logger zerolog.Logger) (*InfluxSink, error) {
	if !cfg.Enabled {
		return nil, ErrInfluxDisabled
	}

	options := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		options = options.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		options = options.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	running, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging influxdb at %s: %w", cfg.URL, err)
	}
	if !running {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not ready", cfg.URL)
	}

	sink := &InfluxSink{
		client:  client,
		writer:  client.WriteAPI(cfg.Org, cfg.Bucket),
		session: cfg.Session,
		logger:  logger.With().Str("system", "InfluxSink").Str("bucket", cfg.Bucket).Logger(),
	}

	errorsCh := sink.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			sink.logger.Error().Err(writeErr).Msg("Error sending data to InfluxDB")
		}
	}()

	sink.logger.Info().Str("url", cfg.URL).Msg("InfluxDB sink initialized")
	return sink, nil
}

// WriteSample ставит точку в очередь отправки
func (s *InfluxSink) WriteSample(sample FlightSample) error {
	s.writer.WritePoint(samplePoint(sample, s.session))
	return nil
}

// Close отправляет накопленные точки и закрывает клиент
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	s.client.Close()
	s.logger.Info().Msg("InfluxDB sink closed")
	return nil
}

// LineProtocolSink пишет выборки в line protocol, например в резервный файл
type LineProtocolSink struct {
	mu      sync.Mutex
	w       io.Writer
	session string
}

// NewLineProtocolSink создает приемник поверх произвольного writer
func NewLineProtocolSink(w io.Writer, session string) *LineProtocolSink {
	return &LineProtocolSink{w: w, session: session}
}

// WriteSample сериализует выборку одной строкой
func (s *LineProtocolSink) WriteSample(sample FlightSample) error {
	line := influxdb2_write.PointToLineProtocol(samplePoint(sample, s.session), time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("writing line protocol: %w", err)
	}
	return nil
}

// Close закрывает writer, если он это поддерживает
func (s *LineProtocolSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if closer, ok := s.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func samplePoint(sample FlightSample, session string) *influxdb2_write.Point {
	tags := map[string]string{}
	if session != "" {
		tags["session"] = session
	}

	fields := map[string]interface{}{
		"tick":     int64(sample.Tick),
		"x":        sample.Position.X,
		"y":        sample.Position.Y,
		"z":        sample.Position.Z,
		"vx":       sample.Velocity.X,
		"vy":       sample.Velocity.Y,
		"vz":       sample.Velocity.Z,
		"speed":    sample.Speed,
		"airspeed": sample.Airspeed,
		"pitch":    sample.Pitch,
		"yaw":      sample.Yaw,
		"roll":     sample.Roll,
		"score":    sample.Score,
	}

	return influxdb2.NewPoint(flightMeasurement, tags, fields, time.UnixMilli(sample.Timestamp))
}
