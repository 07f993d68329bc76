package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/game"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
	"github.com/noziyeas/flying-plane-sub001/backend/internal/world"
)

const (
	DefaultStreamInterval = 50 * time.Millisecond // Интервал отправки снимков
	DefaultPingInterval   = 2 * time.Second       // Интервал отправки пингов
	DefaultSendBuffer     = 256
	DefaultWriteTimeout   = 5 * time.Second

	maxMessageSize = 4096
)

// ServerConfig - настройки WebSocket сервера
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	StreamInterval time.Duration `mapstructure:"streamInterval"`
	PingInterval   time.Duration `mapstructure:"pingInterval"`
	SendBuffer     int           `mapstructure:"sendBuffer"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
}

// DefaultServerConfig возвращает настройки по умолчанию
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		StreamInterval: DefaultStreamInterval,
		PingInterval:   DefaultPingInterval,
		SendBuffer:     DefaultSendBuffer,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// ControlSink принимает команды от клиентов
type ControlSink interface {
	Set(controls physics.ControlSet)
	Press(signal physics.ControlSignal)
	Release(signal physics.ControlSignal)
	ReleaseAll()
}

type messageHandler func(p *peer, message interface{}) error

// Server раздает снимки и события мира зрителям и принимает от них команды.
// Реализует game.SnapshotObserver, game.RingEventBroadcaster и world.ChunkEventBroadcaster.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	controls ControlSink
	handlers map[string]messageHandler
	config   atomic.Pointer[[]byte]

	peersMu sync.RWMutex
	peers   map[uint64]*peer
	nextID  atomic.Uint64

	// Реплика сцены для новых подключений
	sceneMu sync.Mutex
	chunks  map[world.ChunkCoord]world.TerrainChunk
	rings   map[string]game.Collectible

	latest       atomic.Pointer[game.Snapshot]
	lastStreamed uint64

	broadcasts    atomic.Uint64
	snapshotsSent atomic.Uint64
	logger        zerolog.Logger
}

var (
	_ game.SnapshotObserver       = (*Server)(nil)
	_ game.RingEventBroadcaster   = (*Server)(nil)
	_ world.ChunkEventBroadcaster = (*Server)(nil)
)

// NewServer создает новый экземпляр WebSocket сервера
func NewServer(cfg ServerConfig, controls ControlSink, logger zerolog.Logger) *Server {
	defaults := DefaultServerConfig()
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaults.StreamInterval
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}

	server := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		controls: controls,
		handlers: make(map[string]messageHandler),
		peers:    make(map[uint64]*peer),
		chunks:   make(map[world.ChunkCoord]world.TerrainChunk),
		rings:    make(map[string]game.Collectible),
		logger:   logger.With().Str("system", "WSServer").Logger(),
	}

	server.handlers[MessageTypePing] = server.handlePing
	server.handlers[MessageTypePong] = func(*peer, interface{}) error { return nil }
	server.handlers[MessageTypeControls] = server.handleControls
	server.handlers[MessageTypePress] = server.handleControl
	server.handlers[MessageTypeRelease] = server.handleControl
	server.handlers[MessageTypeReleaseAll] = server.handleControl

	return server
}

// SetFlightConfig задает параметры, отправляемые каждому новому клиенту
func (s *Server) SetFlightConfig(msg FlightConfigMessage) error {
	msg.Type = MessageTypeFlightConfig
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding flight config: %w", err)
	}
	s.config.Store(&data)
	return nil
}

// HandleWS обрабатывает входящие WebSocket соединения
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	p := newPeer(s.nextID.Add(1), conn, s.cfg, s.logger)
	go p.writeLoop()

	s.register(p)
	p.logger.Info().Msg("viewer connected")

	controlled := s.readLoop(p)

	s.unregister(p)
	p.close()
	if controlled && s.controls != nil {
		s.controls.ReleaseAll()
	}
	p.logger.Info().
		Uint64("sent", p.sent.Load()).
		Uint64("dropped", p.dropped.Load()).
		Msg("viewer disconnected")
}

// readLoop читает сообщения клиента до закрытия соединения.
// Возвращает true, если клиент присылал команды управления.
func (s *Server) readLoop(p *peer) bool {
	controlled := false
	for {
		_, data, err := p.writer.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debug().Err(err).Msg("websocket read error")
			}
			return controlled
		}

		message, err := ParseMessage(data)
		if err != nil {
			p.logger.Debug().Err(err).Msg("rejected client message")
			s.send(p, NewErrorMessage(err))
			continue
		}

		messageType, _ := GetMessageType(data)
		handler, ok := s.handlers[messageType]
		if !ok {
			s.send(p, NewErrorMessage(fmt.Errorf("%w: %s is server-only", ErrUnknownMessageType, messageType)))
			continue
		}

		if err := handler(p, message); err != nil {
			p.logger.Debug().Err(err).Str("message", messageType).Msg("error handling message")
			s.send(p, NewErrorMessage(err))
			continue
		}
		switch messageType {
		case MessageTypeControls, MessageTypePress, MessageTypeRelease, MessageTypeReleaseAll:
			controlled = true
		}
	}
}

func (s *Server) handlePing(p *peer, message interface{}) error {
	ping, ok := message.(*PingMessage)
	if !ok {
		return ErrInvalidMessage
	}
	s.send(p, NewPongMessage(ping.ClientTime))
	return nil
}

func (s *Server) handleControls(_ *peer, message interface{}) error {
	msg, ok := message.(*ControlsMessage)
	if !ok {
		return ErrInvalidMessage
	}
	controls, err := msg.ControlSet()
	if err != nil {
		return err
	}
	if s.controls != nil {
		s.controls.Set(controls)
	}
	return nil
}

func (s *Server) handleControl(_ *peer, message interface{}) error {
	msg, ok := message.(*ControlMessage)
	if !ok {
		return ErrInvalidMessage
	}
	if s.controls == nil {
		return nil
	}
	if msg.Type == MessageTypeReleaseAll {
		s.controls.ReleaseAll()
		return nil
	}

	signal, err := msg.Signal()
	if err != nil {
		return err
	}
	if msg.Type == MessageTypePress {
		s.controls.Press(signal)
	} else {
		s.controls.Release(signal)
	}
	return nil
}

// register добавляет клиента и отправляет ему текущую сцену.
// Выполняется под sceneMu, чтобы события не дублировались и не терялись.
func (s *Server) register(p *peer) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	s.send(p, NewInfoMessage("Connected to flight server"))
	if config := s.config.Load(); config != nil {
		p.enqueue(*config)
	}

	coords := make([]world.ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		coords = append(coords, coord)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	for _, coord := range coords {
		s.send(p, NewChunkMessage(MessageTypeChunkCreated, s.chunks[coord]))
	}

	ids := make([]string, 0, len(s.rings))
	for id := range s.rings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.send(p, NewRingMessage(MessageTypeRingSpawned, s.rings[id]))
	}

	if snapshot := s.latest.Load(); snapshot != nil {
		s.send(p, NewSnapshotMessage(snapshot))
	}

	s.peersMu.Lock()
	s.peers[p.id] = p
	s.peersMu.Unlock()
}

func (s *Server) unregister(p *peer) {
	s.peersMu.Lock()
	delete(s.peers, p.id)
	s.peersMu.Unlock()
}

func (s *Server) send(p *peer, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error().Err(err).Msgf("encoding %T", message)
		return
	}
	p.enqueue(data)
}

// broadcast кодирует сообщение один раз и ставит его в очередь всем клиентам
func (s *Server) broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error().Err(err).Msgf("encoding %T", message)
		return
	}

	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	for _, p := range s.peers {
		p.enqueue(data)
	}
	s.broadcasts.Add(1)
}

// OnSnapshot запоминает последний снимок; отправка идет с интервалом StreamInterval
func (s *Server) OnSnapshot(snapshot *game.Snapshot) {
	s.latest.Store(snapshot)
}

// Run отправляет снимки с заданным интервалом до отмены контекста
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.StreamInterval).Msg("snapshot streaming started")
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-ticker.C:
			s.streamLatest()
		}
	}
}

// streamLatest рассылает последний снимок, если он новее отправленного
func (s *Server) streamLatest() bool {
	snapshot := s.latest.Load()
	if snapshot == nil || snapshot.Tick == s.lastStreamed {
		return false
	}
	s.lastStreamed = snapshot.Tick
	s.broadcast(NewSnapshotMessage(snapshot))
	s.snapshotsSent.Add(1)
	return true
}

// BroadcastChunkCreated отправляет всем клиентам новый тайл
func (s *Server) BroadcastChunkCreated(chunk world.TerrainChunk) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	s.chunks[chunk.Coord] = chunk
	s.broadcast(NewChunkMessage(MessageTypeChunkCreated, chunk))
}

// BroadcastChunkReleased отправляет всем клиентам освобожденный тайл
func (s *Server) BroadcastChunkReleased(chunk world.TerrainChunk) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	delete(s.chunks, chunk.Coord)
	s.broadcast(NewChunkMessage(MessageTypeChunkReleased, chunk))
}

// BroadcastRingSpawned отправляет всем клиентам новое кольцо
func (s *Server) BroadcastRingSpawned(ring game.Collectible) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	s.rings[ring.ID] = ring
	s.broadcast(NewRingMessage(MessageTypeRingSpawned, ring))
}

// BroadcastRingRemoved отправляет всем клиентам удаленное кольцо
func (s *Server) BroadcastRingRemoved(ring game.Collectible) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	delete(s.rings, ring.ID)
	s.broadcast(NewRingMessage(MessageTypeRingRemoved, ring))
}

// BroadcastBurstStarted отправляет всем клиентам новую вспышку
func (s *Server) BroadcastBurstStarted(burst game.ParticleBurst) {
	s.broadcast(&BurstMessage{
		Type:  MessageTypeBurstStarted,
		Burst: NewBurstView(burst, burst.StartedAt),
	})
}

// BroadcastBurstExpired отправляет всем клиентам завершение вспышки
func (s *Server) BroadcastBurstExpired(burstID string) {
	s.broadcast(&BurstExpiredMessage{Type: MessageTypeBurstExpired, ID: burstID})
}

// ClientCount возвращает число подключенных клиентов
func (s *Server) ClientCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// GetStats возвращает статистику сервера
func (s *Server) GetStats() map[string]interface{} {
	s.peersMu.RLock()
	var dropped uint64
	for _, p := range s.peers {
		dropped += p.dropped.Load()
	}
	clients := len(s.peers)
	s.peersMu.RUnlock()

	s.sceneMu.Lock()
	chunks, rings := len(s.chunks), len(s.rings)
	s.sceneMu.Unlock()

	return map[string]interface{}{
		"clients":        clients,
		"broadcasts":     s.broadcasts.Load(),
		"snapshots_sent": s.snapshotsSent.Load(),
		"dropped":        dropped,
		"scene_chunks":   chunks,
		"scene_rings":    rings,
	}
}

// Close отключает всех клиентов
func (s *Server) Close() {
	s.peersMu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peersMu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// ListenAndServe поднимает HTTP сервер с обработчиками до отмены контекста
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}
