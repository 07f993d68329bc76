package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// peer - подключенный зритель с единственной пишущей горутиной.
// Сообщения ставятся в очередь без блокировки; при переполнении отбрасываются.
type peer struct {
	id     uint64
	writer *SafeWriter
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	pingInterval time.Duration
	dropped      atomic.Uint64
	sent         atomic.Uint64
	logger       zerolog.Logger
}

func newPeer(id uint64, conn *websocket.Conn, cfg ServerConfig, logger zerolog.Logger) *peer {
	return &peer{
		id:           id,
		writer:       NewSafeWriter(conn, cfg.WriteTimeout),
		send:         make(chan []byte, cfg.SendBuffer),
		done:         make(chan struct{}),
		pingInterval: cfg.PingInterval,
		logger:       logger.With().Uint64("peer", id).Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// enqueue ставит сообщение в очередь. Возвращает false, если оно отброшено.
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- data:
		return true
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.logger.Warn().Uint64("dropped", p.dropped.Load()).Msg("peer send buffer full, dropping message")
		}
		return false
	}
}

// writeLoop отправляет сообщения из очереди и периодические пинги
func (p *peer) writeLoop() {
	var pingC <-chan time.Time
	if p.pingInterval > 0 {
		ticker := time.NewTicker(p.pingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.writer.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debug().Err(err).Msg("peer write failed")
				p.close()
				return
			}
			p.sent.Add(1)
		case <-pingC:
			if err := p.writer.WriteControl(websocket.PingMessage, nil); err != nil {
				p.logger.Debug().Err(err).Msg("peer ping failed")
				p.close()
				return
			}
		}
	}
}

// close останавливает запись и закрывает соединение; повторные вызовы безопасны
func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.writer.Close()
	})
}
