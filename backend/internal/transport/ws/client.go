package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noziyeas/flying-plane-sub001/backend/internal/physics"
)

const clientInbox = 256

// Client - подключение зрителя к серверу полета
type Client struct {
	writer   *SafeWriter
	messages chan interface{}
	done     chan struct{}
	once     sync.Once
	logger   zerolog.Logger

	mu       sync.Mutex
	err      error
	dropped  uint64
	received uint64
}

// Dial подключается к серверу и запускает чтение сообщений
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	client := &Client{
		writer:   NewSafeWriter(conn, DefaultWriteTimeout),
		messages: make(chan interface{}, clientInbox),
		done:     make(chan struct{}),
		logger:   logger.With().Str("system", "WSClient").Logger(),
	}
	go client.readLoop()
	return client, nil
}

// Messages возвращает канал разобранных сообщений сервера.
// Канал закрывается при разрыве соединения.
func (c *Client) Messages() <-chan interface{} {
	return c.messages
}

// Done закрывается при остановке клиента
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err возвращает причину разрыва соединения
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SendControls отправляет полный набор удерживаемых команд
func (c *Client) SendControls(controls physics.ControlSet) error {
	return c.writer.WriteJSON(NewControlsMessage(controls))
}

// Press сообщает о нажатии одной команды
func (c *Client) Press(signal physics.ControlSignal) error {
	return c.writer.WriteJSON(NewControlMessage(MessageTypePress, signal))
}

// Release сообщает об отпускании одной команды
func (c *Client) Release(signal physics.ControlSignal) error {
	return c.writer.WriteJSON(NewControlMessage(MessageTypeRelease, signal))
}

// ReleaseAll отпускает все команды клиента
func (c *Client) ReleaseAll() error {
	return c.writer.WriteJSON(NewControlMessage(MessageTypeReleaseAll, 0))
}

// Ping отправляет пинг для измерения задержки
func (c *Client) Ping() error {
	return c.writer.WriteJSON(NewPingMessage())
}

// Stats возвращает счетчики принятых и отброшенных сообщений
func (c *Client) Stats() (received, dropped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received, c.dropped
}

// Close закрывает соединение
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.writer.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.messages)

	for {
		_, data, err := c.writer.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				c.logger.Debug().Err(err).Msg("connection closed")
				_ = c.Close()
			}
			return
		}

		message, err := ParseMessage(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("skipping message")
			continue
		}

		select {
		case c.messages <- message:
			c.mu.Lock()
			c.received++
			c.mu.Unlock()
		case <-time.After(10 * time.Millisecond):
			// Потребитель не успевает, сообщение отбрасывается
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
